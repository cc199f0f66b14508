package validation

import "database/sql"

// fakeDB implements store.SelectExecer (OneSelector+Selector+Execer) so the
// Engine can be exercised without a live database, mirroring the narrow
// interfaces store/database.go defines for exactly this purpose.
type fakeDB struct {
	selectOneFunc func(holder interface{}, query string, args ...interface{}) error
	selectFunc    func(holder interface{}, query string, args ...interface{}) ([]interface{}, error)
	execFunc      func(query string, args ...interface{}) (sql.Result, error)
}

func (f *fakeDB) SelectOne(holder interface{}, query string, args ...interface{}) error {
	if f.selectOneFunc == nil {
		return sql.ErrNoRows
	}
	return f.selectOneFunc(holder, query, args...)
}

func (f *fakeDB) Select(holder interface{}, query string, args ...interface{}) ([]interface{}, error) {
	if f.selectFunc == nil {
		return nil, nil
	}
	return f.selectFunc(holder, query, args...)
}

func (f *fakeDB) Exec(query string, args ...interface{}) (sql.Result, error) {
	if f.execFunc == nil {
		return nil, nil
	}
	return f.execFunc(query, args...)
}
