package store

import "database/sql"

// fakeDB is a minimal stand-in for the borp.DbMap surface this package's
// query helpers depend on (OneSelector/Selector/Inserter/Updater/Execer),
// letting the SQL-adjacent logic in this package (field lists, error
// wrapping, not-found handling) be exercised without a live MySQL
// connection. Each method delegates to an optional func field so a test
// only wires up the behavior it actually exercises.
type fakeDB struct {
	selectOneFunc func(holder interface{}, query string, args ...interface{}) error
	selectFunc    func(holder interface{}, query string, args ...interface{}) ([]interface{}, error)
	insertFunc    func(list ...interface{}) error
	updateFunc    func(list ...interface{}) (int64, error)
	execFunc      func(query string, args ...interface{}) (sql.Result, error)

	insertedQuery string
	insertedArgs  []interface{}
	execQuery     string
	execArgs      []interface{}
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

func (f *fakeDB) Insert(list ...interface{}) error {
	if f.insertFunc == nil {
		return nil
	}
	return f.insertFunc(list...)
}

func (f *fakeDB) Update(list ...interface{}) (int64, error) {
	if f.updateFunc == nil {
		return 1, nil
	}
	return f.updateFunc(list...)
}

func (f *fakeDB) Exec(query string, args ...interface{}) (sql.Result, error) {
	f.execQuery = query
	f.execArgs = args
	if f.execFunc == nil {
		return driverResult{}, nil
	}
	return f.execFunc(query, args...)
}

// driverResult is a zero-value sql.Result for fakes that don't care about
// rows affected or last insert ID.
type driverResult struct{}

func (driverResult) LastInsertId() (int64, error) { return 0, nil }
func (driverResult) RowsAffected() (int64, error) { return 0, nil }

var (
	_ OneSelector = (*fakeDB)(nil)
	_ Selector    = (*fakeDB)(nil)
	_ Inserter    = (*fakeDB)(nil)
	_ Updater     = (*fakeDB)(nil)
	_ Execer      = (*fakeDB)(nil)
)
