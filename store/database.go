// Package store is the Trust Store: the relational system of record for
// certificates, CRLs, validation results, uploads, and Passive
// Authentication verifications. The LDAP Mirror is a projection of this
// store, never the other way around.
package store

import (
	"database/sql"
	"fmt"

	"github.com/letsencrypt/borp"

	_ "github.com/go-sql-driver/mysql"

	"github.com/icao-pkd/pkdmirror/core"
	"github.com/icao-pkd/pkdmirror/logging"
)

var dialectMap = map[string]borp.Dialect{
	"mysql": borp.MySQLDialect{Engine: "InnoDB", Encoding: "UTF8MB4"},
}

// NewDbMap opens driver/dsn, pings it, and builds the borp DbMap with every
// table this package manages registered against it.
func NewDbMap(driver, dsn string) (*borp.DbMap, error) {
	log := logging.Get()

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	log.Info("connected to trust store database", "driver", driver)

	dialect, ok := dialectMap[driver]
	if !ok {
		return nil, fmt.Errorf("no dialect registered for driver %q", driver)
	}

	dbMap := &borp.DbMap{Db: db, Dialect: dialect}
	initTables(dbMap)
	return dbMap, nil
}

// mediumBlobSize bounds the size of a JSON or DER blob column so that
// oversized rows fail fast at the ORM layer instead of at the database.
const mediumBlobSize = 16 * 1024 * 1024

func initTables(dbMap *borp.DbMap) {
	certTable := dbMap.AddTableWithName(core.Certificate{}, "certificates").SetKeys(true, "ID")
	certTable.SetVersionCol("LockCol")
	certTable.ColMap("DER").SetMaxSize(mediumBlobSize)
	certTable.ColMap("SourceContext").SetMaxSize(mediumBlobSize)
	certTable.ColMap("SubjectDN").SetMaxSize(1024)
	certTable.ColMap("IssuerDN").SetMaxSize(1024)

	crlTable := dbMap.AddTableWithName(core.CRL{}, "crls").SetKeys(true, "ID")
	crlTable.ColMap("DER").SetMaxSize(mediumBlobSize)

	dbMap.AddTableWithName(core.ValidationResult{}, "validation_results").SetKeys(true, "ID")

	uploadTable := dbMap.AddTableWithName(core.UploadRecord{}, "uploads").SetKeys(false, "ID")
	uploadTable.ColMap("ArchiveKey").SetMaxSize(512)

	dbMap.AddTableWithName(core.ProcessingError{}, "processing_errors").SetKeys(true, "ID")

	paTable := dbMap.AddTableWithName(core.PaVerification{}, "pa_verifications").SetKeys(false, "ID")
	paTable.ColMap("DataGroupResults").SetMaxSize(mediumBlobSize)

	dbMap.AddTableWithName(core.ReconciliationSummary{}, "reconciliation_summaries").SetKeys(true, "ID")
	dbMap.AddTableWithName(core.ReconciliationLog{}, "reconciliation_logs").SetKeys(true, "ID")
}

// OneSelector is anything providing SelectOne, matching the subset of
// borp.SqlExecutor every read-a-single-row helper in this package needs.
type OneSelector interface {
	SelectOne(holder interface{}, query string, args ...interface{}) error
}

// Selector is anything providing Select.
type Selector interface {
	Select(holder interface{}, query string, args ...interface{}) ([]interface{}, error)
}

// Inserter is anything providing Insert.
type Inserter interface {
	Insert(list ...interface{}) error
}

// Updater is anything providing Update.
type Updater interface {
	Update(list ...interface{}) (int64, error)
}

// Execer is anything providing Exec.
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// SelectExecer composes OneSelector, Selector, and Execer: the surface the
// Validation Engine needs to read a single CRL row, read a candidate-issuer
// set, and run a batch update in turn.
type SelectExecer interface {
	OneSelector
	Selector
	Execer
}

var _ OneSelector = (*borp.DbMap)(nil)
var _ Inserter = (*borp.DbMap)(nil)
