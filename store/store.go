package store

import (
	"context"
	"database/sql"

	"github.com/jmhodges/clock"
	"github.com/letsencrypt/borp"

	"github.com/icao-pkd/pkdmirror/logging"
)

// TrustStore is the Trust Store's persistence layer: every subsystem
// (ingestion, validation, reconciliation, PA) reads and writes through one
// of these rather than touching dbMap directly, so call sites stay
// test-doubleable against the OneSelector/Selector/Inserter/Execer
// interfaces instead of a concrete database connection.
type TrustStore struct {
	dbMap *borp.DbMap
	clk   clock.Clock
	log   logging.Logger
	cache *CertificateCache
}

// New wraps an already-initialized DbMap (see NewDbMap) together with a
// clock and logger.
func New(dbMap *borp.DbMap, clk clock.Clock, log logging.Logger) *TrustStore {
	return &TrustStore{dbMap: dbMap, clk: clk, log: log}
}

// SetCache wires a CertificateCache into this store. The ingestion
// pipeline calls InvalidateCache after each CSCA/LC certificate or CRL it
// inserts; the insert helpers in this package do not touch the cache.
// Passing nil disables caching again.
func (ts *TrustStore) SetCache(cache *CertificateCache) {
	ts.cache = cache
}

// Cache returns the wired CertificateCache, or nil if none is set — the
// Validation Engine checks this before falling back to a direct query.
func (ts *TrustStore) Cache() *CertificateCache {
	return ts.cache
}

// InvalidateCache drops the cached candidate-issuer and current-CRL
// entries for issuerDN. A no-op if no cache is wired.
func (ts *TrustStore) InvalidateCache(ctx context.Context, country, issuerDN string) {
	if ts.cache == nil {
		return
	}
	ts.cache.InvalidateIssuer(ctx, country, issuerDN)
}

// Begin starts a transaction for callers that need atomic multi-table
// writes.
func (ts *TrustStore) Begin() (*borp.Transaction, error) {
	return ts.dbMap.Begin()
}

// SelectOne, Select, Insert, Update, and Exec delegate to the underlying
// DbMap so *TrustStore itself satisfies OneSelector/Selector/Inserter/
// Updater/Execer — every query function in this package takes one of those
// interfaces rather than a concrete *borp.DbMap, so callers can pass either
// a *TrustStore or a *borp.Transaction interchangeably.

func (ts *TrustStore) SelectOne(holder interface{}, query string, args ...interface{}) error {
	return ts.dbMap.SelectOne(holder, query, args...)
}

func (ts *TrustStore) Select(holder interface{}, query string, args ...interface{}) ([]interface{}, error) {
	return ts.dbMap.Select(holder, query, args...)
}

func (ts *TrustStore) Insert(list ...interface{}) error {
	return ts.dbMap.Insert(list...)
}

func (ts *TrustStore) Update(list ...interface{}) (int64, error) {
	return ts.dbMap.Update(list...)
}

func (ts *TrustStore) Exec(query string, args ...interface{}) (sql.Result, error) {
	return ts.dbMap.Exec(query, args...)
}

var _ SelectExecer = (*TrustStore)(nil)
