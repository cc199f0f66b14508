// Package reconcile implements the Reconciliation Engine: the Trust Store
// database is the source of truth, the LDAP Mirror is a projection of it,
// and this package is the only thing that writes to both in the same
// operation. Every run is batched, idempotent, and safe to retry: a
// failed row is logged and skipped, never aborts the batch.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkdmirror/core"
	"github.com/icao-pkd/pkdmirror/ldapmirror"
	"github.com/icao-pkd/pkdmirror/logging"
	"github.com/icao-pkd/pkdmirror/metrics"
	"github.com/icao-pkd/pkdmirror/store"
)

const (
	defaultBatchSize = 200
	lockName         = "pkdmirror_reconcile"
	lockTimeoutSecs  = 30
)

// certTypePass is one ordered step of a reconciliation run: a certificate
// type to pull pending rows for, the LDAP OU it mirrors into, and the
// summary counters it bumps.
type certTypePass struct {
	certType core.CertType
	ou       string
}

// passOrder runs CSCA then DSC (DSC_NC excluded as deprecated), extended
// with LC (CSCA's own rollover continuation, stored under the same OU)
// and MLSC (the Master List signer, mirrored so PA verifiers can fetch it
// independently of the Trust Store).
var passOrder = []certTypePass{
	{certType: core.CertTypeCSCA, ou: "CSCA"},
	{certType: core.CertTypeLC, ou: "CSCA"},
	{certType: core.CertTypeDSC, ou: "DSC"},
	{certType: core.CertTypeMLSC, ou: "MLSC"},
}

// Engine runs DB-to-LDAP convergence passes. Concurrent runs are mutually
// exclusive, enforced either by a MySQL advisory lock (useDBLock) or an
// in-process mutex fallback for single-instance deployments.
type Engine struct {
	ts        *store.TrustStore
	mirror    *ldapmirror.Mirror
	clk       clock.Clock
	log       logging.Logger
	scope     metrics.Scope
	batchSize int
	useDBLock bool
	mu        sync.Mutex
}

// New builds a reconciliation Engine. batchSize <= 0 falls back to
// defaultBatchSize (100-500 rows per pass).
func New(ts *store.TrustStore, mirror *ldapmirror.Mirror, clk clock.Clock, log logging.Logger, scope metrics.Scope, batchSize int, useDBLock bool) *Engine {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Engine{ts: ts, mirror: mirror, clk: clk, log: log, scope: scope, batchSize: batchSize, useDBLock: useDBLock}
}

// Run executes one convergence pass: certificates first (CSCA, LC, DSC,
// MLSC in that order), then CRLs, recording a ReconciliationSummary and one
// ReconciliationLog row per attempted operation. dryRun logs every would-be
// operation without writing to LDAP or flipping any stored_in_ldap flag.
func (e *Engine) Run(ctx context.Context, triggeredBy core.TriggeredBy, dryRun bool) (*core.ReconciliationSummary, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.unlock()

	start := e.clk.Now()
	summary := &core.ReconciliationSummary{
		TriggeredBy: triggeredBy,
		DryRun:      dryRun,
		StartedAt:   start,
	}
	if err := store.InsertReconciliationSummary(e.ts, summary); err != nil {
		return nil, err
	}

	for _, pass := range passOrder {
		e.reconcileCertificates(ctx, summary, pass, dryRun)
	}
	e.reconcileCRLs(ctx, summary, dryRun)

	summary.DurationMS = e.clk.Now().Sub(start).Milliseconds()
	completedAt := e.clk.Now()
	summary.CompletedAt = &completedAt
	switch {
	case summary.FailureCount == 0:
		summary.Status = core.ReconCompleted
	case summary.SuccessCount == 0:
		summary.Status = core.ReconFailed
	default:
		summary.Status = core.ReconPartial
	}
	if err := store.UpdateReconciliationSummary(e.ts, summary); err != nil {
		return nil, err
	}
	e.scope.Inc("reconcile_runs."+string(summary.Status), 1)
	return summary, nil
}

func (e *Engine) lock() error {
	if !e.useDBLock {
		e.mu.Lock()
		return nil
	}
	return store.AdvisoryLock(e.ts, lockName, lockTimeoutSecs)
}

func (e *Engine) unlock() {
	if !e.useDBLock {
		e.mu.Unlock()
		return
	}
	if err := store.AdvisoryUnlock(e.ts, lockName); err != nil {
		e.log.Warning("releasing reconciliation advisory lock failed", "error", err.Error())
	}
}

func (e *Engine) reconcileCertificates(ctx context.Context, summary *core.ReconciliationSummary, pass certTypePass, dryRun bool) {
	pending, err := store.SelectCertificatesPendingMirror(e.ts, pass.certType, e.batchSize)
	if err != nil {
		e.log.Warning("selecting pending certificates failed", "certType", pass.certType, "error", err.Error())
		return
	}
	if len(pending) == 0 {
		return
	}

	existing, err := e.mirror.ExistingFingerprints(ctx, pass.ou)
	if err != nil {
		e.log.Warning("listing existing LDAP entries failed, proceeding without race check", "ou", pass.ou, "error", err.Error())
		existing = map[string]string{}
	}

	for _, cert := range pending {
		opStart := e.clk.Now()
		if _, present := existing[cert.Fingerprint]; present {
			e.recordOp(summary, cert.Fingerprint, cert.Type, core.ReconOpLog, core.ReconLogSuccess, "", opStart, dryRun)
			if !dryRun {
				_ = store.MarkStoredInLDAP(e.ts, cert, true)
			}
			continue
		}
		if dryRun {
			e.recordOp(summary, cert.Fingerprint, cert.Type, core.ReconOpAdd, core.ReconLogSuccess, "dry-run: would ADD", opStart, true)
			continue
		}
		if err := e.mirror.AddCertificate(ctx, cert); err != nil && !isAlreadyExists(err) {
			e.recordOp(summary, cert.Fingerprint, cert.Type, core.ReconOpAdd, core.ReconLogFailed, err.Error(), opStart, false)
			continue
		}
		if err := store.MarkStoredInLDAP(e.ts, cert, true); err != nil {
			e.recordOp(summary, cert.Fingerprint, cert.Type, core.ReconOpAdd, core.ReconLogFailed, err.Error(), opStart, false)
			continue
		}
		e.recordOp(summary, cert.Fingerprint, cert.Type, core.ReconOpAdd, core.ReconLogSuccess, "", opStart, false)
		bumpAdded(summary, pass.certType)
	}
}

func (e *Engine) reconcileCRLs(ctx context.Context, summary *core.ReconciliationSummary, dryRun bool) {
	pending, err := store.SelectCRLsPendingMirror(e.ts, e.batchSize)
	if err != nil {
		e.log.Warning("selecting pending CRLs failed", "error", err.Error())
		return
	}
	if len(pending) == 0 {
		return
	}

	existing, err := e.mirror.ExistingFingerprints(ctx, "CRLs")
	if err != nil {
		e.log.Warning("listing existing LDAP CRL entries failed, proceeding without race check", "error", err.Error())
		existing = map[string]string{}
	}

	for _, crl := range pending {
		opStart := e.clk.Now()
		if _, present := existing[crl.Fingerprint]; present {
			e.recordOp(summary, crl.Fingerprint, "", core.ReconOpLog, core.ReconLogSuccess, "", opStart, dryRun)
			if !dryRun {
				_ = store.MarkCRLStoredInLDAP(e.ts, crl, true)
			}
			continue
		}
		if dryRun {
			e.recordOp(summary, crl.Fingerprint, "", core.ReconOpAdd, core.ReconLogSuccess, "dry-run: would ADD", opStart, true)
			continue
		}
		if err := e.mirror.AddCRL(ctx, crl); err != nil && !isAlreadyExists(err) {
			e.recordOp(summary, crl.Fingerprint, "", core.ReconOpAdd, core.ReconLogFailed, err.Error(), opStart, false)
			continue
		}
		if err := store.MarkCRLStoredInLDAP(e.ts, crl, true); err != nil {
			e.recordOp(summary, crl.Fingerprint, "", core.ReconOpAdd, core.ReconLogFailed, err.Error(), opStart, false)
			continue
		}
		e.recordOp(summary, crl.Fingerprint, "", core.ReconOpAdd, core.ReconLogSuccess, "", opStart, false)
		summary.CRLAdded++
	}
}

func (e *Engine) recordOp(summary *core.ReconciliationSummary, fingerprint string, certType core.CertType, op core.ReconOperation, status core.ReconLogStatus, errMsg string, start time.Time, skipCounters bool) {
	entry := &core.ReconciliationLog{
		SummaryID:       summary.ID,
		CertFingerprint: fingerprint,
		CertType:        certType,
		Operation:       op,
		Status:          status,
		ErrorMessage:    errMsg,
		DurationMS:      e.clk.Now().Sub(start).Milliseconds(),
		At:              e.clk.Now(),
	}
	if err := store.InsertReconciliationLog(e.ts, entry); err != nil {
		e.log.Warning("recording reconciliation log entry failed", "fingerprint", fingerprint, "error", err.Error())
	}
	if skipCounters {
		return
	}
	if status == core.ReconLogSuccess {
		summary.SuccessCount++
	} else {
		summary.FailureCount++
	}
}

func bumpAdded(summary *core.ReconciliationSummary, certType core.CertType) {
	switch certType {
	case core.CertTypeCSCA, core.CertTypeLC:
		summary.CSCAAdded++
	case core.CertTypeDSC, core.CertTypeDSCNC:
		summary.DSCAdded++
	}
}

// isAlreadyExists treats LDAP's EntryAlreadyExists result as success: a
// concurrent writer beat this pass to the same DN, and that's fine, not
// an error.
func isAlreadyExists(err error) bool {
	var ldapErr *ldap.Error
	return errors.As(err, &ldapErr) && ldapErr.ResultCode == ldap.LDAPResultEntryAlreadyExists
}
