package store

import (
	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

// InsertReconciliationSummary creates the summary row at IN_PROGRESS when a
// reconciliation run starts; the reconciliation engine holds the returned
// ID and updates the same row exactly once, on completion.
func InsertReconciliationSummary(ins Inserter, summary *core.ReconciliationSummary) error {
	summary.Status = core.ReconInProgress
	if err := ins.Insert(summary); err != nil {
		return pkderrors.DBErrorf("inserting reconciliation summary: %v", err)
	}
	return nil
}

// UpdateReconciliationSummary persists the final counters and terminal
// status (COMPLETED, PARTIAL, FAILED, or ABORTED) of a run.
func UpdateReconciliationSummary(up Updater, summary *core.ReconciliationSummary) error {
	if _, err := up.Update(summary); err != nil {
		return pkderrors.DBErrorf("updating reconciliation summary %d: %v", summary.ID, err)
	}
	return nil
}

// SelectLatestReconciliationSummary returns the most recently started run,
// for GET /sync/status.
func SelectLatestReconciliationSummary(s OneSelector) (*core.ReconciliationSummary, error) {
	var summary core.ReconciliationSummary
	err := s.SelectOne(&summary,
		"SELECT id, triggeredBy, dryRun, status, cscaAdded, dscAdded, crlAdded, "+
			"cscaDeleted, dscDeleted, crlDeleted, failureCount, successCount, "+
			"durationMs, startedAt, completedAt FROM reconciliation_summaries "+
			"ORDER BY startedAt DESC LIMIT 1",
	)
	if err != nil {
		return nil, pkderrors.New(pkderrors.InternalServer, "no reconciliation run on record: %v", err)
	}
	return &summary, nil
}

// InsertReconciliationLog appends one per-operation log row under a
// summary. Never updated once written.
func InsertReconciliationLog(ins Inserter, entry *core.ReconciliationLog) error {
	if err := ins.Insert(entry); err != nil {
		return pkderrors.DBErrorf("inserting reconciliation log for %s: %v", entry.CertFingerprint, err)
	}
	return nil
}
