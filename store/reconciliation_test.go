package store

import (
	"testing"

	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

func TestInsertReconciliationSummarySetsInProgress(t *testing.T) {
	db := &fakeDB{}
	summary := &core.ReconciliationSummary{}
	if err := InsertReconciliationSummary(db, summary); err != nil {
		t.Fatalf("InsertReconciliationSummary failed: %v", err)
	}
	if summary.Status != core.ReconInProgress {
		t.Errorf("Status = %v, want %v", summary.Status, core.ReconInProgress)
	}
}

func TestInsertReconciliationSummaryWrapsError(t *testing.T) {
	db := &fakeDB{insertFunc: func(list ...interface{}) error { return errTest }}
	err := InsertReconciliationSummary(db, &core.ReconciliationSummary{})
	if !pkderrors.Is(err, pkderrors.DBError) {
		t.Errorf("expected a DBError-kind error, got %v", err)
	}
}

func TestUpdateReconciliationSummaryWrapsError(t *testing.T) {
	db := &fakeDB{updateFunc: func(list ...interface{}) (int64, error) { return 0, errTest }}
	err := UpdateReconciliationSummary(db, &core.ReconciliationSummary{ID: 1})
	if !pkderrors.Is(err, pkderrors.DBError) {
		t.Errorf("expected a DBError-kind error, got %v", err)
	}
}

func TestSelectLatestReconciliationSummaryNotFound(t *testing.T) {
	db := &fakeDB{}
	if _, err := SelectLatestReconciliationSummary(db); err == nil {
		t.Errorf("SelectLatestReconciliationSummary should fail when no run has ever started")
	}
}

func TestSelectLatestReconciliationSummaryFound(t *testing.T) {
	db := &fakeDB{
		selectOneFunc: func(holder interface{}, query string, args ...interface{}) error {
			*holder.(*core.ReconciliationSummary) = core.ReconciliationSummary{ID: 7, Status: core.ReconCompleted}
			return nil
		},
	}
	summary, err := SelectLatestReconciliationSummary(db)
	if err != nil {
		t.Fatalf("SelectLatestReconciliationSummary failed: %v", err)
	}
	if summary.ID != 7 {
		t.Errorf("ID = %d, want 7", summary.ID)
	}
}

func TestInsertReconciliationLogWrapsError(t *testing.T) {
	db := &fakeDB{insertFunc: func(list ...interface{}) error { return errTest }}
	err := InsertReconciliationLog(db, &core.ReconciliationLog{CertFingerprint: "abc"})
	if !pkderrors.Is(err, pkderrors.DBError) {
		t.Errorf("expected a DBError-kind error, got %v", err)
	}
}
