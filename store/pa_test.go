package store

import (
	"encoding/json"
	"testing"

	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

func TestInsertPaVerificationEncodesResults(t *testing.T) {
	db := &fakeDB{
		insertFunc: func(list ...interface{}) error {
			pv := list[0].(*core.PaVerification)
			var results []core.DataGroupResult
			if err := json.Unmarshal(pv.DataGroupResults, &results); err != nil {
				t.Fatalf("DataGroupResults was not valid JSON: %v", err)
			}
			if len(results) != 1 || results[0].Number != 1 {
				t.Errorf("encoded results = %+v, want one result for DG1", results)
			}
			return nil
		},
	}
	pv := &core.PaVerification{ID: "pa1"}
	results := []core.DataGroupResult{{Number: 1, Valid: true}}
	if err := InsertPaVerification(db, pv, results); err != nil {
		t.Fatalf("InsertPaVerification failed: %v", err)
	}
}

func TestInsertPaVerificationWrapsInsertError(t *testing.T) {
	db := &fakeDB{insertFunc: func(list ...interface{}) error { return errTest }}
	err := InsertPaVerification(db, &core.PaVerification{ID: "pa1"}, nil)
	if !pkderrors.Is(err, pkderrors.DBError) {
		t.Errorf("expected a DBError-kind error, got %v", err)
	}
}

func TestSelectPaVerificationDecodesResults(t *testing.T) {
	encoded, err := json.Marshal([]core.DataGroupResult{{Number: 2, Valid: false}})
	if err != nil {
		t.Fatalf("encoding test fixture failed: %v", err)
	}
	db := &fakeDB{
		selectOneFunc: func(holder interface{}, query string, args ...interface{}) error {
			*holder.(*core.PaVerification) = core.PaVerification{ID: "pa1", DataGroupResults: encoded}
			return nil
		},
	}
	pv, results, err := SelectPaVerification(db, "pa1")
	if err != nil {
		t.Fatalf("SelectPaVerification failed: %v", err)
	}
	if pv.ID != "pa1" {
		t.Errorf("ID = %q, want pa1", pv.ID)
	}
	if len(results) != 1 || results[0].Number != 2 {
		t.Errorf("decoded results = %+v, want one result for DG2", results)
	}
}

func TestSelectPaVerificationNotFound(t *testing.T) {
	db := &fakeDB{}
	if _, _, err := SelectPaVerification(db, "missing"); err == nil {
		t.Errorf("SelectPaVerification on a missing id should return an error")
	}
}
