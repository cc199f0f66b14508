package store

import (
	"encoding/json"

	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

// InsertPaVerification persists one Passive Authentication verification
// record. These rows are immutable once written: a re-verification of the
// same document creates a new row rather than overwriting the old one, so
// the audit trail of what was checked and when is never lost.
func InsertPaVerification(ins Inserter, pv *core.PaVerification, results []core.DataGroupResult) error {
	encoded, err := json.Marshal(results)
	if err != nil {
		return pkderrors.InternalServerError("encoding data group results: %v", err)
	}
	pv.DataGroupResults = encoded
	if err := ins.Insert(pv); err != nil {
		return pkderrors.DBErrorf("inserting PA verification %s: %v", pv.ID, err)
	}
	return nil
}

// SelectPaVerification returns the verification record by ID along with
// its decoded per-data-group results.
func SelectPaVerification(s OneSelector, id string) (*core.PaVerification, []core.DataGroupResult, error) {
	var pv core.PaVerification
	err := s.SelectOne(&pv,
		"SELECT id, status, issuingCountry, documentNumber, chainValid, sodSignatureValid, "+
			"validGroups, totalGroups, dataGroupResults, signingTime, durationMs, createdAt "+
			"FROM pa_verifications WHERE id = ?",
		id,
	)
	if err != nil {
		return nil, nil, pkderrors.New(pkderrors.InternalServer, "PA verification %s not found: %v", id, err)
	}
	var results []core.DataGroupResult
	if len(pv.DataGroupResults) > 0 {
		if err := json.Unmarshal(pv.DataGroupResults, &results); err != nil {
			return nil, nil, pkderrors.InternalServerError("decoding data group results for %s: %v", id, err)
		}
	}
	return &pv, results, nil
}
