package store

import (
	"fmt"

	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

// InsertValidationResult appends one validation run's outcome. Results are
// append-only per certificate; the most recent row is authoritative.
func InsertValidationResult(ins Inserter, vr *core.ValidationResult) error {
	if err := ins.Insert(vr); err != nil {
		return pkderrors.DBErrorf("inserting validation result for certificate %d: %v", vr.CertificateID, err)
	}
	return nil
}

// SelectLatestValidationResult returns the most recent validation outcome
// recorded for a certificate.
func SelectLatestValidationResult(s OneSelector, certificateID int64) (*core.ValidationResult, error) {
	var vr core.ValidationResult
	err := s.SelectOne(&vr,
		"SELECT id, certificateId, status, trustChainValid, trustChainPath, signatureVerified, "+
			"signatureByDnOnly, validityCheckPassed, crlStatus, revocationReason, errorCode, "+
			"validatedAt, durationMs FROM validation_results WHERE certificateId = ? "+
			"ORDER BY validatedAt DESC LIMIT 1",
		certificateID,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting latest validation result for %d: %w", certificateID, err)
	}
	return &vr, nil
}
