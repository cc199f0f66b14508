package store

import (
	"fmt"

	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

const crlFields = "id, country, issuerDn, fingerprint, thisUpdate, nextUpdate, crlNumber, " +
	"revokedCount, der, storedInLdap, createdAt"

// SelectLatestCRL returns the most recently issued CRL for issuerDN — the
// one the Validation Engine's revocation check and the Reconciliation
// Engine's convergence both treat as authoritative, since older CRLs are
// retained for audit but never re-published.
func SelectLatestCRL(s OneSelector, issuerDN string) (*core.CRL, error) {
	var crl core.CRL
	err := s.SelectOne(&crl,
		"SELECT "+crlFields+" FROM crls WHERE issuerDn = ? ORDER BY thisUpdate DESC LIMIT 1",
		issuerDN,
	)
	if err != nil {
		return nil, pkderrors.CRLUnavailableError("no CRL on file for issuer %s: %v", issuerDN, err)
	}
	return &crl, nil
}

// InsertCRL records a newly ingested or fetched CRL. Callers that replace a
// stale CRL insert the new row rather than updating in place, preserving
// history for audit.
func InsertCRL(ins Inserter, crl *core.CRL) error {
	if err := ins.Insert(crl); err != nil {
		return pkderrors.DBErrorf("inserting CRL for %s: %v", crl.IssuerDN, err)
	}
	return nil
}

// SelectCRLsPendingMirror returns CRLs not yet projected into LDAP, for the
// Reconciliation Engine's convergence batches.
func SelectCRLsPendingMirror(s Selector, limit int) ([]*core.CRL, error) {
	var models []core.CRL
	_, err := s.Select(&models,
		"SELECT "+crlFields+" FROM crls WHERE storedInLdap = 0 ORDER BY createdAt ASC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting CRLs pending mirror: %w", err)
	}
	out := make([]*core.CRL, len(models))
	for i := range models {
		out[i] = &models[i]
	}
	return out, nil
}

// MarkCRLStoredInLDAP flips the bookkeeping column after a successful
// mirror write.
func MarkCRLStoredInLDAP(up Updater, crl *core.CRL, stored bool) error {
	crl.StoredInLDAP = stored
	if _, err := up.Update(crl); err != nil {
		return pkderrors.DBErrorf("updating storedInLdap for CRL %s: %v", crl.Fingerprint, err)
	}
	return nil
}
