package store

import (
	"fmt"

	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

const certFields = "id, type, country, subjectDn, issuerDn, serialHex, notBefore, notAfter, " +
	"fingerprint, der, sigAlg, keyAlg, keySizeBits, isSelfSigned, isLinkCertificate, " +
	"validationStatus, storedInLdap, sourceType, sourceContext, createdAt, LockCol"

// SelectCertificateByFingerprint returns the certificate row with the given
// fingerprint, or a CSCANotFound-kind error if none exists — fingerprint,
// not serial, is the natural key here because serials are only unique
// within one issuer.
func SelectCertificateByFingerprint(s OneSelector, fingerprint string) (*core.Certificate, error) {
	var cert core.Certificate
	err := s.SelectOne(&cert,
		"SELECT "+certFields+" FROM certificates WHERE fingerprint = ?",
		fingerprint,
	)
	if err != nil {
		return nil, pkderrors.CSCANotFoundError("certificate with fingerprint %s not found: %v", fingerprint, err)
	}
	return &cert, nil
}

// SelectCertificateByID returns the certificate row with the given primary
// key, used by MANUAL-mode ingestion to re-fetch certificates persisted by
// an earlier stage before mirroring them to LDAP.
func SelectCertificateByID(s OneSelector, id int64) (*core.Certificate, error) {
	var cert core.Certificate
	err := s.SelectOne(&cert,
		"SELECT "+certFields+" FROM certificates WHERE id = ?",
		id,
	)
	if err != nil {
		return nil, pkderrors.CSCANotFoundError("certificate id %d not found: %v", id, err)
	}
	return &cert, nil
}

// SelectCertificatesByType returns every certificate row of the given type,
// ordered oldest-first. Used by the Validation Engine to build candidate
// issuer sets and by the Reconciliation Engine to enumerate what should be
// in LDAP.
func SelectCertificatesByType(s Selector, certType core.CertType) ([]*core.Certificate, error) {
	var models []core.Certificate
	_, err := s.Select(&models,
		"SELECT "+certFields+" FROM certificates WHERE type = ? ORDER BY createdAt ASC",
		string(certType),
	)
	if err != nil {
		return nil, fmt.Errorf("selecting certificates by type %s: %w", certType, err)
	}
	out := make([]*core.Certificate, len(models))
	for i := range models {
		out[i] = &models[i]
	}
	return out, nil
}

// SelectCertificatesPendingMirror returns up to limit certificates of the
// given type not yet projected into LDAP, oldest first — the Reconciliation
// Engine's per-certType batch unit.
func SelectCertificatesPendingMirror(s Selector, certType core.CertType, limit int) ([]*core.Certificate, error) {
	var models []core.Certificate
	_, err := s.Select(&models,
		"SELECT "+certFields+" FROM certificates WHERE type = ? AND storedInLdap = 0 ORDER BY createdAt ASC LIMIT ?",
		string(certType), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting certificates pending mirror for type %s: %w", certType, err)
	}
	out := make([]*core.Certificate, len(models))
	for i := range models {
		out[i] = &models[i]
	}
	return out, nil
}

// SelectCandidateIssuers returns CSCA and LC certificates whose subject
// matches issuerDN — the candidate set the Validation Engine walks,
// signature-verifying each in turn, to find the one that actually signed a
// DSC (key rollover can leave several CSCAs sharing a subject DN).
func SelectCandidateIssuers(s Selector, issuerDN string) ([]*core.Certificate, error) {
	var models []core.Certificate
	_, err := s.Select(&models,
		"SELECT "+certFields+" FROM certificates WHERE subjectDn = ? AND type IN ('CSCA', 'LC') ORDER BY notBefore DESC",
		issuerDN,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting candidate issuers for %s: %w", issuerDN, err)
	}
	out := make([]*core.Certificate, len(models))
	for i := range models {
		out[i] = &models[i]
	}
	return out, nil
}

// InsertCertificate inserts a new certificate row. Duplicate fingerprints
// are the ingestion pipeline's idempotency boundary, so callers are
// expected to have already checked SelectCertificateByFingerprint.
func InsertCertificate(ins Inserter, cert *core.Certificate) error {
	if err := ins.Insert(cert); err != nil {
		return pkderrors.DBErrorf("inserting certificate %s: %v", cert.Fingerprint, err)
	}
	return nil
}

// UpdateValidationStatus mutates a certificate's validation_status column
// in place; this is the one field the Validation Engine is allowed to
// mutate post-insert, per the certificate row's revisions-as-new-rows
// invariant.
func UpdateValidationStatus(up Updater, cert *core.Certificate, status core.ValidationStatus) error {
	cert.ValidationStatus = status
	if _, err := up.Update(cert); err != nil {
		return pkderrors.DBErrorf("updating validation status for %s: %v", cert.Fingerprint, err)
	}
	return nil
}

// MarkStoredInLDAP flips the StoredInLDAP bookkeeping column the
// Reconciliation Engine uses to decide what still needs mirroring.
func MarkStoredInLDAP(up Updater, cert *core.Certificate, stored bool) error {
	cert.StoredInLDAP = stored
	if _, err := up.Update(cert); err != nil {
		return pkderrors.DBErrorf("updating storedInLdap for %s: %v", cert.Fingerprint, err)
	}
	return nil
}
