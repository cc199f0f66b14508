package store

import (
	"testing"

	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

func TestSelectCertificateByFingerprintFound(t *testing.T) {
	db := &fakeDB{
		selectOneFunc: func(holder interface{}, query string, args ...interface{}) error {
			*holder.(*core.Certificate) = core.Certificate{Fingerprint: "abc123"}
			return nil
		},
	}
	cert, err := SelectCertificateByFingerprint(db, "abc123")
	if err != nil {
		t.Fatalf("SelectCertificateByFingerprint failed: %v", err)
	}
	if cert.Fingerprint != "abc123" {
		t.Errorf("Fingerprint = %q, want abc123", cert.Fingerprint)
	}
}

func TestSelectCertificateByFingerprintNotFound(t *testing.T) {
	db := &fakeDB{}
	_, err := SelectCertificateByFingerprint(db, "nope")
	if !pkderrors.Is(err, pkderrors.CSCANotFound) {
		t.Errorf("expected a CSCANotFound error, got %v", err)
	}
}

func TestSelectCertificateByIDNotFound(t *testing.T) {
	db := &fakeDB{}
	_, err := SelectCertificateByID(db, 42)
	if !pkderrors.Is(err, pkderrors.CSCANotFound) {
		t.Errorf("expected a CSCANotFound error, got %v", err)
	}
}

func TestSelectCertificatesByTypeWrapsRows(t *testing.T) {
	db := &fakeDB{
		selectFunc: func(holder interface{}, query string, args ...interface{}) ([]interface{}, error) {
			*holder.(*[]core.Certificate) = []core.Certificate{
				{Fingerprint: "a"}, {Fingerprint: "b"},
			}
			return nil, nil
		},
	}
	certs, err := SelectCertificatesByType(db, core.CertTypeCSCA)
	if err != nil {
		t.Fatalf("SelectCertificatesByType failed: %v", err)
	}
	if len(certs) != 2 || certs[0].Fingerprint != "a" || certs[1].Fingerprint != "b" {
		t.Errorf("SelectCertificatesByType = %+v, want [a b]", certs)
	}
}

func TestSelectCertificatesByTypeError(t *testing.T) {
	db := &fakeDB{
		selectFunc: func(holder interface{}, query string, args ...interface{}) ([]interface{}, error) {
			return nil, errTest
		},
	}
	if _, err := SelectCertificatesByType(db, core.CertTypeDSC); err == nil {
		t.Errorf("SelectCertificatesByType should surface the underlying query error")
	}
}

func TestInsertCertificateWrapsError(t *testing.T) {
	db := &fakeDB{
		insertFunc: func(list ...interface{}) error { return errTest },
	}
	err := InsertCertificate(db, &core.Certificate{Fingerprint: "x"})
	if !pkderrors.Is(err, pkderrors.DBError) {
		t.Errorf("expected a DBError-kind error, got %v", err)
	}
}

func TestUpdateValidationStatusSetsField(t *testing.T) {
	db := &fakeDB{}
	cert := &core.Certificate{Fingerprint: "x"}
	if err := UpdateValidationStatus(db, cert, core.StatusValid); err != nil {
		t.Fatalf("UpdateValidationStatus failed: %v", err)
	}
	if cert.ValidationStatus != core.StatusValid {
		t.Errorf("ValidationStatus = %v, want %v", cert.ValidationStatus, core.StatusValid)
	}
}

func TestMarkStoredInLDAPSetsField(t *testing.T) {
	db := &fakeDB{}
	cert := &core.Certificate{Fingerprint: "x"}
	if err := MarkStoredInLDAP(db, cert, true); err != nil {
		t.Fatalf("MarkStoredInLDAP failed: %v", err)
	}
	if !cert.StoredInLDAP {
		t.Errorf("StoredInLDAP = false, want true")
	}
}
