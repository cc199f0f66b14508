package store

import (
	"testing"

	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

func TestSelectLatestCRLNotFound(t *testing.T) {
	db := &fakeDB{}
	_, err := SelectLatestCRL(db, "/C=NL/O=State of the Netherlands")
	if !pkderrors.Is(err, pkderrors.CRLUnavailable) {
		t.Errorf("expected a CRLUnavailable error, got %v", err)
	}
}

func TestSelectLatestCRLFound(t *testing.T) {
	db := &fakeDB{
		selectOneFunc: func(holder interface{}, query string, args ...interface{}) error {
			*holder.(*core.CRL) = core.CRL{Fingerprint: "crl1"}
			return nil
		},
	}
	crl, err := SelectLatestCRL(db, "/C=NL/O=State of the Netherlands")
	if err != nil {
		t.Fatalf("SelectLatestCRL failed: %v", err)
	}
	if crl.Fingerprint != "crl1" {
		t.Errorf("Fingerprint = %q, want crl1", crl.Fingerprint)
	}
}

func TestInsertCRLWrapsError(t *testing.T) {
	db := &fakeDB{insertFunc: func(list ...interface{}) error { return errTest }}
	err := InsertCRL(db, &core.CRL{IssuerDN: "/C=NL"})
	if !pkderrors.Is(err, pkderrors.DBError) {
		t.Errorf("expected a DBError-kind error, got %v", err)
	}
}

func TestSelectCRLsPendingMirror(t *testing.T) {
	db := &fakeDB{
		selectFunc: func(holder interface{}, query string, args ...interface{}) ([]interface{}, error) {
			*holder.(*[]core.CRL) = []core.CRL{{Fingerprint: "a"}}
			return nil, nil
		},
	}
	crls, err := SelectCRLsPendingMirror(db, 50)
	if err != nil {
		t.Fatalf("SelectCRLsPendingMirror failed: %v", err)
	}
	if len(crls) != 1 || crls[0].Fingerprint != "a" {
		t.Errorf("SelectCRLsPendingMirror = %+v, want one CRL with fingerprint a", crls)
	}
}

func TestMarkCRLStoredInLDAPSetsField(t *testing.T) {
	db := &fakeDB{}
	crl := &core.CRL{Fingerprint: "a"}
	if err := MarkCRLStoredInLDAP(db, crl, true); err != nil {
		t.Fatalf("MarkCRLStoredInLDAP failed: %v", err)
	}
	if !crl.StoredInLDAP {
		t.Errorf("StoredInLDAP = false, want true")
	}
}
