package validation

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkdmirror/certdecode"
	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
	"github.com/icao-pkd/pkdmirror/logging"
)

// issuerFixture builds a self-signed CSCA certificate/key pair and a DSC
// issued by it, so revocation tests can build CRLs that actually verify.
type issuerFixture struct {
	cscaCert *x509.Certificate
	cscaKey  *ecdsa.PrivateKey
	cscaRow  *core.Certificate
	dscDesc  *certdecode.Descriptor
}

func buildIssuerFixture(t *testing.T) *issuerFixture {
	t.Helper()
	cscaKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating CSCA key: %v", err)
	}
	cscaTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Country: []string{"NL"}, CommonName: "CSCA NL"},
		NotBefore:             time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:              time.Date(2035, 1, 1, 0, 0, 0, 0, time.UTC),
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	cscaDER, err := x509.CreateCertificate(rand.Reader, cscaTmpl, cscaTmpl, &cscaKey.PublicKey, cscaKey)
	if err != nil {
		t.Fatalf("creating CSCA certificate: %v", err)
	}
	cscaCert, err := x509.ParseCertificate(cscaDER)
	if err != nil {
		t.Fatalf("parsing CSCA certificate: %v", err)
	}

	dscKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating DSC key: %v", err)
	}
	dscTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{Country: []string{"NL"}, CommonName: "DSC NL"},
		Issuer:       cscaTmpl.Subject,
		NotBefore:    time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:     time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	dscDER, err := x509.CreateCertificate(rand.Reader, dscTmpl, cscaTmpl, &dscKey.PublicKey, cscaKey)
	if err != nil {
		t.Fatalf("creating DSC certificate: %v", err)
	}
	dscDesc, err := certdecode.DecodeDER(dscDER)
	if err != nil {
		t.Fatalf("decoding DSC certificate: %v", err)
	}

	return &issuerFixture{
		cscaCert: cscaCert,
		cscaKey:  cscaKey,
		cscaRow: &core.Certificate{
			Type:         core.CertTypeCSCA,
			Country:      "NL",
			SubjectDN:    cscaTmpl.Subject.String(),
			IsSelfSigned: true,
			DER:          cscaDER,
		},
		dscDesc: dscDesc,
	}
}

func (f *issuerFixture) crlDER(t *testing.T, thisUpdate, nextUpdate time.Time, revoked []x509.RevocationListEntry) []byte {
	t.Helper()
	tmpl := &x509.RevocationList{
		Number:                    big.NewInt(1),
		ThisUpdate:                thisUpdate,
		NextUpdate:                nextUpdate,
		RevokedCertificateEntries: revoked,
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, f.cscaCert, f.cscaKey)
	if err != nil {
		t.Fatalf("creating CRL: %v", err)
	}
	return der
}

func newTestEngine(db *fakeDB) *Engine {
	return New(db, clock.NewFake(), &logging.RecordingLogger{}, DefaultRevocationPolicy)
}

func TestCheckRevocationFailsOpenWhenCRLUnavailable(t *testing.T) {
	f := buildIssuerFixture(t)
	db := &fakeDB{}
	e := newTestEngine(db)

	status, _, err := e.checkRevocation(context.Background(), f.dscDesc, time.Now())
	if err != nil {
		t.Errorf("expected fail-open with nil error, got %v", err)
	}
	if status != core.CRLStatusUnavailable {
		t.Errorf("status = %v, want CRLStatusUnavailable", status)
	}
}

func TestCheckRevocationFailsClosedWhenPolicyDisallowsOpen(t *testing.T) {
	f := buildIssuerFixture(t)
	db := &fakeDB{}
	e := New(db, clock.NewFake(), &logging.RecordingLogger{}, RevocationPolicy{FailOpenOnUnavailable: false})

	_, _, err := e.checkRevocation(context.Background(), f.dscDesc, time.Now())
	if err == nil {
		t.Fatal("expected an error when the policy disallows failing open")
	}
	if !pkderrors.Is(err, pkderrors.CRLUnavailable) {
		t.Errorf("error kind = %v, want CRLUnavailable", err)
	}
}

func TestCheckRevocationExpiredCRL(t *testing.T) {
	f := buildIssuerFixture(t)
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	crlRow := &core.CRL{
		IssuerDN:   f.cscaCert.Subject.String(),
		NextUpdate: asOf.Add(-24 * time.Hour),
		DER:        f.crlDER(t, asOf.Add(-48*time.Hour), asOf.Add(-24*time.Hour), nil),
	}
	db := &fakeDB{
		selectOneFunc: func(holder interface{}, query string, args ...interface{}) error {
			*holder.(*core.CRL) = *crlRow
			return nil
		},
	}
	e := newTestEngine(db)

	status, _, err := e.checkRevocation(context.Background(), f.dscDesc, asOf)
	if err == nil {
		t.Fatal("expected an error for an expired CRL")
	}
	if status != core.CRLStatusExpired {
		t.Errorf("status = %v, want CRLStatusExpired", status)
	}
}

func TestCheckRevocationValidUnrevokedCertificate(t *testing.T) {
	f := buildIssuerFixture(t)
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	crlRow := &core.CRL{
		IssuerDN:   f.cscaCert.Subject.String(),
		NextUpdate: asOf.Add(24 * time.Hour),
		DER:        f.crlDER(t, asOf.Add(-24*time.Hour), asOf.Add(24*time.Hour), nil),
	}
	db := &fakeDB{
		selectOneFunc: func(holder interface{}, query string, args ...interface{}) error {
			*holder.(*core.CRL) = *crlRow
			return nil
		},
		selectFunc: func(holder interface{}, query string, args ...interface{}) ([]interface{}, error) {
			*holder.(*[]core.Certificate) = []core.Certificate{*f.cscaRow}
			return nil, nil
		},
	}
	e := newTestEngine(db)

	status, _, err := e.checkRevocation(context.Background(), f.dscDesc, asOf)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if status != core.CRLStatusValid {
		t.Errorf("status = %v, want CRLStatusValid", status)
	}
}

func TestCheckRevocationRevokedCertificate(t *testing.T) {
	f := buildIssuerFixture(t)
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	revoked := []x509.RevocationListEntry{{
		SerialNumber:   f.dscDesc.Certificate().SerialNumber,
		RevocationTime: asOf.Add(-time.Hour),
		ReasonCode:     1,
	}}
	crlRow := &core.CRL{
		IssuerDN:   f.cscaCert.Subject.String(),
		NextUpdate: asOf.Add(24 * time.Hour),
		DER:        f.crlDER(t, asOf.Add(-24*time.Hour), asOf.Add(24*time.Hour), revoked),
	}
	db := &fakeDB{
		selectOneFunc: func(holder interface{}, query string, args ...interface{}) error {
			*holder.(*core.CRL) = *crlRow
			return nil
		},
		selectFunc: func(holder interface{}, query string, args ...interface{}) ([]interface{}, error) {
			*holder.(*[]core.Certificate) = []core.Certificate{*f.cscaRow}
			return nil, nil
		},
	}
	e := newTestEngine(db)

	status, reason, err := e.checkRevocation(context.Background(), f.dscDesc, asOf)
	if err == nil {
		t.Fatal("expected an error for a revoked certificate")
	}
	if status != core.CRLStatusRevoked {
		t.Errorf("status = %v, want CRLStatusRevoked", status)
	}
	if reason != core.ReasonKeyCompromise {
		t.Errorf("reason = %v, want ReasonKeyCompromise", reason)
	}
}

func TestCheckRevocationInvalidWhenNoCandidateVerifiesSignature(t *testing.T) {
	f := buildIssuerFixture(t)
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	crlRow := &core.CRL{
		IssuerDN:   f.cscaCert.Subject.String(),
		NextUpdate: asOf.Add(24 * time.Hour),
		DER:        f.crlDER(t, asOf.Add(-24*time.Hour), asOf.Add(24*time.Hour), nil),
	}
	db := &fakeDB{
		selectOneFunc: func(holder interface{}, query string, args ...interface{}) error {
			*holder.(*core.CRL) = *crlRow
			return nil
		},
		selectFunc: func(holder interface{}, query string, args ...interface{}) ([]interface{}, error) {
			*holder.(*[]core.Certificate) = nil
			return nil, nil
		},
	}
	e := newTestEngine(db)

	status, _, err := e.checkRevocation(context.Background(), f.dscDesc, asOf)
	if err == nil {
		t.Fatal("expected an error when no candidate issuer is available to verify the CRL")
	}
	if status != core.CRLStatusInvalid {
		t.Errorf("status = %v, want CRLStatusInvalid", status)
	}
}
