package ldapmirror

import (
	"strings"
	"testing"

	"github.com/icao-pkd/pkdmirror/core"
)

func TestCertificateDNIncludesOUAndCountry(t *testing.T) {
	cert := &core.Certificate{
		Type:        core.CertTypeCSCA,
		Country:     "NL",
		Fingerprint: "0123456789abcdef0123456789abcdef",
	}
	dn := CertificateDN("dc=pkd", cert)
	if !strings.Contains(dn, "ou=CSCA") || !strings.Contains(dn, "c=NL") || !strings.HasSuffix(dn, "dc=pkd") {
		t.Errorf("CertificateDN = %q, missing expected CSCA/NL/dc=pkd components", dn)
	}
	if !strings.Contains(dn, "cn=cert-0123456789abcdef") {
		t.Errorf("CertificateDN = %q, want a cn built from the first 16 hex chars of the fingerprint", dn)
	}
}

func TestCertificateDNDifferentiatesByType(t *testing.T) {
	fp := "0123456789abcdef0123456789abcdef"
	dsc := CertificateDN("dc=pkd", &core.Certificate{Type: core.CertTypeDSC, Country: "NL", Fingerprint: fp})
	if !strings.Contains(dsc, "ou=DSC") {
		t.Errorf("DSC certificate DN = %q, want ou=DSC", dsc)
	}
	mlsc := CertificateDN("dc=pkd", &core.Certificate{Type: core.CertTypeMLSC, Country: "NL", Fingerprint: fp})
	if !strings.Contains(mlsc, "ou=MLSC") {
		t.Errorf("MLSC certificate DN = %q, want ou=MLSC", mlsc)
	}
	lc := CertificateDN("dc=pkd", &core.Certificate{Type: core.CertTypeLC, Country: "NL", Fingerprint: fp})
	if !strings.Contains(lc, "ou=CSCA") {
		t.Errorf("LC certificate DN = %q, want ou=CSCA (LC shares the CSCA OU)", lc)
	}
}

func TestCRLDNFormat(t *testing.T) {
	crl := &core.CRL{Country: "NL", Fingerprint: "0123456789abcdef0123456789abcdef"}
	dn := CRLDN("dc=pkd", crl)
	if !strings.Contains(dn, "ou=CRLs") || !strings.Contains(dn, "c=NL") {
		t.Errorf("CRLDN = %q, missing expected ou=CRLs/c=NL components", dn)
	}
	if !strings.Contains(dn, "cn=crl-0123456789abcdef") {
		t.Errorf("CRLDN = %q, want a cn built from the first 16 hex chars of the fingerprint", dn)
	}
}

func TestNewDefaultsPoolSize(t *testing.T) {
	m := New(Config{URL: "ldaps://localhost:636"}, nil)
	if cap(m.pool) != 4 {
		t.Errorf("default pool size = %d, want 4", cap(m.pool))
	}
	m2 := New(Config{URL: "ldaps://localhost:636", PoolSize: 10}, nil)
	if cap(m2.pool) != 10 {
		t.Errorf("explicit pool size = %d, want 10", cap(m2.pool))
	}
}
