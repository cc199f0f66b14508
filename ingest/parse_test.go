package ingest

import (
	"testing"

	"github.com/icao-pkd/pkdmirror/core"
)

func TestClassifyFromDN(t *testing.T) {
	cases := []struct {
		dn   string
		want core.CertType
	}{
		{"ou=CSCA,o=CSCA,c=NL", core.CertTypeCSCA},
		{"ou=DSC,o=DSC,c=NL", core.CertTypeDSC},
		{"ou=DSC_NC,o=DSC_NC,c=NL", core.CertTypeDSCNC},
		{"ou=nc-data,c=NL", core.CertTypeDSCNC},
		{"c=NL", core.CertTypeDSC},
	}
	for _, c := range cases {
		if got := classifyFromDN(c.dn); got != c.want {
			t.Errorf("classifyFromDN(%q) = %v, want %v", c.dn, got, c.want)
		}
	}
}

func TestParseUploadUnsupportedFormat(t *testing.T) {
	artifacts, errs := parseUpload(core.UploadFormat("bogus"), nil)
	if artifacts != nil {
		t.Errorf("expected no artifacts for an unsupported format")
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error for an unsupported format, got %d", len(errs))
	}
}

func TestParseUploadSingleCertificate(t *testing.T) {
	raw := []byte("fake-der-bytes")
	artifacts, errs := parseUpload(core.FormatDER, raw)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(artifacts) != 1 {
		t.Fatalf("expected exactly one artifact, got %d", len(artifacts))
	}
	if artifacts[0].Kind != artifactCertificate || artifacts[0].CertType != core.CertTypeDSC {
		t.Errorf("unexpected artifact: %+v", artifacts[0])
	}
	if string(artifacts[0].DER) != string(raw) {
		t.Errorf("artifact DER does not match input bytes")
	}
}

func TestParseUploadCRL(t *testing.T) {
	raw := []byte("fake-crl-bytes")
	artifacts, errs := parseUpload(core.FormatCRL, raw)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(artifacts) != 1 || artifacts[0].Kind != artifactCRL {
		t.Fatalf("expected a single CRL artifact, got %+v", artifacts)
	}
}

func TestParseLDIFUploadSkipsContainerEntries(t *testing.T) {
	ldifText := "dn: c=NL,dc=data\nobjectClass: top\nobjectClass: country\nc: NL\n\n" +
		"dn: o=csca,c=NL,dc=data\nobjectClass: top\nobjectClass: organization\no: csca\n"
	artifacts, errs := parseLDIFUpload([]byte(ldifText))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors parsing container-only LDIF: %v", errs)
	}
	if len(artifacts) != 0 {
		t.Fatalf("expected no artifacts from container-only LDIF, got %d", len(artifacts))
	}
}
