package ldif

import (
	"encoding/base64"
	"io"
	"strings"
	"testing"
)

func TestReaderSingleEntryPlainValue(t *testing.T) {
	input := "dn: cn=csca-nl,dc=pkd\nobjectClass: pkdCscaCertificate\ncountry: NL\n"
	r := NewReader(strings.NewReader(input))

	entry, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if entry.DN != "cn=csca-nl,dc=pkd" {
		t.Errorf("DN = %q, want cn=csca-nl,dc=pkd", entry.DN)
	}
	if string(entry.First("country")) != "NL" {
		t.Errorf("country = %q, want NL", entry.First("country"))
	}
	if classes := entry.ObjectClasses(); len(classes) != 1 || classes[0] != "pkdcscacertificate" {
		t.Errorf("ObjectClasses = %v, want [pkdcscacertificate]", classes)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next after the last entry should return io.EOF, got %v", err)
	}
}

func TestReaderBase64Value(t *testing.T) {
	raw := []byte{0x30, 0x82, 0x01, 0x02}
	encoded := base64.StdEncoding.EncodeToString(raw)
	input := "dn: cn=csca-nl,dc=pkd\nuserCertificate:: " + encoded + "\n"

	entry, err := NewReader(strings.NewReader(input)).Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	got := entry.First("userCertificate")
	if string(got) != string(raw) {
		t.Errorf("userCertificate = %x, want %x", got, raw)
	}
}

func TestReaderMultipleEntries(t *testing.T) {
	input := "dn: cn=a,dc=pkd\nobjectClass: pkdCscaCertificate\n\ndn: cn=b,dc=pkd\nobjectClass: pkdCscaCertificate\n"
	r := NewReader(strings.NewReader(input))

	first, err := r.Next()
	if err != nil || first.DN != "cn=a,dc=pkd" {
		t.Fatalf("first entry = %+v, err=%v, want DN cn=a,dc=pkd", first, err)
	}
	second, err := r.Next()
	if err != nil || second.DN != "cn=b,dc=pkd" {
		t.Fatalf("second entry = %+v, err=%v, want DN cn=b,dc=pkd", second, err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next past both entries should return io.EOF, got %v", err)
	}
}

func TestReaderLineFoldingContinuation(t *testing.T) {
	input := "dn: cn=csca-nl\n ,dc=pkd\nobjectClass: pkdCscaCertificate\n"
	entry, err := NewReader(strings.NewReader(input)).Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if entry.DN != "cn=csca-nl,dc=pkd" {
		t.Errorf("DN = %q, want the folded line joined into cn=csca-nl,dc=pkd", entry.DN)
	}
}

func TestReaderMultiValuedAttribute(t *testing.T) {
	input := "dn: cn=a,dc=pkd\nobjectClass: top\nobjectClass: pkdCscaCertificate\n"
	entry, err := NewReader(strings.NewReader(input)).Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	classes := entry.ObjectClasses()
	if len(classes) != 2 || classes[0] != "top" || classes[1] != "pkdcscacertificate" {
		t.Errorf("ObjectClasses = %v, want [top pkdcscacertificate]", classes)
	}
}

func TestReaderMissingDNFails(t *testing.T) {
	input := "objectClass: pkdCscaCertificate\n"
	if _, err := NewReader(strings.NewReader(input)).Next(); err == nil {
		t.Errorf("Next on an entry missing dn: should fail")
	}
}

func TestReaderMalformedAttributeLineFails(t *testing.T) {
	input := "dn: cn=a,dc=pkd\nnotanattribute\n"
	if _, err := NewReader(strings.NewReader(input)).Next(); err == nil {
		t.Errorf("Next on a line with no ':' should fail")
	}
}

func TestReaderEmptyInput(t *testing.T) {
	if _, err := NewReader(strings.NewReader("")).Next(); err != io.EOF {
		t.Errorf("Next on empty input should return io.EOF, got %v", err)
	}
}

func TestEntryFirstMissingAttribute(t *testing.T) {
	entry := &Entry{Attributes: map[string][][]byte{}}
	if got := entry.First("country"); got != nil {
		t.Errorf("First on a missing attribute should return nil, got %q", got)
	}
}
