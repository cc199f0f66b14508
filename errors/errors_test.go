package errors

import (
	"errors"
	"testing"
)

func TestKindCode(t *testing.T) {
	if got := CSCANotFound.Code(); got != "CSCA_NOT_FOUND" {
		t.Errorf("Code() = %q, want CSCA_NOT_FOUND", got)
	}
	if got := Kind(999).Code(); got != "UNKNOWN" {
		t.Errorf("Code() for unregistered kind = %q, want UNKNOWN", got)
	}
}

func TestErrorMessage(t *testing.T) {
	err := RevokedError("certificate %s revoked", "abc123")
	want := "REVOKED: certificate abc123 revoked"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(LDAPError, cause, "dialing directory")

	var pe *PKDError
	if !errors.As(err, &pe) {
		t.Fatalf("errors.As failed to recover *PKDError from %v", err)
	}
	if pe.Kind != LDAPError {
		t.Errorf("Kind = %v, want LDAPError", pe.Kind)
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true (Unwrap should expose cause)")
	}
}

func TestIsAndAs(t *testing.T) {
	err := DuplicateFileError("duplicate upload, existing uploadId=%s", "up-1")
	if !Is(err, DuplicateFile) {
		t.Errorf("Is(err, DuplicateFile) = false, want true")
	}
	if Is(err, CRLExpired) {
		t.Errorf("Is(err, CRLExpired) = true, want false")
	}
	pe, ok := As(err)
	if !ok {
		t.Fatalf("As(err) ok = false, want true")
	}
	if pe.Detail != "duplicate upload, existing uploadId=up-1" {
		t.Errorf("Detail = %q", pe.Detail)
	}

	if Is(errors.New("plain"), DuplicateFile) {
		t.Errorf("Is on a non-PKDError should be false")
	}
	if _, ok := As(errors.New("plain")); ok {
		t.Errorf("As on a non-PKDError should report ok=false")
	}
}
