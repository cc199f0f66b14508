// Package errors provides the typed error taxonomy shared by every
// subsystem of the PKD mirror: the ingestion pipeline, the validation
// engine, the PA verification engine, and the reconciliation engine all
// recover from domain errors locally and record the typed Kind rather than
// aborting their batch.
package errors

import "fmt"

// Kind provides a coarse category for PKDErrors. Coarse means a handful of
// kinds, not one per failure message: callers switch on Kind, not on
// Detail text.
type Kind int

const (
	InternalServer Kind = iota
	ParseError
	CSCANotFound
	CSCADNMismatch
	CSCASelfSignatureFailed
	SignatureInvalid
	NotYetValid
	Expired
	NotValidAtSigningTime
	Revoked
	CRLUnavailable
	CRLExpired
	CRLInvalid
	ExtensionViolation
	AlgorithmNoncompliant
	DGHashMismatch
	SODSignatureInvalid
	DuplicateFile
	DBError
	LDAPError
)

var kindNames = map[Kind]string{
	InternalServer:          "INTERNAL_SERVER",
	ParseError:              "PARSE_ERROR",
	CSCANotFound:            "CSCA_NOT_FOUND",
	CSCADNMismatch:          "CSCA_DN_MISMATCH",
	CSCASelfSignatureFailed: "CSCA_SELF_SIGNATURE_FAILED",
	SignatureInvalid:        "SIGNATURE_INVALID",
	NotYetValid:             "NOT_YET_VALID",
	Expired:                 "EXPIRED",
	NotValidAtSigningTime:   "NOT_VALID_AT_SIGNING_TIME",
	Revoked:                 "REVOKED",
	CRLUnavailable:          "CRL_UNAVAILABLE",
	CRLExpired:              "CRL_EXPIRED",
	CRLInvalid:              "CRL_INVALID",
	ExtensionViolation:      "EXTENSION_VIOLATION",
	AlgorithmNoncompliant:   "ALGORITHM_NONCOMPLIANT",
	DGHashMismatch:          "DG_HASH_MISMATCH",
	SODSignatureInvalid:     "SOD_SIGNATURE_INVALID",
	DuplicateFile:           "DUPLICATE_FILE",
	DBError:                 "DB_ERROR",
	LDAPError:               "LDAP_ERROR",
}

// Code returns the wire-level string code for the kind, as used in the
// boundary JSON envelope's error.code field.
func (k Kind) Code() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

func (k Kind) String() string { return k.Code() }

// PKDError is the concrete error type every typed-failure path returns.
type PKDError struct {
	Kind   Kind
	Detail string
	Cause  error // underlying error, if any; nil for most constructors
}

func (e *PKDError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Detail)
}

// Unwrap exposes Cause to the standard library's errors.As/errors.Is, so
// callers can recover a specific underlying error type (e.g. *ldap.Error)
// without this package needing to know about it.
func (e *PKDError) Unwrap() error { return e.Cause }

// New builds a PKDError with a formatted detail message.
func New(kind Kind, msg string, args ...interface{}) error {
	return &PKDError{Kind: kind, Detail: fmt.Sprintf(msg, args...)}
}

// Wrap builds a PKDError like New, additionally retaining cause so callers
// can recover it via errors.As.
func Wrap(kind Kind, cause error, msg string, args ...interface{}) error {
	return &PKDError{Kind: kind, Detail: fmt.Sprintf(msg, args...), Cause: cause}
}

// Is reports whether err is a *PKDError of the given kind.
func Is(err error, kind Kind) bool {
	pe, ok := err.(*PKDError)
	if !ok {
		return false
	}
	return pe.Kind == kind
}

// As extracts the *PKDError from err, if any.
func As(err error) (*PKDError, bool) {
	pe, ok := err.(*PKDError)
	return pe, ok
}

func InternalServerError(msg string, args ...interface{}) error {
	return New(InternalServer, msg, args...)
}

func ParseErrorf(msg string, args ...interface{}) error {
	return New(ParseError, msg, args...)
}

func CSCANotFoundError(msg string, args ...interface{}) error {
	return New(CSCANotFound, msg, args...)
}

func CSCADNMismatchError(msg string, args ...interface{}) error {
	return New(CSCADNMismatch, msg, args...)
}

func CSCASelfSignatureFailedError(msg string, args ...interface{}) error {
	return New(CSCASelfSignatureFailed, msg, args...)
}

func SignatureInvalidError(msg string, args ...interface{}) error {
	return New(SignatureInvalid, msg, args...)
}

func NotYetValidError(msg string, args ...interface{}) error {
	return New(NotYetValid, msg, args...)
}

func ExpiredError(msg string, args ...interface{}) error {
	return New(Expired, msg, args...)
}

func NotValidAtSigningTimeError(msg string, args ...interface{}) error {
	return New(NotValidAtSigningTime, msg, args...)
}

func RevokedError(msg string, args ...interface{}) error {
	return New(Revoked, msg, args...)
}

func CRLUnavailableError(msg string, args ...interface{}) error {
	return New(CRLUnavailable, msg, args...)
}

func CRLExpiredError(msg string, args ...interface{}) error {
	return New(CRLExpired, msg, args...)
}

func CRLInvalidError(msg string, args ...interface{}) error {
	return New(CRLInvalid, msg, args...)
}

func ExtensionViolationError(msg string, args ...interface{}) error {
	return New(ExtensionViolation, msg, args...)
}

func AlgorithmNoncompliantError(msg string, args ...interface{}) error {
	return New(AlgorithmNoncompliant, msg, args...)
}

func DGHashMismatchError(msg string, args ...interface{}) error {
	return New(DGHashMismatch, msg, args...)
}

func SODSignatureInvalidError(msg string, args ...interface{}) error {
	return New(SODSignatureInvalid, msg, args...)
}

func DuplicateFileError(msg string, args ...interface{}) error {
	return New(DuplicateFile, msg, args...)
}

func DBErrorf(msg string, args ...interface{}) error {
	return New(DBError, msg, args...)
}

func LDAPErrorf(msg string, args ...interface{}) error {
	return New(LDAPError, msg, args...)
}
