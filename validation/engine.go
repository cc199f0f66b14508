// Package validation implements the Validation Engine: for a given
// certificate, construct its trust chain, verify the signature of each
// link, check algorithm compliance, and check CRL revocation, all at a
// caller-supplied point in time, never wall-clock time, since Passive
// Authentication must judge validity as of the SOD's signingTime.
package validation

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"time"

	"github.com/jmhodges/clock"
	"github.com/titanous/rocacheck"
	zx509 "github.com/zmap/zcrypto/x509"
	"github.com/zmap/zlint/v3"
	"github.com/zmap/zlint/v3/lint"

	"github.com/icao-pkd/pkdmirror/certdecode"
	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
	"github.com/icao-pkd/pkdmirror/logging"
	"github.com/icao-pkd/pkdmirror/store"
)

// badSignatureAlgorithms are signature algorithms this directory treats as
// non-compliant: no MD2/MD5/SHA-1, no DSA. SHA1WithRSA is still common in
// older CSCA material, so it's flagged as a warning rather than rejected
// outright by AlgorithmCompliance.
var badSignatureAlgorithms = map[x509.SignatureAlgorithm]bool{
	x509.UnknownSignatureAlgorithm: true,
	x509.MD2WithRSA:                true,
	x509.MD5WithRSA:                true,
	x509.DSAWithSHA1:               true,
	x509.DSAWithSHA256:             true,
	x509.ECDSAWithSHA1:             true,
}

// RevocationPolicy controls how checkRevocation reports a missing CRL.
// ValidateChain does not reject a chain for a missing CRL under either
// setting: it records CRLStatusUnavailable and carries on. Only a CRL that
// fails its own signature check makes it fail closed.
type RevocationPolicy struct {
	// FailOpenOnUnavailable: if true, checkRevocation reports a missing CRL
	// as CRLStatusUnavailable with a nil error; if false, it also returns a
	// CRLUnavailable error, which ValidateChain does not act on.
	FailOpenOnUnavailable bool
}

// DefaultRevocationPolicy treats CRL unavailability as fail-open (warn),
// but a CRL that fails its own signature check as fail-closed (reject):
// an attacker-served CRL is worse than no CRL.
var DefaultRevocationPolicy = RevocationPolicy{FailOpenOnUnavailable: true}

// Engine runs chain construction, signature verification, algorithm
// compliance, and revocation checking against the Trust Store.
type Engine struct {
	db     store.SelectExecer
	clk    clock.Clock
	log    logging.Logger
	policy RevocationPolicy
	cache  *store.CertificateCache
}

// New builds an Engine reading candidate issuers and CRLs from db.
func New(db store.SelectExecer, clk clock.Clock, log logging.Logger, policy RevocationPolicy) *Engine {
	return &Engine{db: db, clk: clk, log: log, policy: policy}
}

// SetCache wires a read-through CertificateCache into the engine, so a
// bulk Master-List ingestion doesn't re-query the Trust Store for the same
// handful of CSCAs once per DSC. Passing nil disables caching again.
func (e *Engine) SetCache(cache *store.CertificateCache) {
	e.cache = cache
}

// ChainLink is one step of a constructed trust chain: the certificate and
// whether its signature against the next link up verified.
type ChainLink struct {
	Certificate       *core.Certificate
	SignatureVerified bool
	MatchedByDNOnly   bool
}

// ValidateChain builds and verifies the trust chain for desc against the
// Trust Store's candidate issuer set, checks point-in-time validity at
// asOf, checks algorithm compliance, and checks revocation. It never
// panics on a malformed or unverifiable chain; every failure mode is
// returned as a *pkderrors.PKDError with ValidationResult fields to match.
func (e *Engine) ValidateChain(ctx context.Context, desc *certdecode.Descriptor, asOf time.Time) (*core.ValidationResult, error) {
	start := e.clk.Now()
	result := &core.ValidationResult{
		ValidatedAt: e.clk.Now(),
	}

	if asOf.Before(desc.NotBefore) {
		result.Status = core.StatusNotYetValid
		result.ValidityCheckPassed = false
		result.DurationMS = e.clk.Since(start).Milliseconds()
		return result, pkderrors.NotYetValidError("certificate %s not valid until %s (checked at %s)",
			desc.Fingerprint, desc.NotBefore, asOf)
	}
	expired := asOf.After(desc.NotAfter)
	result.ValidityCheckPassed = !expired

	chain, matchedByDNOnly, err := e.buildChain(ctx, desc, asOf)
	if err != nil {
		result.Status = core.StatusInvalid
		result.TrustChainValid = false
		result.DurationMS = e.clk.Since(start).Milliseconds()
		return result, err
	}
	result.TrustChainValid = true
	result.SignatureVerified = true
	result.SignatureByDNOnly = matchedByDNOnly
	result.TrustChainPath = chainPath(chain)

	if err := AlgorithmCompliance(desc); err != nil {
		e.log.Warning("algorithm compliance warning", "fingerprint", desc.Fingerprint, "error", err.Error())
	}

	crlStatus, reason, err := e.checkRevocation(ctx, desc, asOf)
	result.CRLStatus = crlStatus
	result.RevocationReason = reason
	if err != nil && crlStatus == core.CRLStatusRevoked {
		result.Status = core.StatusRevoked
		result.DurationMS = e.clk.Since(start).Milliseconds()
		return result, err
	}
	if crlStatus == core.CRLStatusInvalid {
		// An unverifiable CRL is worse than none: fail closed, never fall
		// through to VALID/EXPIRED_VALID.
		result.Status = core.StatusInvalid
		result.DurationMS = e.clk.Since(start).Milliseconds()
		return result, err
	}

	switch {
	case expired:
		result.Status = core.StatusExpiredValid
	default:
		result.Status = core.StatusValid
	}
	result.DurationMS = e.clk.Since(start).Milliseconds()
	return result, nil
}

// buildChain walks from desc up to a self-signed CSCA, trying each
// candidate issuer sharing the subject DN in turn and stopping at the
// first whose public key actually verifies desc's signature: the policy
// key rollover requires, where several CSCAs can share a subject DN but
// only one holds the key that signed a given DSC.
func (e *Engine) buildChain(ctx context.Context, desc *certdecode.Descriptor, asOf time.Time) ([]ChainLink, bool, error) {
	candidates, err := e.candidateIssuers(ctx, core.CountryFromDN(desc.IssuerDN), desc.IssuerDN)
	if err != nil {
		return nil, false, pkderrors.CSCANotFoundError("no candidate issuer found for %s: %v", desc.IssuerDN, err)
	}
	if len(candidates) == 0 {
		return nil, false, pkderrors.CSCANotFoundError("no CSCA or link certificate with subject %s", desc.IssuerDN)
	}

	for _, candidate := range candidates {
		issuerDesc, err := certdecode.DecodeDER(candidate.DER)
		if err != nil {
			continue
		}
		if err := desc.Certificate().CheckSignatureFrom(issuerDesc.Certificate()); err != nil {
			continue
		}
		link := ChainLink{Certificate: candidate, SignatureVerified: true}
		if core.IsLC(candidate.Type, candidate.IsSelfSigned) {
			// Link certificate: keep walking to the real trust anchor.
			rest, _, err := e.buildChainFrom(ctx, candidate, asOf)
			if err != nil {
				return nil, false, err
			}
			return append([]ChainLink{link}, rest...), false, nil
		}
		return []ChainLink{link}, false, nil
	}
	return nil, true, pkderrors.CSCASelfSignatureFailedError(
		"no candidate issuer for %s verified the signature over %s", desc.IssuerDN, desc.Fingerprint)
}

// candidateIssuers is a read-through wrapper over store.SelectCandidateIssuers:
// a cache hit avoids the Trust Store round trip entirely; a miss falls back
// to the direct query and populates the cache for the next lookup of the
// same issuer.
func (e *Engine) candidateIssuers(ctx context.Context, country, issuerDN string) ([]*core.Certificate, error) {
	if e.cache != nil {
		if certs, ok := e.cache.CandidateIssuers(ctx, country, issuerDN); ok {
			return certs, nil
		}
	}
	certs, err := store.SelectCandidateIssuers(e.db, issuerDN)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.SetCandidateIssuers(ctx, country, issuerDN, certs)
	}
	return certs, nil
}

// buildChainFrom continues chain construction from an already-resolved
// link certificate up to its own issuer.
func (e *Engine) buildChainFrom(ctx context.Context, cert *core.Certificate, asOf time.Time) ([]ChainLink, bool, error) {
	certDesc, err := certdecode.DecodeDER(cert.DER)
	if err != nil {
		return nil, false, pkderrors.ParseErrorf("re-decoding link certificate %s: %v", cert.Fingerprint, err)
	}
	return e.buildChain(ctx, certDesc, asOf)
}

func chainPath(chain []ChainLink) string {
	path := ""
	for i, link := range chain {
		if i > 0 {
			path += " -> "
		}
		path += link.Certificate.SubjectDN
	}
	return path
}

// AlgorithmCompliance flags weak signature algorithms and ROCA-vulnerable
// RSA keys. It never blocks validation on its own; it reports a
// warning-level signal, not a chain-breaking failure, so callers log the
// returned error rather than aborting on it.
func AlgorithmCompliance(desc *certdecode.Descriptor) error {
	cert := desc.Certificate()
	if badSignatureAlgorithms[cert.SignatureAlgorithm] {
		return pkderrors.AlgorithmNoncompliantError(
			"certificate %s uses non-compliant signature algorithm %s", desc.Fingerprint, cert.SignatureAlgorithm)
	}
	if cert.SignatureAlgorithm == x509.SHA1WithRSA {
		return pkderrors.AlgorithmNoncompliantError(
			"certificate %s uses deprecated signature algorithm %s", desc.Fingerprint, cert.SignatureAlgorithm)
	}
	if rsaKey, ok := cert.PublicKey.(*rsa.PublicKey); ok && rocacheck.IsWeak(rsaKey.N) {
		return pkderrors.AlgorithmNoncompliantError(
			"certificate %s carries a ROCA-vulnerable RSA key", desc.Fingerprint)
	}
	return nil
}

// ExtensionCompliance runs the zlint X.509 extension lint set against the
// certificate and returns an error naming every finding at error level;
// warn findings are logged, not returned, since extension non-conformance
// is a warning unless it rises to a structural violation. Findings of any
// other status are neither logged nor returned.
func ExtensionCompliance(desc *certdecode.Descriptor, log logging.Logger) error {
	zc, err := zx509.ParseCertificate(desc.DER)
	if err != nil {
		return pkderrors.ParseErrorf("re-parsing %s for extension lint: %v", desc.Fingerprint, err)
	}
	result := zlint.LintCertificate(zc, lint.GlobalRegistry())
	var violations []string
	for name, lr := range result.Results {
		switch lr.Status {
		case lint.Error:
			violations = append(violations, name)
		case lint.Warn:
			log.Warning("extension lint warning", "fingerprint", desc.Fingerprint, "lint", name)
		}
	}
	if len(violations) > 0 {
		return pkderrors.ExtensionViolationError(
			"certificate %s failed extension lints: %v", desc.Fingerprint, violations)
	}
	return nil
}
