package validation

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/icao-pkd/pkdmirror/certdecode"
	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
	"github.com/icao-pkd/pkdmirror/store"
)

// checkRevocation looks up the current CRL for the certificate's issuer,
// verifies the CRL's own signature, and checks whether the certificate's
// serial appears in its revoked list as of asOf. A missing CRL is
// fail-open (WARNING) when the policy says so; a CRL that fails its own
// signature check is always fail-closed (CRITICAL), since trusting an
// unverified revocation list is worse than having none.
func (e *Engine) checkRevocation(ctx context.Context, desc *certdecode.Descriptor, asOf time.Time) (core.CRLStatus, core.CRLReason, error) {
	crlRow, err := e.currentCRL(ctx, core.CountryFromDN(desc.IssuerDN), desc.IssuerDN)
	if err != nil {
		if e.policy.FailOpenOnUnavailable {
			e.log.Warning("CRL unavailable, failing open", "issuer", desc.IssuerDN, "error", err.Error())
			return core.CRLStatusUnavailable, core.ReasonUnspecified, nil
		}
		return core.CRLStatusUnavailable, core.ReasonUnspecified,
			pkderrors.CRLUnavailableError("no CRL for issuer %s and fail-open disabled: %v", desc.IssuerDN, err)
	}

	if asOf.After(crlRow.NextUpdate) {
		return core.CRLStatusExpired, core.ReasonUnspecified,
			pkderrors.CRLExpiredError("CRL for %s expired at %s (checked at %s)", desc.IssuerDN, crlRow.NextUpdate, asOf)
	}

	crl, err := x509.ParseRevocationList(crlRow.DER)
	if err != nil {
		return core.CRLStatusInvalid, core.ReasonUnspecified,
			pkderrors.CRLInvalidError("parsing CRL for %s: %v", desc.IssuerDN, err)
	}

	candidates, err := e.candidateIssuers(ctx, core.CountryFromDN(desc.IssuerDN), desc.IssuerDN)
	if err != nil || len(candidates) == 0 {
		return core.CRLStatusInvalid, core.ReasonUnspecified,
			pkderrors.CRLInvalidError("no issuer certificate available to verify CRL for %s", desc.IssuerDN)
	}
	verified := false
	for _, candidate := range candidates {
		issuerDesc, derr := certdecode.DecodeDER(candidate.DER)
		if derr != nil {
			continue
		}
		if crl.CheckSignatureFrom(issuerDesc.Certificate()) == nil {
			verified = true
			break
		}
	}
	if !verified {
		return core.CRLStatusInvalid, core.ReasonUnspecified,
			pkderrors.CRLInvalidError("CRL for %s does not verify against any candidate issuer", desc.IssuerDN)
	}

	for _, revoked := range crl.RevokedCertificateEntries {
		if revoked.SerialNumber == nil {
			continue
		}
		if revoked.SerialNumber.Cmp(desc.Certificate().SerialNumber) == 0 {
			reason := core.CRLReason(revoked.ReasonCode)
			return core.CRLStatusRevoked, reason,
				pkderrors.RevokedError("certificate %s revoked for reason %s at %s",
					desc.Fingerprint, reason, revoked.RevocationTime)
		}
	}
	return core.CRLStatusValid, core.ReasonUnspecified, nil
}

// currentCRL is a read-through wrapper over store.SelectLatestCRL, the CRL
// counterpart to candidateIssuers.
func (e *Engine) currentCRL(ctx context.Context, country, issuerDN string) (*core.CRL, error) {
	if e.cache != nil {
		if crl, ok := e.cache.CurrentCRL(ctx, country, issuerDN); ok {
			return crl, nil
		}
	}
	crl, err := store.SelectLatestCRL(e.db, issuerDN)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.SetCurrentCRL(ctx, country, issuerDN, crl)
	}
	return crl, nil
}
