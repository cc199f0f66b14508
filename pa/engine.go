// Package pa implements Passive Authentication verification and DSC
// auto-registration: given a SOD and a set of data group contents, verify
// the document signer's chain of trust, the SOD's own CMS signature, and
// every supplied data group's hash, then register any previously-unseen
// DSC the SOD reveals.
package pa

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkdmirror/certdecode"
	"github.com/icao-pkd/pkdmirror/cms"
	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
	"github.com/icao-pkd/pkdmirror/logging"
	"github.com/icao-pkd/pkdmirror/metrics"
	"github.com/icao-pkd/pkdmirror/store"
	"github.com/icao-pkd/pkdmirror/validation"
)

// Engine runs Passive Authentication checks against the Trust Store's
// Validation Engine.
type Engine struct {
	ts         *store.TrustStore
	validation *validation.Engine
	clk        clock.Clock
	log        logging.Logger
	scope      metrics.Scope
}

// New builds a PA verification Engine.
func New(ts *store.TrustStore, validationEngine *validation.Engine, clk clock.Clock, log logging.Logger, scope metrics.Scope) *Engine {
	return &Engine{ts: ts, validation: validationEngine, clk: clk, log: log, scope: scope}
}

// Verify runs the full Passive Authentication algorithm: parse the SOD,
// validate the embedded DSC's chain as of the SOD's own signing time,
// verify the CMS signature, and check every supplied data group's hash.
// The returned *core.PaVerification is already persisted; DSC
// auto-registration has already been attempted (best-effort, failures
// only logged) by the time this returns.
func (e *Engine) Verify(ctx context.Context, req core.PaVerifyRequest) (*core.PaVerification, []core.DataGroupResult, error) {
	start := e.clk.Now()

	sod, err := cms.ParseSOD(req.SOD)
	if err != nil {
		return nil, nil, err
	}

	if len(sod.SignerCert) == 0 {
		return nil, nil, pkderrors.ParseErrorf("SOD carries no recoverable signer certificate")
	}
	dscDesc, err := certdecode.DecodeDER(sod.SignerCert)
	if err != nil {
		return nil, nil, pkderrors.ParseErrorf("decoding DSC embedded in SOD: %v", err)
	}

	signingTime, hasSigningTime := sod.SigningTime()
	asOf := e.clk.Now()
	if hasSigningTime {
		asOf = signingTime
	}

	country := req.Country
	if country == "" {
		country = core.CountryFromDN(dscDesc.SubjectDN)
	}

	pv := &core.PaVerification{
		ID:             newVerificationID(e.clk),
		IssuingCountry: country,
		DocumentNumber: req.DocumentNumber,
		CreatedAt:      e.clk.Now(),
	}
	if hasSigningTime {
		t := signingTime
		pv.SigningTime = &t
	}

	chainResult, chainErr := e.validation.ValidateChain(ctx, dscDesc, asOf)
	if chainErr != nil {
		e.log.Warning("PA chain validation error", "dsc", dscDesc.Fingerprint, "error", chainErr.Error())
	}
	pv.ChainValid = chainResult != nil && chainResult.Status == core.StatusValid

	sigErr := sod.Verify()
	pv.SODSignatureValid = sigErr == nil
	if sigErr != nil {
		e.log.Warning("PA SOD signature verification failed", "error", sigErr.Error())
	}

	results := compareDataGroups(sod, req.DataGroups)
	pv.TotalGroups = len(results)
	for _, r := range results {
		if r.Valid {
			pv.ValidGroups++
		}
	}

	switch {
	case pv.ChainValid && pv.SODSignatureValid && pv.ValidGroups == pv.TotalGroups:
		pv.Status = core.PAValid
	default:
		pv.Status = core.PAInvalid
	}
	pv.DurationMS = e.clk.Now().Sub(start).Milliseconds()

	if err := store.InsertPaVerification(e.ts, pv, results); err != nil {
		return nil, nil, err
	}

	e.scope.Inc("pa_verifications."+string(pv.Status), 1)
	e.registerDSC(dscDesc, pv)

	return pv, results, nil
}

// compareDataGroups computes, for every DG the caller supplied, the digest
// under the SOD's declared hash algorithm and compares it to the
// LDSSecurityObject's declared hash for that DG number. An empty
// dataGroups map yields zero results: a chain+signature-only verification
// is a WARNING-worthy but allowed outcome.
func compareDataGroups(sod *cms.SOD, dataGroups map[int][]byte) []core.DataGroupResult {
	if len(dataGroups) == 0 {
		return nil
	}
	numbers := make([]int, 0, len(dataGroups))
	for n := range dataGroups {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	results := make([]core.DataGroupResult, 0, len(numbers))
	for _, n := range numbers {
		declared, ok := sod.DataGroupHashes[n]
		result := core.DataGroupResult{Number: n}
		if !ok {
			results = append(results, result)
			continue
		}
		result.Declared = hex.EncodeToString(declared)
		h, err := newHasher(sod.HashAlgorithmOID)
		if err != nil {
			results = append(results, result)
			continue
		}
		h.Write(dataGroups[n])
		computed := h.Sum(nil)
		result.Computed = hex.EncodeToString(computed)
		result.Valid = hex.EncodeToString(declared) == result.Computed
		results = append(results, result)
	}
	return results
}

// registerDSC registers a previously-unseen DSC the SOD's chain revealed:
// best-effort, failures logged but never surfaced, never altering the PA
// result already computed.
func (e *Engine) registerDSC(desc *certdecode.Descriptor, pv *core.PaVerification) {
	if existing, _ := store.SelectCertificateByFingerprint(e.ts, desc.Fingerprint); existing != nil {
		return
	}
	sourceContext, err := json.Marshal(map[string]string{
		"verificationId":     pv.ID,
		"verificationStatus": string(pv.Status),
	})
	if err != nil {
		e.log.Warning("encoding DSC auto-registration source context failed", "fingerprint", desc.Fingerprint, "error", err.Error())
		return
	}
	cert := &core.Certificate{
		Type:               core.CertTypeDSC,
		Country:            core.CountryFromDN(desc.SubjectDN),
		SubjectDN:          desc.SubjectDN,
		IssuerDN:           desc.IssuerDN,
		SerialHex:          desc.SerialHex,
		NotBefore:          desc.NotBefore,
		NotAfter:           desc.NotAfter,
		Fingerprint:        desc.Fingerprint,
		DER:                desc.DER,
		SignatureAlgorithm: desc.SignatureAlgorithm,
		KeyAlgorithm:       desc.KeyAlgorithm,
		KeySizeBits:        desc.KeySizeBits,
		IsSelfSigned:       desc.IsSelfSigned,
		ValidationStatus:   core.StatusPending,
		SourceType:         core.SourcePAExtracted,
		SourceContext:      sourceContext,
		CreatedAt:          e.clk.Now(),
	}
	if err := store.InsertCertificate(e.ts, cert); err != nil {
		e.log.Warning("DSC auto-registration failed", "fingerprint", desc.Fingerprint, "error", err.Error())
	}
}

func newVerificationID(clk clock.Clock) string {
	return "pa-" + clk.Now().UTC().Format("20060102T150405.000000000")
}
