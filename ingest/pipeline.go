// Package ingest implements the Ingestion Pipeline: parse, validate,
// persist to the Trust Store, and mirror to LDAP, in either one AUTO-mode
// request or three separately-triggered MANUAL-mode stages.
package ingest

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"

	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkdmirror/certdecode"
	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
	"github.com/icao-pkd/pkdmirror/ldapmirror"
	"github.com/icao-pkd/pkdmirror/logging"
	"github.com/icao-pkd/pkdmirror/metrics"
	"github.com/icao-pkd/pkdmirror/store"
	"github.com/icao-pkd/pkdmirror/validation"
)

// Pipeline wires the Trust Store, LDAP Mirror, Validation Engine, and
// archival together behind the two ingestion modes.
type Pipeline struct {
	ts       *store.TrustStore
	mirror   *ldapmirror.Mirror
	engine   *validation.Engine
	archiver Archiver
	queue    *StageQueue
	clk      clock.Clock
	log      logging.Logger
	scope    metrics.Scope
}

// New builds a Pipeline. queue may be nil when MANUAL-mode durability isn't
// needed (tests, single-shot AUTO-only deployments).
func New(ts *store.TrustStore, mirror *ldapmirror.Mirror, engine *validation.Engine,
	archiver Archiver, queue *StageQueue, clk clock.Clock, log logging.Logger, scope metrics.Scope) *Pipeline {
	return &Pipeline{ts: ts, mirror: mirror, engine: engine, archiver: archiver, queue: queue, clk: clk, log: log, scope: scope}
}

// ErrDuplicateFile is returned, wrapping a *pkderrors.PKDError of kind
// DuplicateFile, when an upload's content hash matches an existing
// UploadRecord. The existing record's ID is exposed on the returned error
// detail so callers can surface a 409 carrying the original uploadId.
type ErrDuplicateFile struct {
	ExistingUploadID string
}

func (e *ErrDuplicateFile) Error() string {
	return pkderrors.DuplicateFileError("duplicate upload, existing uploadId=%s", e.ExistingUploadID).Error()
}

// Submit runs AUTO mode end to end: parse, validate, DB save, LDAP save,
// all within this call, emitting ordered progress events on the returned
// channel. The channel is closed when the upload reaches a terminal state
// (COMPLETED, FAILED, or COMPLETED_WITH_ERRORS).
func (p *Pipeline) Submit(ctx context.Context, fileName string, format core.UploadFormat, raw []byte) (*core.UploadRecord, <-chan core.ProgressEvent, error) {
	sum := sha256.Sum256(raw)
	fileHash := hex.EncodeToString(sum[:])

	if existing, _ := store.SelectUploadByHash(p.ts, fileHash); existing != nil {
		return nil, nil, &ErrDuplicateFile{ExistingUploadID: existing.ID}
	}

	rec := &core.UploadRecord{
		ID:        newUploadID(p.clk),
		FileName:  fileName,
		FileHash:  fileHash,
		Format:    format,
		Status:    core.UploadPending,
		CreatedAt: p.clk.Now(),
		UpdatedAt: p.clk.Now(),
	}
	if p.archiver != nil {
		if key, err := p.archiver.Archive(ctx, fileHash, raw); err == nil {
			rec.ArchiveKey = key
		} else {
			p.log.Warning("archival failed, continuing without it", "upload", rec.ID, "error", err.Error())
		}
	}
	if err := store.InsertUpload(p.ts, rec); err != nil {
		return nil, nil, err
	}

	events := make(chan core.ProgressEvent, 16)
	go p.run(ctx, rec, raw, events)
	return rec, events, nil
}

func (p *Pipeline) run(ctx context.Context, rec *core.UploadRecord, raw []byte, events chan<- core.ProgressEvent) {
	defer close(events)
	emit := func(stage core.ProgressStage, processed, total int, errMsg string) {
		events <- core.ProgressEvent{
			UploadID:       rec.ID,
			Stage:          stage,
			Percentage:     stage.Percentage(),
			ProcessedCount: processed,
			TotalCount:     total,
			ErrorMessage:   errMsg,
			At:             p.clk.Now(),
		}
	}
	emit(core.StageConnected, 0, 0, "")

	rec.Status = core.UploadParsing
	_ = store.UpdateUpload(p.ts, rec)
	emit(core.StageParsingStarted, 0, 0, "")

	artifacts, parseErrs := parseUpload(rec.Format, raw)
	for _, perr := range parseErrs {
		p.recordProcessingError(rec, core.ErrCategoryParse, perr)
	}
	if len(artifacts) == 0 {
		rec.Status = core.UploadFailed
		rec.ErrorMessage = "no usable certificates or CRLs found in upload"
		_ = store.UpdateUpload(p.ts, rec)
		emit(core.StageFailed, 0, 0, rec.ErrorMessage)
		return
	}
	emit(core.StageParsingCompleted, len(artifacts), len(artifacts), "")

	rec.Status = core.UploadValidating
	_ = store.UpdateUpload(p.ts, rec)
	emit(core.StageValidationStarted, 0, len(artifacts), "")

	rec.Status = core.UploadSavingDB
	_ = store.UpdateUpload(p.ts, rec)
	emit(core.StageDBSavingStarted, 0, len(artifacts), "")

	persisted := p.validateAndPersist(ctx, rec, artifacts)
	emit(core.StageDBSavingCompleted, len(persisted), len(artifacts), "")

	rec.Status = core.UploadSavingLDAP
	_ = store.UpdateUpload(p.ts, rec)
	emit(core.StageLDAPSavingStarted, 0, len(persisted), "")

	p.mirrorToLDAP(ctx, rec, persisted)
	emit(core.StageLDAPSavingCompleted, len(persisted), len(persisted), "")

	rec.UpdatedAt = p.clk.Now()
	if rec.DuplicateCount > 0 && len(persisted) < len(artifacts) {
		rec.Status = core.UploadCompletedWithErrors
	} else {
		rec.Status = core.UploadCompleted
	}
	_ = store.UpdateUpload(p.ts, rec)
	emit(core.StageCompleted, len(persisted), len(artifacts), "")
}

// validateAndPersist runs each artifact through decode, duplicate check,
// the Validation Engine, and a DB insert, counting results into rec. It
// never aborts the batch on one bad artifact.
func (p *Pipeline) validateAndPersist(ctx context.Context, rec *core.UploadRecord, artifacts []parsedArtifact) []*core.Certificate {
	var persisted []*core.Certificate
	for _, art := range artifacts {
		if art.Kind == artifactCRL {
			p.persistCRL(ctx, rec, art)
			continue
		}

		desc, err := certdecode.DecodeDER(art.DER)
		if err != nil {
			p.recordProcessingError(rec, core.ErrCategoryParse, err)
			continue
		}
		if existing, _ := store.SelectCertificateByFingerprint(p.ts, desc.Fingerprint); existing != nil {
			rec.DuplicateCount++
			continue
		}

		certType := art.CertType
		if certType == core.CertTypeCSCA && !desc.IsSelfSigned {
			certType = core.CertTypeLC
		}

		cert := &core.Certificate{
			Type:               certType,
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
			IsLinkCertificate:  core.IsLC(certType, desc.IsSelfSigned),
			ValidationStatus:   core.StatusPending,
			SourceType:         sourceTypeFor(rec.Format),
			SourceContext:      sourceContextFor(rec.ID, art.SourceContext),
			CreatedAt:          p.clk.Now(),
		}
		if err := store.InsertCertificate(p.ts, cert); err != nil {
			p.recordProcessingError(rec, core.ErrCategoryDBSave, err)
			continue
		}
		if certType == core.CertTypeCSCA || certType == core.CertTypeLC {
			p.ts.InvalidateCache(ctx, cert.Country, cert.SubjectDN)
		}
		bumpTypeCount(rec, certType)

		if certType != core.CertTypeCSCA && certType != core.CertTypeLC {
			result, verr := p.engine.ValidateChain(ctx, desc, p.clk.Now())
			if verr != nil {
				p.log.Warning("validation failed", "fingerprint", desc.Fingerprint, "error", verr.Error())
			}
			if result != nil {
				result.CertificateID = cert.ID
				_ = store.InsertValidationResult(p.ts, result)
				_ = store.UpdateValidationStatus(p.ts, cert, result.Status)
			}
		}
		persisted = append(persisted, cert)
	}
	return persisted
}

func (p *Pipeline) persistCRL(ctx context.Context, rec *core.UploadRecord, art parsedArtifact) {
	list, err := x509.ParseRevocationList(art.DER)
	if err != nil {
		p.recordProcessingError(rec, core.ErrCategoryParse, pkderrors.ParseErrorf("parsing CRL: %v", err))
		return
	}
	fp := sha256.Sum256(list.Raw)
	issuerDN := list.Issuer.String()
	crl := &core.CRL{
		Country:      core.CountryFromDN(issuerDN),
		IssuerDN:     issuerDN,
		Fingerprint:  hex.EncodeToString(fp[:]),
		ThisUpdate:   list.ThisUpdate.UTC(),
		NextUpdate:   list.NextUpdate.UTC(),
		CRLNumber:    list.Number.String(),
		RevokedCount: len(list.RevokedCertificateEntries),
		DER:          art.DER,
		CreatedAt:    p.clk.Now(),
	}
	if err := store.InsertCRL(p.ts, crl); err != nil {
		p.recordProcessingError(rec, core.ErrCategoryDBSave, err)
		return
	}
	p.ts.InvalidateCache(ctx, crl.Country, crl.IssuerDN)
	rec.CRLCount++
}

func (p *Pipeline) mirrorToLDAP(ctx context.Context, rec *core.UploadRecord, certs []*core.Certificate) {
	for _, cert := range certs {
		if err := p.mirror.AddCertificate(ctx, cert); err != nil {
			p.recordProcessingError(rec, core.ErrCategoryLDAPSave, err)
			continue
		}
		_ = store.MarkStoredInLDAP(p.ts, cert, true)
	}
}

func (p *Pipeline) recordProcessingError(rec *core.UploadRecord, category core.ProcessingErrorCategory, err error) {
	p.log.Warning("processing error", "upload", rec.ID, "category", category, "error", err.Error())
	_ = store.InsertProcessingError(p.ts, &core.ProcessingError{
		UploadID: rec.ID,
		Category: category,
		Message:  err.Error(),
		At:       p.clk.Now(),
	})
}

func bumpTypeCount(rec *core.UploadRecord, t core.CertType) {
	switch t {
	case core.CertTypeCSCA, core.CertTypeLC:
		rec.CSCACount++
	case core.CertTypeDSC:
		rec.DSCCount++
	case core.CertTypeDSCNC:
		rec.DSCNCCount++
	case core.CertTypeMLSC:
		rec.MLSCCount++
	}
}

func sourceTypeFor(format core.UploadFormat) core.SourceType {
	if format == core.FormatML {
		return core.SourceMasterList
	}
	return core.SourceUpload
}

// sourceContextFor builds the persisted source_context JSON blob for a
// certificate, stamping in the upload that produced it alongside whatever
// parse-time context the artifact already carries (e.g. a Master List
// CSCA's mlscFingerprint). Returns nil when there's no parse-time context
// to attach, rather than persisting an {"mlUploadId": ...}-only blob for
// every ordinary upload.
func sourceContextFor(uploadID string, parseContext map[string]string) []byte {
	if len(parseContext) == 0 {
		return nil
	}
	ctx := make(map[string]string, len(parseContext)+1)
	for k, v := range parseContext {
		ctx[k] = v
	}
	ctx["mlUploadId"] = uploadID
	encoded, err := json.Marshal(ctx)
	if err != nil {
		return nil
	}
	return encoded
}

func newUploadID(clk clock.Clock) string {
	now := clk.Now().UTC()
	return "up-" + now.Format("20060102T150405.000000000")
}
