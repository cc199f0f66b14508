package ingest

import (
	"context"

	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
	"github.com/icao-pkd/pkdmirror/store"
)

// StageParse runs MANUAL mode's first explicit stage: parse the upload and
// queue the resulting artifacts for the operator-triggered validate/save
// stage. Unlike Submit, it returns before any certificate or CRL row is
// written; only the UploadRecord and any parse processing errors are.
func (p *Pipeline) StageParse(ctx context.Context, rec *core.UploadRecord, raw []byte) error {
	if p.queue == nil {
		return pkderrors.InternalServerError("manual-mode ingestion requires a stage queue")
	}

	rec.Status = core.UploadParsing
	rec.UpdatedAt = p.clk.Now()
	if err := store.UpdateUpload(p.ts, rec); err != nil {
		return err
	}

	artifacts, parseErrs := parseUpload(rec.Format, raw)
	for _, perr := range parseErrs {
		p.recordProcessingError(rec, core.ErrCategoryParse, perr)
	}
	if len(artifacts) == 0 {
		rec.Status = core.UploadFailed
		rec.ErrorMessage = "no usable certificates or CRLs found in upload"
		return store.UpdateUpload(p.ts, rec)
	}

	if err := p.queue.enqueueStage(stagePayload{
		UploadID:  rec.ID,
		Stage:     core.StageParsingCompleted,
		Artifacts: artifacts,
	}); err != nil {
		return err
	}

	rec.Status = core.UploadParsed
	rec.UpdatedAt = p.clk.Now()
	return store.UpdateUpload(p.ts, rec)
}

// StageValidateAndSave runs MANUAL mode's second explicit stage: pull the
// artifacts queued by StageParse, validate each against the Trust Store,
// and persist certificates and CRLs. It queues the resulting certificate
// IDs for the third stage rather than mirroring them to LDAP itself.
func (p *Pipeline) StageValidateAndSave(ctx context.Context, uploadID string) (*core.UploadRecord, error) {
	if p.queue == nil {
		return nil, pkderrors.InternalServerError("manual-mode ingestion requires a stage queue")
	}
	rec, err := store.SelectUpload(p.ts, uploadID)
	if err != nil {
		return nil, err
	}
	if rec.Status != core.UploadParsed {
		return nil, pkderrors.InternalServerError("upload %s is not awaiting the validate/save stage (status=%s)", uploadID, rec.Status)
	}

	payload, err := p.queue.dequeueStageFor(uploadID, core.StageParsingCompleted)
	if err != nil {
		return nil, err
	}

	rec.Status = core.UploadValidating
	rec.UpdatedAt = p.clk.Now()
	if err := store.UpdateUpload(p.ts, rec); err != nil {
		return nil, err
	}
	rec.Status = core.UploadSavingDB
	if err := store.UpdateUpload(p.ts, rec); err != nil {
		return nil, err
	}

	persisted := p.validateAndPersist(ctx, rec, payload.Artifacts)

	ids := make([]int64, 0, len(persisted))
	for _, cert := range persisted {
		ids = append(ids, cert.ID)
	}
	if err := p.queue.enqueueStage(stagePayload{
		UploadID:       rec.ID,
		Stage:          core.StageDBSavingCompleted,
		CertificateIDs: ids,
	}); err != nil {
		return nil, err
	}

	rec.Status = core.UploadDBSaved
	rec.UpdatedAt = p.clk.Now()
	if err := store.UpdateUpload(p.ts, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// StageMirrorToLDAP runs MANUAL mode's third and final explicit stage: pull
// the certificate IDs queued by StageValidateAndSave and mirror each to
// LDAP, bringing the upload to a terminal status.
func (p *Pipeline) StageMirrorToLDAP(ctx context.Context, uploadID string) (*core.UploadRecord, error) {
	if p.queue == nil {
		return nil, pkderrors.InternalServerError("manual-mode ingestion requires a stage queue")
	}
	rec, err := store.SelectUpload(p.ts, uploadID)
	if err != nil {
		return nil, err
	}
	if rec.Status != core.UploadDBSaved {
		return nil, pkderrors.InternalServerError("upload %s is not awaiting the LDAP stage (status=%s)", uploadID, rec.Status)
	}

	payload, err := p.queue.dequeueStageFor(uploadID, core.StageDBSavingCompleted)
	if err != nil {
		return nil, err
	}

	rec.Status = core.UploadSavingLDAP
	rec.UpdatedAt = p.clk.Now()
	if err := store.UpdateUpload(p.ts, rec); err != nil {
		return nil, err
	}

	certs := make([]*core.Certificate, 0, len(payload.CertificateIDs))
	for _, id := range payload.CertificateIDs {
		cert, err := store.SelectCertificateByID(p.ts, id)
		if err != nil {
			p.recordProcessingError(rec, core.ErrCategoryLDAPSave, err)
			continue
		}
		certs = append(certs, cert)
	}

	p.mirrorToLDAP(ctx, rec, certs)

	rec.UpdatedAt = p.clk.Now()
	if len(certs) < len(payload.CertificateIDs) {
		rec.Status = core.UploadCompletedWithErrors
	} else {
		rec.Status = core.UploadCompleted
	}
	if err := store.UpdateUpload(p.ts, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
