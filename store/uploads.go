package store

import (
	"fmt"

	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

const uploadFields = "id, fileName, fileHash, format, status, archiveKey, cscaCount, dscCount, " +
	"dscNcCount, mlscCount, crlCount, mlCount, duplicateCount, errorMessage, createdAt, updatedAt"

// SelectUploadByHash returns the upload record with the given content hash,
// or nil if none exists. A hit here is the ingestion pipeline's
// duplicate-file detection: the same bytes uploaded twice never re-process.
func SelectUploadByHash(s OneSelector, fileHash string) (*core.UploadRecord, error) {
	var rec core.UploadRecord
	err := s.SelectOne(&rec, "SELECT "+uploadFields+" FROM uploads WHERE fileHash = ?", fileHash)
	if err != nil {
		return nil, nil // not found is not an error here; absence is the common case
	}
	return &rec, nil
}

// SelectUpload returns the upload record by its ID, used to serve
// GET /upload/{id}/status-equivalent queries and to resume a pending
// multi-stage ingestion.
func SelectUpload(s OneSelector, id string) (*core.UploadRecord, error) {
	var rec core.UploadRecord
	err := s.SelectOne(&rec, "SELECT "+uploadFields+" FROM uploads WHERE id = ?", id)
	if err != nil {
		return nil, pkderrors.New(pkderrors.InternalServer, "upload %s not found: %v", id, err)
	}
	return &rec, nil
}

// InsertUpload creates the upload row at the start of ingestion.
func InsertUpload(ins Inserter, rec *core.UploadRecord) error {
	if err := ins.Insert(rec); err != nil {
		return pkderrors.DBErrorf("inserting upload %s: %v", rec.ID, err)
	}
	return nil
}

// UpdateUpload persists the upload row's current counters and status. The
// ingestion pipeline calls this once per stage transition.
func UpdateUpload(up Updater, rec *core.UploadRecord) error {
	if _, err := up.Update(rec); err != nil {
		return pkderrors.DBErrorf("updating upload %s: %v", rec.ID, err)
	}
	return nil
}

// InsertProcessingError records one unrecoverable per-certificate failure
// against an upload, without failing the batch it belongs to.
func InsertProcessingError(ins Inserter, perr *core.ProcessingError) error {
	if err := ins.Insert(perr); err != nil {
		return pkderrors.DBErrorf("inserting processing error for upload %s: %v", perr.UploadID, err)
	}
	return nil
}

// SelectProcessingErrors returns every processing error recorded against an
// upload, for the final upload-summary response.
func SelectProcessingErrors(s Selector, uploadID string) ([]*core.ProcessingError, error) {
	var models []core.ProcessingError
	_, err := s.Select(&models,
		"SELECT id, uploadId, category, message, at FROM processing_errors WHERE uploadId = ? ORDER BY at ASC",
		uploadID,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting processing errors for upload %s: %w", uploadID, err)
	}
	out := make([]*core.ProcessingError, len(models))
	for i := range models {
		out[i] = &models[i]
	}
	return out, nil
}
