package ingest

import (
	"bytes"
	"encoding/gob"

	"github.com/beeker1121/goque"

	"github.com/icao-pkd/pkdmirror/core"
	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

// StageQueue is the disk-backed FIFO between MANUAL-mode ingestion stages,
// so a half-finished upload (parsed but not yet DB-saved, or DB-saved but
// not yet mirrored) survives a process restart instead of being lost.
type StageQueue struct {
	q *goque.Queue
}

// stagePayload is what's enqueued between manual stages: enough to resume
// the next stage without redoing the previous one. Exactly one of
// Artifacts (stage 1 -> stage 2) or CertificateIDs (stage 2 -> stage 3) is
// populated, selected by Stage.
type stagePayload struct {
	UploadID       string
	Stage          core.ProgressStage
	Artifacts      []parsedArtifact
	CertificateIDs []int64
}

// OpenStageQueue opens (or creates) the durable queue rooted at dataDir.
func OpenStageQueue(dataDir string) (*StageQueue, error) {
	q, err := goque.OpenQueue(dataDir)
	if err != nil {
		return nil, pkderrors.InternalServerError("opening stage queue at %s: %v", dataDir, err)
	}
	return &StageQueue{q: q}, nil
}

// Close releases the queue's on-disk handles.
func (sq *StageQueue) Close() error {
	return sq.q.Close()
}

// enqueueStage gob-encodes and pushes a stage payload.
func (sq *StageQueue) enqueueStage(payload stagePayload) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return pkderrors.InternalServerError("encoding stage payload for %s: %v", payload.UploadID, err)
	}
	if _, err := sq.q.Enqueue(buf.Bytes()); err != nil {
		return pkderrors.InternalServerError("enqueueing stage payload for %s: %v", payload.UploadID, err)
	}
	return nil
}

// dequeueStage pops and decodes the next stage payload, or returns
// goque.ErrEmpty unchanged when the queue is drained.
func (sq *StageQueue) dequeueStage() (stagePayload, error) {
	item, err := sq.q.Dequeue()
	if err != nil {
		return stagePayload{}, err
	}
	var payload stagePayload
	if err := gob.NewDecoder(bytes.NewReader(item.Value)).Decode(&payload); err != nil {
		return stagePayload{}, pkderrors.InternalServerError("decoding stage payload: %v", err)
	}
	return payload, nil
}

// dequeueStageFor takes out the first payload for uploadID/stage,
// re-enqueueing every other payload so other in-flight uploads aren't lost
// and keep their relative order. It cycles through the queue's current
// length exactly once, so a genuinely absent upload returns an
// InternalServer error rather than looping forever.
func (sq *StageQueue) dequeueStageFor(uploadID string, stage core.ProgressStage) (stagePayload, error) {
	remaining := sq.q.Length()
	var found *stagePayload
	for i := uint64(0); i < remaining; i++ {
		payload, err := sq.dequeueStage()
		if err != nil {
			return stagePayload{}, pkderrors.InternalServerError("reading stage queue for upload %s: %v", uploadID, err)
		}
		if found == nil && payload.UploadID == uploadID && payload.Stage == stage {
			found = &payload
			continue
		}
		if err := sq.enqueueStage(payload); err != nil {
			return stagePayload{}, err
		}
	}
	if found != nil {
		return *found, nil
	}
	return stagePayload{}, pkderrors.InternalServerError("upload %s has no pending %s stage queued", uploadID, stage)
}
