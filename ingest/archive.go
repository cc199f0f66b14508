package ingest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	pkderrors "github.com/icao-pkd/pkdmirror/errors"
)

// Archiver stores the raw bytes of an accepted upload, keyed by file hash,
// so a corrupted parse can be replayed from the untouched original.
type Archiver interface {
	Archive(ctx context.Context, fileHash string, raw []byte) (key string, err error)
}

// S3Archiver archives upload bytes to a single S3 bucket.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3Archiver builds an Archiver backed by client, storing objects under
// bucket.
func NewS3Archiver(client *s3.Client, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket}
}

// Archive uploads raw under a key derived from fileHash, so a duplicate
// upload's re-archive is a harmless overwrite of identical bytes.
func (a *S3Archiver) Archive(ctx context.Context, fileHash string, raw []byte) (string, error) {
	key := fmt.Sprintf("uploads/%s", fileHash)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(raw),
	})
	if err != nil {
		return "", pkderrors.InternalServerError("archiving upload %s to s3: %v", fileHash, err)
	}
	return key, nil
}

// NoopArchiver is used where S3 isn't configured (local/test deployments).
// Archival is a durability nicety, not a correctness requirement, so its
// absence never blocks ingestion.
type NoopArchiver struct{}

func (NoopArchiver) Archive(ctx context.Context, fileHash string, raw []byte) (string, error) {
	return "", nil
}
