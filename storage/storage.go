// Package storage provides the object store used for uploads, prepared
// training data and model artifacts.
package storage

import (
	"context"
	"fmt"
	"io"
)

// ObjectStore is the blob-store contract. Keys follow the per-user layout
// below; any key-value blob store satisfies it.
type ObjectStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	URI(key string) string
}

// UploadKey is the object key for a user-uploaded source file.
func UploadKey(userID, fileID, originalName string) string {
	return fmt.Sprintf("users/%s/uploads/%s_%s", userID, fileID, originalName)
}

// TrainingDataKey is the object key for a job's prepared record file.
func TrainingDataKey(userID, jobID string) string {
	return fmt.Sprintf("users/%s/training-data/%s/train.ndjson", userID, jobID)
}

// ModelOutputPrefix is the key prefix under which the backend writes the
// job's model artifacts.
func ModelOutputPrefix(userID, jobID string) string {
	return fmt.Sprintf("users/%s/models/%s/output/", userID, jobID)
}
