package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOStore is the MinIO/S3-compatible ObjectStore. All objects live in a
// single bucket; keys carry the per-user layout.
type MinIOStore struct {
	client *minio.Client
	bucket string
	log    *zap.SugaredLogger
}

// MinIOConfig holds MinIO connection configuration.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinIOStore creates a MinIO-backed object store.
func NewMinIOStore(cfg MinIOConfig, log *zap.SugaredLogger) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}
	log.Infof("MinIO client initialized (endpoint: %s, bucket: %s)", cfg.Endpoint, cfg.Bucket)
	return &MinIOStore{client: client, bucket: cfg.Bucket, log: log}, nil
}

// EnsureBucket creates the store's bucket if it doesn't exist.
func (m *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		m.log.Infof("Creating bucket: %s", m.bucket)
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// Put uploads an object.
func (m *MinIOStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	info, err := m.client.PutObject(ctx, m.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	m.log.Infof("Object uploaded: %s/%s (size: %d bytes)", m.bucket, key, info.Size)
	return nil
}

// Get retrieves an object.
func (m *MinIOStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	// GetObject is lazy; surface missing objects here.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return obj, nil
}

// URI returns the s3-style URI for a key, as handed to the training backend.
func (m *MinIOStore) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", m.bucket, key)
}
