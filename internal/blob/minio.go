package blob

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"skychat/internal/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage stores blobs in a MinIO (or S3-compatible) bucket.
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	urlPrefix string
}

// NewMinioStorage connects to MinIO and ensures the bucket exists.
func NewMinioStorage(cfg *config.Config) (*MinioStorage, error) {
	client, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Minio.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Minio.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &MinioStorage{
		client:    client,
		bucket:    cfg.Minio.Bucket,
		urlPrefix: strings.TrimSuffix(cfg.Minio.URLPrefix, "/"),
	}, nil
}

// Save uploads the file under {owner}/{uuid}{ext} and returns the object path.
func (s *MinioStorage) Save(ctx context.Context, req SaveRequest) (string, error) {
	ext := filepath.Ext(req.FileName)
	owner := req.Owner
	if owner == "" {
		owner = "shared"
	}
	objectName := fmt.Sprintf("%s/%s%s", owner, uuid.New().String(), ext)

	_, err := s.client.PutObject(ctx, s.bucket, objectName, req.Reader, req.Size, minio.PutObjectOptions{
		ContentType: req.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload to minio: %w", err)
	}
	return objectName, nil
}

// URL resolves an object path to a reachable URL.
func (s *MinioStorage) URL(path string) string {
	return fmt.Sprintf("%s/%s/%s", s.urlPrefix, s.bucket, path)
}
