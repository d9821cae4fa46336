package infra

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore resolves presigned preview URLs for artifacts held in
// S3-compatible storage. The broker never touches artifact bytes itself.
type ObjectStore struct {
	client     *minio.Client
	presignTTL time.Duration
}

// NewObjectStore connects to the configured S3 endpoint. When no endpoint is
// configured nil is returned and artifact listings fall back to plain storage
// URIs.
func NewObjectStore(cfg *Config) (*ObjectStore, error) {
	if cfg.S3Endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ObjectStore{client: client, presignTTL: ttl}, nil
}

// PresignGet returns a time-limited download URL for the object.
func (s *ObjectStore) PresignGet(ctx context.Context, bucket, key string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("object store not configured")
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, key, s.presignTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return u.String(), nil
}
