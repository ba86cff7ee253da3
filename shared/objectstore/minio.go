package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection settings for an S3-compatible backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL is prepended to object keys to form download URLs,
	// e.g. a CDN or reverse proxy in front of the bucket.
	PublicBaseURL string
}

// MinioStore implements Store on top of any S3-compatible service.
type MinioStore struct {
	client *minio.Client
	config *MinioConfig
	logger *slog.Logger
}

// NewMinioStore connects to the backend and verifies the bucket exists.
func NewMinioStore(ctx context.Context, config *MinioConfig, logger *slog.Logger) (*MinioStore, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", config.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", config.Bucket)
	}

	logger.Info("Object storage connected",
		slog.String("endpoint", config.Endpoint),
		slog.String("bucket", config.Bucket),
	)

	return &MinioStore{client: client, config: config, logger: logger}, nil
}

// Get returns a reader over the object's bytes.
func (s *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.config.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q: %w", key, err)
	}

	// GetObject is lazy; Stat forces the first request so a missing key is
	// reported here instead of on the first Read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat object %q: %w", key, err)
	}

	return obj, nil
}

// Put streams the reader into the bucket under key.
func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (PutResult, error) {
	info, err := s.client.PutObject(ctx, s.config.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to put object %q: %w", key, err)
	}

	s.logger.Debug("Object stored",
		slog.String("key", key),
		slog.Int64("size", info.Size),
	)

	return PutResult{
		URL:  s.publicURL(key),
		Size: info.Size,
	}, nil
}

func (s *MinioStore) publicURL(key string) string {
	base := strings.TrimSuffix(s.config.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if s.config.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, s.config.Endpoint, s.config.Bucket)
	}
	return base + "/" + key
}
