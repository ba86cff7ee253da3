// Package objectstore abstracts durable blob storage for receipt files and
// finished export artifacts. The worker treats it as an opaque get/put-bytes
// service; adapters exist for S3-compatible backends, the local filesystem
// and an in-memory store for tests.
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// PutResult describes a stored object.
type PutResult struct {
	URL  string
	Size int64
}

// Store is the blob storage contract. Put may be called with size -1 when
// the total length is not known up front (streaming archives).
type Store interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (PutResult, error)
}
