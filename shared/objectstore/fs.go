package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FSStore implements Store on a local directory. Intended for development
// and single-node deployments; keys map directly to relative file paths.
type FSStore struct {
	root    string
	baseURL string
	logger  *slog.Logger
}

// NewFSStore creates the root directory if needed.
func NewFSStore(root, baseURL string, logger *slog.Logger) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %q: %w", root, err)
	}
	return &FSStore{
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Get opens the file backing the key.
func (s *FSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open object %q: %w", key, err)
	}
	return f, nil
}

// Put writes to a temp file first and renames into place so readers never
// observe a half-written object.
func (s *FSStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (PutResult, error) {
	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return PutResult{}, fmt.Errorf("failed to create directory for %q: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to create temp file for %q: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to write object %q: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return PutResult{}, fmt.Errorf("failed to finalize object %q: %w", key, err)
	}

	s.logger.Debug("Object stored",
		slog.String("key", key),
		slog.Int64("size", written),
	)

	return PutResult{
		URL:  s.baseURL + "/" + key,
		Size: written,
	}, nil
}
