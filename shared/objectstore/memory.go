package objectstore

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryStore is an in-memory Store used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Get returns a reader over a copy of the stored bytes.
func (s *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Put consumes the reader and stores the bytes under key.
func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (PutResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return PutResult{}, err
	}

	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()

	return PutResult{
		URL:  "memory://" + key,
		Size: int64(len(data)),
	}, nil
}

// SetObject seeds the store, bypassing Put. Test helper.
func (s *MemoryStore) SetObject(key string, data []byte) {
	s.mu.Lock()
	s.objects[key] = append([]byte(nil), data...)
	s.mu.Unlock()
}

// Object returns the stored bytes and whether the key exists. Test helper.
func (s *MemoryStore) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}
