package objectstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrObjectNotFound indicates a download or stat for a key that was never
// uploaded.
var ErrObjectNotFound = errors.New("object not found")

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore is an in-memory core.BlobStore used by tests and local
// development. It mirrors the overwrite semantics of the NATS store.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject

	// Uploads counts Upload calls, letting tests assert the low-condition
	// artifact is generated at most once.
	Uploads int
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: map[string]memoryObject{},
	}
}

// Upload stores data at key, replacing any previous content.
func (m *MemoryStore) Upload(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)

	m.objects[key] = memoryObject{data: buf, contentType: contentType}
	m.Uploads++

	return nil
}

// Exists reports whether key holds an object.
func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[key]

	return ok, nil
}

// Download returns a copy of the object at key.
func (m *MemoryStore) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}

	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)

	return buf, nil
}

// ContentType returns the content type stored with key.
func (m *MemoryStore) ContentType(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}

	return obj.contentType, nil
}
