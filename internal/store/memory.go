package store

import (
	"context"
	"sync"
)

type memoryEntry struct {
	data    []byte
	version int64
}

// Memory is an in-process Store. It backs tests and private-backend
// deployments that do not need durability.
type Memory struct {
	mu    sync.Mutex
	blobs map[string]memoryEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]memoryEntry)}
}

// Read implements Store.
func (m *Memory) Read(ctx context.Context, path string) ([]byte, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.blobs[path]
	if !ok {
		return nil, 0, ErrNotExist
	}
	data := make([]byte, len(entry.data))
	copy(data, entry.data)
	return data, entry.version, nil
}

// CompareAndSwap implements Store.
func (m *Memory) CompareAndSwap(ctx context.Context, path string, expected int64, data []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.blobs[path]
	current := int64(0)
	if ok {
		current = entry.version
	}
	if current != expected {
		return 0, ErrConflict
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	next := current + 1
	m.blobs[path] = memoryEntry{data: stored, version: next}
	return next, nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}
