package storage

import (
	"context"
	"sync"
)

// Memory keeps objects in process memory. Nothing survives a restart,
// which is fine for tests and throwaway environments.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}}
}

func (m *Memory) Name() string { return DriverMemory }

func (m *Memory) Put(ctx context.Context, key string, content []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(content))
	copy(stored, content)
	m.objects[key] = stored
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}
