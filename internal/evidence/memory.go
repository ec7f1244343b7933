package evidence

import (
	"context"
	"fmt"
	"sync"

	"stagegate/internal/stage"
)

// MemoryStore is a threadsafe in-process [Store].
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	keys Keys
}

// NewMemoryStore creates an empty [MemoryStore]. A nil keys uses [DefaultKeys].
func NewMemoryStore(keys Keys) *MemoryStore {
	if keys == nil {
		keys = DefaultKeys()
	}
	return &MemoryStore{data: make(map[string][]byte), keys: keys}
}

// Evidence reports presence for every stage.
func (s *MemoryStore) Evidence(ctx context.Context) (stage.Evidence, error) {
	return collect(ctx, s.keys, s.Get)
}

// Get returns a copy of the data under key, or [ErrNotFound].
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

// Put stores a copy of data under key.
func (s *MemoryStore) Put(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("invalid evidence key: %q", key)
	}
	s.mu.Lock()
	s.data[key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}
