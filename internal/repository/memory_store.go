package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/iconidentify/cardvault/internal/domain"
)

// InMemoryKeyValueStore is a process-local store. Nothing survives a restart.
type InMemoryKeyValueStore struct {
	mu            sync.RWMutex
	values        map[string][]byte
	maxValueBytes int64
}

// NewInMemoryKeyValueStore creates an empty in-memory store.
func NewInMemoryKeyValueStore(maxValueBytes int64) *InMemoryKeyValueStore {
	return &InMemoryKeyValueStore{
		values:        make(map[string][]byte),
		maxValueBytes: maxValueBytes,
	}
}

// Get returns a copy of the stored value.
func (s *InMemoryKeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value.
func (s *InMemoryKeyValueStore) Set(ctx context.Context, key string, value []byte) error {
	if s.maxValueBytes > 0 && int64(len(value)) > s.maxValueBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", domain.ErrQuotaExceeded, key, len(value), s.maxValueBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

// Remove deletes key.
func (s *InMemoryKeyValueStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Keys lists stored keys.
func (s *InMemoryKeyValueStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op.
func (s *InMemoryKeyValueStore) Close() error {
	return nil
}
