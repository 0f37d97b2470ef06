package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of core.KeyValueStore.
// Nothing survives a restart.
type MemoryStore struct {
	values map[string]string
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
		logger: logger,
	}
}

// Get retrieves the value stored under key
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	return value, ok, nil
}

// Set stores value under key
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	s.logger.Debug("Stored value", zap.String("key", key), zap.Int("size", len(value)))
	return nil
}

// Remove deletes the value stored under key
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
