package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	// HistoryCapacity is the maximum number of entries kept
	HistoryCapacity = 50
	// DefaultHistoryKey is the storage key of the persisted log
	DefaultHistoryKey = "phishGuardHistory"
)

// HistoryStore is the newest-first, capacity-bounded log of past analyses.
// Every mutation is written through to the key-value store before it
// becomes visible; persistence problems are logged, never returned.
type HistoryStore struct {
	mu      sync.RWMutex
	kv      KeyValueStore
	key     string
	logger  *zap.Logger
	entries []HistoryEntry
}

// NewHistoryStore creates an empty store; call Load once at startup
func NewHistoryStore(kv KeyValueStore, logger *zap.Logger, key string) *HistoryStore {
	if key == "" {
		key = DefaultHistoryKey
	}
	return &HistoryStore{
		kv:     kv,
		key:    key,
		logger: logger,
	}
}

// Load replaces the in-memory log with the persisted one. Corrupt data is
// logged, removed from storage and replaced by an empty log.
func (s *HistoryStore) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil

	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.Error("Failed to read history", zap.String("key", s.key), zap.Error(err))
		return
	}
	if !ok {
		s.logger.Debug("No persisted history", zap.String("key", s.key))
		return
	}

	entries, err := decodeHistory(raw)
	if err != nil {
		corrupt := &PersistenceCorruptionError{Key: s.key, Err: err}
		s.logger.Warn("Discarding corrupt history", zap.Error(corrupt))
		if err := s.kv.Remove(ctx, s.key); err != nil {
			s.logger.Error("Failed to remove corrupt history", zap.String("key", s.key), zap.Error(err))
		}
		return
	}

	if len(entries) > HistoryCapacity {
		entries = entries[:HistoryCapacity]
	}
	s.entries = entries
	s.logger.Info("Loaded history", zap.Int("entries", len(entries)))
}

// Append inserts entry at the head, evicting the oldest entries past the
// capacity, and persists the resulting log
func (s *HistoryStore) Append(ctx context.Context, entry HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Result = entry.Result.clone()

	keep := len(s.entries)
	if keep > HistoryCapacity-1 {
		keep = HistoryCapacity - 1
	}
	updated := make([]HistoryEntry, 0, keep+1)
	updated = append(updated, entry)
	updated = append(updated, s.entries[:keep]...)

	if err := s.persistLocked(ctx, updated); err != nil {
		s.logger.Error("Failed to persist history", zap.String("key", s.key), zap.Error(err))
	}
	s.entries = updated
}

// Clear empties the log and removes the persisted record
func (s *HistoryStore) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	if err := s.kv.Remove(ctx, s.key); err != nil {
		s.logger.Error("Failed to remove history", zap.String("key", s.key), zap.Error(err))
		return
	}
	s.logger.Info("History cleared")
}

// Entries returns the log newest-first
func (s *HistoryStore) Entries() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]HistoryEntry, len(s.entries))
	copy(entries, s.entries)
	return entries
}

// Len returns the number of entries
func (s *HistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get looks up an entry by id
func (s *HistoryStore) Get(id string) (HistoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return HistoryEntry{}, false
}

func (s *HistoryStore) persistLocked(ctx context.Context, entries []HistoryEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	return s.kv.Set(ctx, s.key, string(data))
}

func decodeHistory(raw string) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("entry %d has no id", i)
		}
		if !e.Kind.Valid() {
			return nil, fmt.Errorf("entry %d has unknown kind %q", i, e.Kind)
		}
		if err := e.Result.validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return entries, nil
}
