package storage

import (
	"github.com/mikey/llm-phish-guard/internal/core"
)

// Store is a key-value store holding resources that must be released
type Store interface {
	core.KeyValueStore
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLStore)(nil)
)
