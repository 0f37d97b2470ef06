package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/llm-phish-guard/internal/adapters/storage"
	"github.com/mikey/llm-phish-guard/internal/config"
	"go.uber.org/zap"
)

// StorageFactory creates key-value stores based on configuration
type StorageFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config, logger *zap.Logger) *StorageFactory {
	return &StorageFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore creates the store selected by history.store
func (f *StorageFactory) CreateStore() (storage.Store, error) {
	historyCfg := f.cfg.GetHistory()

	f.logger.Debug("Creating history store", zap.String("store", historyCfg.Store))

	switch historyCfg.Store {
	case "memory":
		return storage.NewMemoryStore(f.logger), nil
	case "file":
		return storage.NewFileStore(historyCfg.FilePath, f.logger)
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(historyCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return storage.NewSQLiteStore(historyCfg.SQLitePath, f.logger)
	case "mysql":
		return storage.NewMySQLStore(historyCfg.MySQLDSN, f.logger)
	case "postgres":
		return storage.NewPostgresStore(historyCfg.PostgresDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported history store: %s", historyCfg.Store)
	}
}

// HistoryKey returns the storage key of the history log
func (f *StorageFactory) HistoryKey() string {
	return f.cfg.GetHistory().Key
}
