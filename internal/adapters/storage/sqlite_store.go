package storage

import (
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "SQLite",
	createTable: `
		CREATE TABLE IF NOT EXISTS kv_store (
			store_key TEXT PRIMARY KEY,
			store_value TEXT NOT NULL,
			updated_at TIMESTAMP
		)
	`,
	selectValue: `SELECT store_value FROM kv_store WHERE store_key = ?`,
	upsertValue: `INSERT OR REPLACE INTO kv_store (store_key, store_value, updated_at) VALUES (?, ?, ?)`,
	deleteValue: `DELETE FROM kv_store WHERE store_key = ?`,
}

// NewSQLiteStore creates a store in the SQLite database at dbPath
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLStore, error) {
	store, err := newSQLStore("sqlite3", dbPath, sqliteDialect, logger)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY
	store.db.SetMaxOpenConns(1)
	return store, nil
}
