package storage

import (
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var postgresDialect = dialect{
	name: "PostgreSQL",
	createTable: `
		CREATE TABLE IF NOT EXISTS kv_store (
			store_key TEXT PRIMARY KEY,
			store_value TEXT NOT NULL,
			updated_at TIMESTAMPTZ
		)
	`,
	selectValue: `SELECT store_value FROM kv_store WHERE store_key = $1`,
	upsertValue: `
		INSERT INTO kv_store (store_key, store_value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (store_key) DO UPDATE SET store_value = EXCLUDED.store_value, updated_at = EXCLUDED.updated_at
	`,
	deleteValue: `DELETE FROM kv_store WHERE store_key = $1`,
}

// NewPostgresStore creates a store in the PostgreSQL database at dsn
func NewPostgresStore(dsn string, logger *zap.Logger) (*SQLStore, error) {
	return newSQLStore("postgres", dsn, postgresDialect, logger)
}
