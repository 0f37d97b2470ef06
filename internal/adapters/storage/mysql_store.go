package storage

import (
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "MySQL",
	createTable: `
		CREATE TABLE IF NOT EXISTS kv_store (
			store_key VARCHAR(255) PRIMARY KEY,
			store_value LONGTEXT NOT NULL,
			updated_at TIMESTAMP
		)
	`,
	selectValue: `SELECT store_value FROM kv_store WHERE store_key = ?`,
	upsertValue: `
		INSERT INTO kv_store (store_key, store_value, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE store_value = VALUES(store_value), updated_at = VALUES(updated_at)
	`,
	deleteValue: `DELETE FROM kv_store WHERE store_key = ?`,
}

// NewMySQLStore creates a store in the MySQL database at dsn
func NewMySQLStore(dsn string, logger *zap.Logger) (*SQLStore, error) {
	return newSQLStore("mysql", dsn, mysqlDialect, logger)
}
