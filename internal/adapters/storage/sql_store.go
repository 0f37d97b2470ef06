package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned when no row exists for a key
var ErrNotFound = errors.New("storage key not found")

// dialect holds the statements that differ between SQL databases
type dialect struct {
	name        string
	createTable string
	selectValue string
	upsertValue string
	deleteValue string
}

// SQLStore is a database/sql implementation of core.KeyValueStore
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
}

// newSQLStore opens the database, checks the connection and creates the table
func newSQLStore(driver, dsn string, d dialect, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.name, err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", d.name, err)
	}

	if _, err := db.Exec(d.createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLStore{
		db:      db,
		dialect: d,
		logger:  logger,
	}, nil
}

// Get retrieves the value stored under key
func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.lookup(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLStore) lookup(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.dialect.selectValue, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to query %s store: %w", s.dialect.name, err)
	}
	return value, nil
}

// Set stores value under key in a single statement
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.upsertValue, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store value in %s: %w", s.dialect.name, err)
	}

	s.logger.Debug("Stored value",
		zap.String("store", s.dialect.name),
		zap.String("key", key),
		zap.Int("size", len(value)))
	return nil
}

// Remove deletes the value stored under key
func (s *SQLStore) Remove(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, s.dialect.deleteValue, key)
	if err != nil {
		return fmt.Errorf("failed to delete value from %s: %w", s.dialect.name, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during delete", zap.Error(err))
	} else {
		s.logger.Debug("Removed value", zap.String("key", key), zap.Int64("rows", rowsAffected))
	}
	return nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close %s database: %w", s.dialect.name, err)
	}
	return nil
}
