package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteSlot keeps the value in a local SQLite file, which is how browsers
// back their own local storage.
type SQLiteSlot struct {
	db  *sql.DB
	key string
}

func NewSQLiteSlot(db *sql.DB, key string) *SQLiteSlot {
	return &SQLiteSlot{db: db, key: key}
}

func (s *SQLiteSlot) Get(ctx context.Context) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_slots WHERE key = ?", s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read slot %s: %w", s.key, err)
	}
	return []byte(value), true, nil
}

func (s *SQLiteSlot) Set(ctx context.Context, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_slots (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, s.key, string(value))
	if err != nil {
		return fmt.Errorf("failed to write slot %s: %w", s.key, err)
	}
	return nil
}
