package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSlot keeps the value in the kv_slots table (migrations/001).
type PostgresSlot struct {
	pool *pgxpool.Pool
	key  string
}

func NewPostgresSlot(pool *pgxpool.Pool, key string) *PostgresSlot {
	return &PostgresSlot{pool: pool, key: key}
}

func (s *PostgresSlot) Get(ctx context.Context) ([]byte, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, "SELECT value FROM kv_slots WHERE key = $1", s.key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read slot %s: %w", s.key, err)
	}
	return []byte(value), true, nil
}

func (s *PostgresSlot) Set(ctx context.Context, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_slots (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
			updated_at = NOW()
	`, s.key, string(value))
	if err != nil {
		return fmt.Errorf("failed to write slot %s: %w", s.key, err)
	}
	return nil
}
