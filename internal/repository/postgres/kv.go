package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/surveillance-api/internal/repository"
)

const (
	createKVTable = `
		CREATE TABLE IF NOT EXISTS kv_store (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	selectKV = `SELECT value FROM kv_store WHERE key = $1`
	upsertKV = `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`
	deleteKV = `DELETE FROM kv_store WHERE key = $1`
)

type kvRepository struct {
	BaseRepository
}

func NewKeyValueStore(db *sqlx.DB) repository.KeyValueStore {
	return &kvRepository{NewBaseRepository(db)}
}

// EnsureSchema creates the kv_store table if it does not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	base := NewBaseRepository(db)
	return base.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, createKVTable); err != nil {
			return fmt.Errorf("failed to create kv_store table: %w", err)
		}
		return nil
	})
}

func (r *kvRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	if err := r.GetDB().GetContext(ctx, &value, selectKV, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return []byte(value), true, nil
}

func (r *kvRepository) Set(ctx context.Context, key string, value []byte) error {
	if _, err := r.GetDB().ExecContext(ctx, upsertKV, key, string(value)); err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

func (r *kvRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.GetDB().ExecContext(ctx, deleteKV, key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

func (r *kvRepository) Ping(ctx context.Context) error {
	return r.GetDB().PingContext(ctx)
}

func (r *kvRepository) Close() error {
	return r.GetDB().Close()
}
