package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// LegacyRepository is a single-table key/value store. It holds the blob older
// builds wrote under one key and the marker recording a completed migration.
type LegacyRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewLegacyRepository constructs a LegacyRepository.
func NewLegacyRepository(db *sqlx.DB) *LegacyRepository {
	return &LegacyRepository{db: db, now: time.Now}
}

// Get returns the value stored under key and whether it exists.
func (r *LegacyRepository) Get(ctx context.Context, key string) (string, bool, error) {
	query := r.db.Rebind("SELECT store_value FROM kv_store WHERE store_key = ?")
	var value string
	if err := r.db.GetContext(ctx, &value, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (r *LegacyRepository) Put(ctx context.Context, key, value string) error {
	query := r.db.Rebind(`INSERT INTO kv_store (store_key, store_value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT (store_key) DO UPDATE SET store_value = excluded.store_value, updated_at = excluded.updated_at`)
	if _, err := r.db.ExecContext(ctx, query, key, value, r.now().UnixMilli()); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete removes key if present.
func (r *LegacyRepository) Delete(ctx context.Context, key string) error {
	query := r.db.Rebind("DELETE FROM kv_store WHERE store_key = ?")
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
