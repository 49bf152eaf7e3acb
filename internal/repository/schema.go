package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// schemaSQL is valid for both sqlite3 and postgres.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS lessons (
	id TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	seq BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lessons_seq ON lessons (seq);

CREATE TABLE IF NOT EXISTS students (
	id TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	seq BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_students_seq ON students (seq);

CREATE TABLE IF NOT EXISTS retired_ids (
	id TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	seq BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS kv_store (
	store_key TEXT PRIMARY KEY,
	store_value TEXT NOT NULL,
	updated_at BIGINT NOT NULL
);
`

// InitSchema creates the record tables and the legacy key/value table if missing.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
