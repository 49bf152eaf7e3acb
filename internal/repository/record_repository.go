package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
)

// Table names one of the logical record tables.
type Table string

const (
	TableLessons  Table = "lessons"
	TableStudents Table = "students"
	// TableRetiredIDs remembers ids of deleted records so they are never handed
	// out again.
	TableRetiredIDs Table = "retired_ids"
)

func (t Table) valid() bool {
	return t == TableLessons || t == TableStudents || t == TableRetiredIDs
}

// Record is one stored entity as raw JSON. Seq is assigned on first insert and
// kept on replace, so ordering by it descending lists newest records first.
type Record struct {
	ID        string `db:"id"`
	Payload   string `db:"payload"`
	Seq       int64  `db:"seq"`
	UpdatedAt int64  `db:"updated_at"`
}

// RecordRepository stores per-id JSON records in the lessons and students tables.
type RecordRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRecordRepository constructs a RecordRepository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db, now: time.Now}
}

// Ping checks the underlying database is reachable.
func (r *RecordRepository) Ping(ctx context.Context) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("record store not configured")
	}
	return r.db.PingContext(ctx)
}

// Get fetches one record payload.
func (r *RecordRepository) Get(ctx context.Context, table Table, id string) ([]byte, error) {
	if !table.valid() {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	query := r.db.Rebind(fmt.Sprintf("SELECT payload FROM %s WHERE id = ?", table))
	var payload string
	if err := r.db.GetContext(ctx, &payload, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s record not found", table))
		}
		return nil, fmt.Errorf("get %s record: %w", table, err)
	}
	return []byte(payload), nil
}

// Put inserts or replaces a record by id.
func (r *RecordRepository) Put(ctx context.Context, table Table, id string, payload []byte) error {
	if !table.valid() {
		return fmt.Errorf("unknown table %q", table)
	}
	query := r.db.Rebind(fmt.Sprintf(`INSERT INTO %[1]s (id, payload, seq, updated_at)
        VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM %[1]s), ?)
        ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`, table))
	if _, err := r.db.ExecContext(ctx, query, id, string(payload), r.now().UnixMilli()); err != nil {
		return fmt.Errorf("put %s record: %w", table, err)
	}
	return nil
}

// Delete removes a record. Deleting a missing id is not an error.
func (r *RecordRepository) Delete(ctx context.Context, table Table, id string) error {
	if !table.valid() {
		return fmt.Errorf("unknown table %q", table)
	}
	query := r.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", table))
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete %s record: %w", table, err)
	}
	return nil
}

// GetAll returns every record of a table, newest insert first.
func (r *RecordRepository) GetAll(ctx context.Context, table Table) ([]Record, error) {
	if !table.valid() {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	query := fmt.Sprintf("SELECT id, payload, seq, updated_at FROM %s ORDER BY seq DESC", table)
	var records []Record
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list %s records: %w", table, err)
	}
	return records, nil
}
