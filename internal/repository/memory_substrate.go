package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
)

// MemorySubstrate keeps records and legacy keys in process memory. It backs
// ephemeral runs (DB_DRIVER=memory) and tests, and can be told to fail writes.
type MemorySubstrate struct {
	mu      sync.RWMutex
	tables  map[Table]map[string]Record
	kv      map[string]string
	seq     int64
	now     func() time.Time
	failPut error
	down    error
}

// NewMemorySubstrate constructs an empty MemorySubstrate.
func NewMemorySubstrate() *MemorySubstrate {
	return &MemorySubstrate{
		tables: map[Table]map[string]Record{
			TableLessons:    {},
			TableStudents:   {},
			TableRetiredIDs: {},
		},
		kv:  make(map[string]string),
		now: time.Now,
	}
}

// FailWrites makes every following Put return err. Pass nil to recover.
func (m *MemorySubstrate) FailWrites(err error) {
	m.mu.Lock()
	m.failPut = err
	m.mu.Unlock()
}

// SetUnavailable makes Ping return err. Pass nil to recover.
func (m *MemorySubstrate) SetUnavailable(err error) {
	m.mu.Lock()
	m.down = err
	m.mu.Unlock()
}

// Ping reports the configured availability.
func (m *MemorySubstrate) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.down
}

// Get returns a record payload.
func (m *MemorySubstrate) Get(_ context.Context, table Table, id string) ([]byte, error) {
	if !table.valid() {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.tables[table][id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s record not found", table))
	}
	return []byte(rec.Payload), nil
}

// Put inserts or replaces a record, keeping the original seq on replace.
func (m *MemorySubstrate) Put(_ context.Context, table Table, id string, payload []byte) error {
	if !table.valid() {
		return fmt.Errorf("unknown table %q", table)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return fmt.Errorf("put %s record: %w", table, m.failPut)
	}
	rec, ok := m.tables[table][id]
	if !ok {
		m.seq++
		rec = Record{ID: id, Seq: m.seq}
	}
	rec.Payload = string(payload)
	rec.UpdatedAt = m.now().UnixMilli()
	m.tables[table][id] = rec
	return nil
}

// Delete removes a record if present.
func (m *MemorySubstrate) Delete(_ context.Context, table Table, id string) error {
	if !table.valid() {
		return fmt.Errorf("unknown table %q", table)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return fmt.Errorf("delete %s record: %w", table, m.failPut)
	}
	delete(m.tables[table], id)
	return nil
}

// GetAll lists a table newest insert first.
func (m *MemorySubstrate) GetAll(_ context.Context, table Table) ([]Record, error) {
	if !table.valid() {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.tables[table]))
	for _, rec := range m.tables[table] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out, nil
}

// Legacy returns a key/value view over the same substrate.
func (m *MemorySubstrate) Legacy() *MemoryLegacyStore {
	return &MemoryLegacyStore{m: m}
}

// MemoryLegacyStore is the legacy key/value contract over a MemorySubstrate.
type MemoryLegacyStore struct {
	m *MemorySubstrate
}

// Get returns the value stored under key.
func (s *MemoryLegacyStore) Get(_ context.Context, key string) (string, bool, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	v, ok := s.m.kv[key]
	return v, ok, nil
}

// Put stores value under key.
func (s *MemoryLegacyStore) Put(_ context.Context, key, value string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.failPut != nil {
		return fmt.Errorf("put %s: %w", key, s.m.failPut)
	}
	s.m.kv[key] = value
	return nil
}

// Delete removes key.
func (s *MemoryLegacyStore) Delete(_ context.Context, key string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.kv, key)
	return nil
}
