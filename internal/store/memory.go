package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/JackyBoizy/D2Armory/internal/models"
)

// MemoryStore is an in-memory RecordStore for tests and fixtures.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]Row

	// Err can be set to make every call fail
	Err error
	// TableErrs fails calls for specific tables only
	TableErrs map[string]error

	fetchOneCalls atomic.Int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:    make(map[string][]Row),
		TableErrs: make(map[string]error),
	}
}

// Put appends a row. Duplicate keys are kept as separate rows, the way a
// malformed manifest might carry them; FetchOne returns the last one.
func (m *MemoryStore) Put(table string, key models.Hash, payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = append(m.tables[table], Row{Key: key, Payload: []byte(payload)})
}

// Reset drops every row of a table.
func (m *MemoryStore) Reset(table string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, table)
}

// FetchOneCalls reports how many FetchOne calls were made.
func (m *MemoryStore) FetchOneCalls() int64 {
	return m.fetchOneCalls.Load()
}

func (m *MemoryStore) fail(table string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TableErrs[table]
}

// FetchAll returns a copy of the table's rows in insertion order.
func (m *MemoryStore) FetchAll(_ context.Context, table string) ([]Row, error) {
	if err := m.fail(table); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	out := make([]Row, len(rows))
	copy(out, rows)
	return out, nil
}

// FetchOne returns the last row stored under key.
func (m *MemoryStore) FetchOne(_ context.Context, table string, key models.Hash) ([]byte, bool, error) {
	m.fetchOneCalls.Add(1)
	if err := m.fail(table); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.tables[table]
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Key == key {
			return rows[i].Payload, true, nil
		}
	}
	return nil, false, nil
}

// Tables lists the tables that hold at least one row.
func (m *MemoryStore) Tables(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
