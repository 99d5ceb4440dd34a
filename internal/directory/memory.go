package directory

import (
	"context"
	"sync"
)

// Memory implements Store with in-process concurrency safety. Used by
// tests and by cmd/api when no Postgres DSN is configured.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Employee
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Employee)}
}

func (m *Memory) Lookup(ctx context.Context, employeeID string) (*Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[employeeID]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec
	return &out, nil
}

func (m *Memory) Exists(ctx context.Context, employeeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[employeeID]
	return ok, nil
}

func (m *Memory) Insert(ctx context.Context, e *Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[e.EmployeeID]; ok {
		return ErrAlreadyExists
	}
	m.records[e.EmployeeID] = *e
	return nil
}
