package testing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aristath/qaoa/internal/modules/runs"
)

// MockRunStore is an in-memory run store for testing
type MockRunStore struct {
	mu   sync.RWMutex
	runs map[string]*runs.Run
	err  error
}

// NewMockRunStore creates a new mock run store
func NewMockRunStore() *MockRunStore {
	return &MockRunStore{runs: make(map[string]*runs.Run)}
}

// SetError sets the error to return
func (m *MockRunStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Create stores a copy of run
func (m *MockRunStore) Create(_ context.Context, run *runs.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

// Update replaces a stored run
func (m *MockRunStore) Update(_ context.Context, run *runs.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.runs[run.ID]; !ok {
		return runs.ErrRunNotFound
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

// Get returns a stored run
func (m *MockRunStore) Get(_ context.Context, id string) (*runs.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	run, ok := m.runs[id]
	if !ok {
		return nil, runs.ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

// List returns stored runs, newest first
func (m *MockRunStore) List(_ context.Context, limit int) ([]*runs.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*runs.Run, 0, len(m.runs))
	for _, run := range m.runs {
		cp := *run
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a stored run
func (m *MockRunStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.runs[id]; !ok {
		return runs.ErrRunNotFound
	}
	delete(m.runs, id)
	return nil
}

// Len returns the number of stored runs
func (m *MockRunStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}
