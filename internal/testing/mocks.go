package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/aristath/xray/internal/modules/xray"
)

// MockPanelSource is a mock implementation of xray.PanelSource for testing
type MockPanelSource struct {
	mu     sync.RWMutex
	panel  xray.PricePanel
	err    error
	calls  int
	loaded [][]string
}

// NewMockPanelSource creates a new mock panel source serving panel
func NewMockPanelSource(panel xray.PricePanel) *MockPanelSource {
	return &MockPanelSource{panel: panel}
}

// SetError sets the error to return from LoadPanel
func (m *MockPanelSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times LoadPanel was called
func (m *MockPanelSource) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// LastTickers returns the tickers passed to the most recent LoadPanel call
func (m *MockPanelSource) LastTickers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.loaded) == 0 {
		return nil
	}
	return m.loaded[len(m.loaded)-1]
}

// LoadPanel returns the requested tickers that exist in the mock panel
func (m *MockPanelSource) LoadPanel(ctx context.Context, tickers []string) (xray.PricePanel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.loaded = append(m.loaded, append([]string(nil), tickers...))
	if m.err != nil {
		return nil, m.err
	}

	out := make(xray.PricePanel, len(tickers))
	for _, ticker := range tickers {
		if series, ok := m.panel[ticker]; ok {
			out[ticker] = series
		}
	}
	return out, nil
}

// MockRunStore is a mock implementation of xray.RunStore for testing
type MockRunStore struct {
	mu    sync.RWMutex
	runs  map[string]*xray.Run
	err   error
	saves int
}

// NewMockRunStore creates a new empty mock run store
func NewMockRunStore() *MockRunStore {
	return &MockRunStore{runs: make(map[string]*xray.Run)}
}

// SetError sets the error to return from every method
func (m *MockRunStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Saves returns how many runs were saved
func (m *MockRunStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Save stores a run
func (m *MockRunStore) Save(ctx context.Context, run *xray.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if run == nil || run.ID == "" {
		return fmt.Errorf("run has no ID")
	}
	m.runs[run.ID] = run
	m.saves++
	return nil
}

// Get returns a run by ID, or nil if not found
func (m *MockRunStore) Get(ctx context.Context, id string) (*xray.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.runs[id], nil
}

// FindByFingerprint returns the first run with the fingerprint, or nil
func (m *MockRunStore) FindByFingerprint(ctx context.Context, fingerprint string) (*xray.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, run := range m.runs {
		if run.Fingerprint == fingerprint {
			return run, nil
		}
	}
	return nil, nil
}

// Delete removes a run and reports whether it existed
func (m *MockRunStore) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.runs[id]
	delete(m.runs, id)
	return ok, nil
}
