package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jwebster45206/village-mystery/pkg/state"
)

// MockStorage is an in-memory Storage for tests and local runs. Sessions are
// stored encoded, so callers never share state with the store.
type MockStorage struct {
	mu         sync.RWMutex
	gamestates map[string][]byte
	pingError  error
	saveError  error
	saves      int
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		gamestates: make(map[string][]byte),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError makes every save fail with err until cleared with nil.
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveGameState(ctx context.Context, id string, gs *state.GameState) error {
	if gs == nil {
		return errors.New("gamestate cannot be nil")
	}
	data, err := json.Marshal(gs)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.gamestates[id] = data
	m.saves++
	return nil
}

func (m *MockStorage) LoadGameState(ctx context.Context, id string) (*state.GameState, error) {
	m.mu.RLock()
	data, exists := m.gamestates[id]
	m.mu.RUnlock()
	if !exists {
		return nil, nil // Return nil for not found
	}
	var gs state.GameState
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, err
	}
	return &gs, nil
}

func (m *MockStorage) DeleteGameState(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.gamestates, id)
	return nil
}

// Saves counts successful saves.
func (m *MockStorage) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
