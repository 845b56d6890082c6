package store

import (
	"context"
	"sync"

	"github.com/wordparty/catchphrase/internal/models"
)

// Memory is an in-process Store. It backs single-node deployments and
// tests; subscriptions are local to the process.
type Memory struct {
	mu     sync.RWMutex
	games  map[string]*models.GameState
	subs   map[string]map[int]func(*models.GameState)
	nextID int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		games: make(map[string]*models.GameState),
		subs:  make(map[string]map[int]func(*models.GameState)),
	}
}

func (m *Memory) Create(_ context.Context, state *models.GameState) error {
	m.mu.Lock()
	if _, ok := m.games[state.ID]; ok {
		m.mu.Unlock()
		return ErrAlreadyExists
	}
	stored := state.Clone()
	stored.Version = 1
	m.games[state.ID] = stored
	m.mu.Unlock()

	state.Version = stored.Version
	m.notify(stored)
	return nil
}

func (m *Memory) Read(_ context.Context, gameID string) (*models.GameState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	return stored.Clone(), nil
}

func (m *Memory) Write(_ context.Context, state *models.GameState) error {
	m.mu.Lock()
	stored, ok := m.games[state.ID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	next := state.Clone()
	next.Version = stored.Version + 1
	m.games[state.ID] = next
	m.mu.Unlock()

	state.Version = next.Version
	m.notify(next)
	return nil
}

func (m *Memory) CompareAndSwap(_ context.Context, state *models.GameState, expectedVersion int64) error {
	m.mu.Lock()
	stored, ok := m.games[state.ID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		m.mu.Unlock()
		return ErrVersionConflict
	}
	next := state.Clone()
	next.Version = expectedVersion + 1
	m.games[state.ID] = next
	m.mu.Unlock()

	state.Version = next.Version
	m.notify(next)
	return nil
}

func (m *Memory) Subscribe(_ context.Context, gameID string, fn func(*models.GameState)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs[gameID] == nil {
		m.subs[gameID] = make(map[int]func(*models.GameState))
	}
	id := m.nextID
	m.nextID++
	m.subs[gameID][id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[gameID], id)
		if len(m.subs[gameID]) == 0 {
			delete(m.subs, gameID)
		}
	}, nil
}

func (m *Memory) notify(state *models.GameState) {
	m.mu.RLock()
	fns := make([]func(*models.GameState), 0, len(m.subs[state.ID]))
	for _, fn := range m.subs[state.ID] {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		fn(state.Clone())
	}
}
