package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wordparty/catchphrase/internal/models"
	"github.com/wordparty/catchphrase/internal/store"
	"github.com/wordparty/catchphrase/internal/words"
)

// Manager creates games and hands out one running Orchestrator per game in
// this process.
type Manager struct {
	store        store.Store
	words        words.Source
	pub          Publisher
	roundSeconds int
	opts         []Option

	// baseCtx outlives any single request: store subscriptions started for
	// a game must not die with the HTTP request that first touched it.
	baseCtx   context.Context
	cancelAll context.CancelFunc

	mu    sync.Mutex
	games map[string]*Orchestrator
}

// NewManager creates a Manager. The opts are applied to every orchestrator
// it builds.
func NewManager(st store.Store, vocab words.Source, pub Publisher, roundSeconds int, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:        st,
		words:        vocab,
		pub:          pub,
		roundSeconds: roundSeconds,
		opts:         opts,
		baseCtx:      ctx,
		cancelAll:    cancel,
		games:        make(map[string]*Orchestrator),
	}
}

// CreateGame inserts a fresh waiting-room record with the creator as its
// first player and returns the new game's orchestrator.
func (m *Manager) CreateGame(ctx context.Context, creator models.Player) (*models.GameState, *Orchestrator, error) {
	state := &models.GameState{
		ID:      uuid.New().String(),
		Status:  models.GameStatusWaitingToStart,
		Players: models.PlayerList{creator},
	}
	if err := m.store.Create(ctx, state); err != nil {
		return nil, nil, fmt.Errorf("failed to create game: %w", err)
	}
	log.Info().Str("game_id", state.ID).Str("creator", creator.UID).Msg("game created")

	orch, err := m.get(state.ID)
	if err != nil {
		return nil, nil, err
	}
	return state, orch, nil
}

// Get returns the orchestrator for an existing game, starting one if this
// process has not seen the game yet.
func (m *Manager) Get(ctx context.Context, gameID string) (*Orchestrator, error) {
	if _, err := m.store.Read(ctx, gameID); err != nil {
		return nil, err
	}
	return m.get(gameID)
}

func (m *Manager) get(gameID string) (*Orchestrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if orch, ok := m.games[gameID]; ok {
		return orch, nil
	}

	opts := append([]Option{WithPublisher(m.pub)}, m.opts...)
	orch := New(gameID, m.store, m.words, m.roundSeconds, opts...)
	if err := orch.Start(m.baseCtx); err != nil {
		return nil, err
	}
	m.games[gameID] = orch
	return orch, nil
}

// Close stops every orchestrator this manager started.
func (m *Manager) Close() {
	m.cancelAll()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, orch := range m.games {
		orch.Stop()
		delete(m.games, id)
	}
}
