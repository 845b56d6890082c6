package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/wordparty/catchphrase/internal/models"
)

// notifyChannel carries the game ID of every committed write so listeners
// can re-read the record. The payload stays small on purpose: NOTIFY
// payloads are size-limited, the record itself is not pushed.
const notifyChannel = "catchphrase_game_updates"

// Postgres stores each game record as a JSONB document with a version
// column for compare-and-set, and fans out change notifications over
// LISTEN/NOTIFY.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates the store and ensures its table exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	const ddl = `
		CREATE TABLE IF NOT EXISTS game_states (
			id         TEXT PRIMARY KEY,
			state      JSONB NOT NULL,
			version    BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("failed to ensure game_states table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Create(ctx context.Context, state *models.GameState) error {
	next := state.Clone()
	next.Version = 1
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal game state: %w", err)
	}

	tag, err := p.pool.Exec(ctx, `
		INSERT INTO game_states (id, state, version)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`,
		next.ID, doc, next.Version)
	if err != nil {
		return fmt.Errorf("failed to create game state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}

	state.Version = next.Version
	p.notify(ctx, next.ID)
	return nil
}

func (p *Postgres) Read(ctx context.Context, gameID string) (*models.GameState, error) {
	var doc []byte
	var version int64
	err := p.pool.QueryRow(ctx, `
		SELECT state, version FROM game_states WHERE id = $1`,
		gameID).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read game state: %w", err)
	}

	var state models.GameState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game state: %w", err)
	}
	state.Version = version
	return &state, nil
}

func (p *Postgres) Write(ctx context.Context, state *models.GameState) error {
	next := state.Clone()
	tag, err := p.pool.Exec(ctx, `
		UPDATE game_states
		SET state = $2, version = version + 1, updated_at = now()
		WHERE id = $1`,
		next.ID, p.mustMarshal(next))
	if err != nil {
		return fmt.Errorf("failed to write game state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	// Reflect the bumped version for the caller.
	stored, err := p.Read(ctx, next.ID)
	if err == nil {
		state.Version = stored.Version
	}
	p.notify(ctx, next.ID)
	return nil
}

func (p *Postgres) CompareAndSwap(ctx context.Context, state *models.GameState, expectedVersion int64) error {
	next := state.Clone()
	next.Version = expectedVersion + 1
	tag, err := p.pool.Exec(ctx, `
		UPDATE game_states
		SET state = $2, version = $3, updated_at = now()
		WHERE id = $1 AND version = $4`,
		next.ID, p.mustMarshal(next), next.Version, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to compare-and-swap game state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row moved or it never existed.
		if _, readErr := p.Read(ctx, next.ID); readErr != nil {
			return readErr
		}
		return ErrVersionConflict
	}

	state.Version = next.Version
	p.notify(ctx, next.ID)
	return nil
}

// Subscribe listens for committed writes and re-reads the record for each
// notification that names the subscribed game.
func (p *Postgres) Subscribe(ctx context.Context, gameID string, fn func(*models.GameState)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	conn, err := p.pool.Acquire(subCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(subCtx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		cancel()
		return nil, fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}

	go func() {
		defer conn.Release()
		for {
			notification, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					log.Error().Err(err).Str("game_id", gameID).Msg("game update listener stopped")
				}
				return
			}
			if notification.Payload != gameID {
				continue
			}
			state, err := p.Read(subCtx, gameID)
			if err != nil {
				log.Error().Err(err).Str("game_id", gameID).Msg("failed to re-read game state after notify")
				continue
			}
			fn(state)
		}
	}()

	return cancel, nil
}

func (p *Postgres) notify(ctx context.Context, gameID string) {
	if _, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, gameID); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("failed to notify game update")
	}
}

func (p *Postgres) mustMarshal(state *models.GameState) []byte {
	doc, err := json.Marshal(state)
	if err != nil {
		// GameState is a plain data struct; this cannot fail for real input.
		log.Error().Err(err).Str("game_id", state.ID).Msg("failed to marshal game state")
		return []byte("{}")
	}
	return doc
}
