package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"

	"github.com/wordparty/catchphrase/internal/models"
)

// Redis stores each game record as a JSON value and publishes every write
// on a per-game pub/sub channel. Compare-and-set rides on WATCH/MULTI.
type Redis struct {
	pool *redis.Pool
}

// NewRedis creates a store backed by the given connection pool.
func NewRedis(pool *redis.Pool) *Redis {
	return &Redis{pool: pool}
}

func gameKey(gameID string) string     { return "game:" + gameID }
func gameChannel(gameID string) string { return "game.updates." + gameID }

func (r *Redis) Create(ctx context.Context, state *models.GameState) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get redis connection: %w", err)
	}
	defer conn.Close()

	next := state.Clone()
	next.Version = 1
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal game state: %w", err)
	}

	created, err := redis.Int(conn.Do("SETNX", gameKey(next.ID), doc))
	if err != nil {
		return fmt.Errorf("failed to create game state: %w", err)
	}
	if created == 0 {
		return ErrAlreadyExists
	}

	state.Version = next.Version
	r.publish(conn, next.ID, doc)
	return nil
}

func (r *Redis) Read(ctx context.Context, gameID string) (*models.GameState, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get redis connection: %w", err)
	}
	defer conn.Close()

	return r.read(conn, gameID)
}

func (r *Redis) read(conn redis.Conn, gameID string) (*models.GameState, error) {
	doc, err := redis.Bytes(conn.Do("GET", gameKey(gameID)))
	if errors.Is(err, redis.ErrNil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read game state: %w", err)
	}

	var state models.GameState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game state: %w", err)
	}
	return &state, nil
}

func (r *Redis) Write(ctx context.Context, state *models.GameState) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get redis connection: %w", err)
	}
	defer conn.Close()

	stored, err := r.read(conn, state.ID)
	if err != nil {
		return err
	}

	next := state.Clone()
	next.Version = stored.Version + 1
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal game state: %w", err)
	}
	if _, err := conn.Do("SET", gameKey(next.ID), doc); err != nil {
		return fmt.Errorf("failed to write game state: %w", err)
	}

	state.Version = next.Version
	r.publish(conn, next.ID, doc)
	return nil
}

func (r *Redis) CompareAndSwap(ctx context.Context, state *models.GameState, expectedVersion int64) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get redis connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("WATCH", gameKey(state.ID)); err != nil {
		return fmt.Errorf("failed to watch game key: %w", err)
	}

	stored, err := r.read(conn, state.ID)
	if err != nil {
		conn.Do("UNWATCH")
		return err
	}
	if stored.Version != expectedVersion {
		conn.Do("UNWATCH")
		return ErrVersionConflict
	}

	next := state.Clone()
	next.Version = expectedVersion + 1
	doc, err := json.Marshal(next)
	if err != nil {
		conn.Do("UNWATCH")
		return fmt.Errorf("failed to marshal game state: %w", err)
	}

	conn.Send("MULTI")
	conn.Send("SET", gameKey(next.ID), doc)
	reply, err := redis.Values(conn.Do("EXEC"))
	if errors.Is(err, redis.ErrNil) {
		// The watched key moved under us and EXEC aborted.
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to compare-and-swap game state: %w", err)
	}
	if reply == nil {
		return ErrVersionConflict
	}

	state.Version = next.Version
	r.publish(conn, next.ID, doc)
	return nil
}

// Subscribe consumes the per-game pub/sub channel. Payloads carry the full
// record, so no re-read is needed.
func (r *Redis) Subscribe(ctx context.Context, gameID string, fn func(*models.GameState)) (func(), error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get redis connection for subscribe: %w", err)
	}

	psc := redis.PubSubConn{Conn: conn}
	if err := psc.Subscribe(gameChannel(gameID)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to game channel: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer conn.Close()
		for {
			switch msg := psc.Receive().(type) {
			case redis.Message:
				var state models.GameState
				if err := json.Unmarshal(msg.Data, &state); err != nil {
					log.Error().Err(err).Str("game_id", gameID).Msg("failed to decode game update message")
					continue
				}
				fn(&state)
			case error:
				select {
				case <-done:
				default:
					log.Error().Err(msg).Str("game_id", gameID).Msg("game update subscription stopped")
				}
				return
			}
		}
	}()

	return func() {
		close(done)
		psc.Unsubscribe(gameChannel(gameID))
		conn.Close()
	}, nil
}

func (r *Redis) publish(conn redis.Conn, gameID string, doc []byte) {
	if _, err := conn.Do("PUBLISH", gameChannel(gameID), doc); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("failed to publish game update")
	}
}
