package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/wordparty/catchphrase/internal/models"
)

// NATSSubjectPrefix prefixes the per-game state subjects, e.g.
// game.state.<game_id>.
const NATSSubjectPrefix = "game.state"

// NATS decorates another Store with cross-process fan-out: every committed
// write is published to the game's subject, and Subscribe consumes that
// subject instead of the backend's local notifications. Publishing is
// fire-and-forget, matching the record's eventual-consistency contract.
type NATS struct {
	inner Store
	nc    *nats.Conn
}

// WithNATS wraps inner so subscribers on any process observe its writes.
func WithNATS(inner Store, nc *nats.Conn) *NATS {
	return &NATS{inner: inner, nc: nc}
}

// Connect dials NATS with the reconnect behavior used across the service.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

func subject(gameID string) string {
	return NATSSubjectPrefix + "." + gameID
}

func (n *NATS) Create(ctx context.Context, state *models.GameState) error {
	if err := n.inner.Create(ctx, state); err != nil {
		return err
	}
	n.publish(state)
	return nil
}

func (n *NATS) Read(ctx context.Context, gameID string) (*models.GameState, error) {
	return n.inner.Read(ctx, gameID)
}

func (n *NATS) Write(ctx context.Context, state *models.GameState) error {
	if err := n.inner.Write(ctx, state); err != nil {
		return err
	}
	n.publish(state)
	return nil
}

func (n *NATS) CompareAndSwap(ctx context.Context, state *models.GameState, expectedVersion int64) error {
	if err := n.inner.CompareAndSwap(ctx, state, expectedVersion); err != nil {
		return err
	}
	n.publish(state)
	return nil
}

func (n *NATS) Subscribe(_ context.Context, gameID string, fn func(*models.GameState)) (func(), error) {
	sub, err := n.nc.Subscribe(subject(gameID), func(msg *nats.Msg) {
		var state models.GameState
		if err := json.Unmarshal(msg.Data, &state); err != nil {
			log.Error().Err(err).Str("game_id", gameID).Msg("failed to decode game state message")
			return
		}
		fn(&state)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject(gameID), err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("game_id", gameID).Msg("failed to unsubscribe from game subject")
		}
	}, nil
}

func (n *NATS) publish(state *models.GameState) {
	doc, err := json.Marshal(state)
	if err != nil {
		log.Error().Err(err).Str("game_id", state.ID).Msg("failed to marshal game state for publish")
		return
	}
	if err := n.nc.Publish(subject(state.ID), doc); err != nil {
		log.Warn().Err(err).Str("game_id", state.ID).Msg("failed to publish game state")
	}
}
