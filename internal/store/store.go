// Package store is the shared game-state record store. Every transition is
// computed as a pure function over the last observed record and written
// back as a complete replacement; propagation to other observers is
// eventually consistent and writes are best-effort fire-and-forget from the
// caller's point of view.
package store

import (
	"context"
	"errors"

	"github.com/wordparty/catchphrase/internal/models"
)

var (
	// ErrNotFound is returned when no record exists for the game.
	ErrNotFound = errors.New("game not found")
	// ErrVersionConflict is returned by CompareAndSwap when the record
	// moved since it was read. The caller re-reads and lets its guards
	// decide whether the transition still applies.
	ErrVersionConflict = errors.New("game record version conflict")
	// ErrAlreadyExists is returned when creating a game twice.
	ErrAlreadyExists = errors.New("game already exists")
)

// Store holds the authoritative copy of each game record.
type Store interface {
	// Create inserts a fresh record at version 1.
	Create(ctx context.Context, state *models.GameState) error
	// Read returns the current record for the game.
	Read(ctx context.Context, gameID string) (*models.GameState, error)
	// Write replaces the record unconditionally (last writer wins) and
	// bumps its version.
	Write(ctx context.Context, state *models.GameState) error
	// CompareAndSwap replaces the record only if its stored version still
	// equals expectedVersion, returning ErrVersionConflict otherwise.
	CompareAndSwap(ctx context.Context, state *models.GameState, expectedVersion int64) error
	// Subscribe registers a callback invoked with each new record written
	// for the game. The returned cancel function removes the subscription.
	Subscribe(ctx context.Context, gameID string, fn func(*models.GameState)) (cancel func(), err error)
}
