package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wordparty/catchphrase/internal/events"
	"github.com/wordparty/catchphrase/internal/models"
	"github.com/wordparty/catchphrase/internal/store"
)

// Broadcaster is the orchestrator's event sink. Every event fans out to the
// game's connections; state-changing events are followed by a fresh
// per-viewer snapshot so clients never have to reconstruct state from the
// event stream.
type Broadcaster struct {
	conns *ConnectionManager
	store store.Store
}

// NewBroadcaster wires the connection manager to the store it re-reads
// snapshots from.
func NewBroadcaster(conns *ConnectionManager, st store.Store) *Broadcaster {
	return &Broadcaster{conns: conns, store: st}
}

// Publish fans the event out to the game's pool.
func (b *Broadcaster) Publish(evt events.Event) {
	frame, err := json.Marshal(ServerMessage{Type: FrameEvent, Event: &evt})
	if err != nil {
		log.Error().Err(err).Str("game_id", evt.GameID).Msg("failed to marshal event frame")
		return
	}
	b.conns.broadcast(broadcastMessage{
		gameID: evt.GameID,
		render: func(*Connection) []byte { return frame },
	})

	if evt.Type == events.TypeTimerTick {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := b.store.Read(ctx, evt.GameID)
	if err != nil {
		log.Error().Err(err).Str("game_id", evt.GameID).Msg("failed to read state for snapshot broadcast")
		return
	}
	b.BroadcastSnapshot(state)
}

// BroadcastSnapshot pushes a per-viewer snapshot to every connection of the
// game.
func (b *Broadcaster) BroadcastSnapshot(state *models.GameState) {
	b.conns.broadcast(broadcastMessage{
		gameID: state.ID,
		render: func(conn *Connection) []byte {
			snap := SnapshotFor(state, conn.Player.UID)
			frame, err := json.Marshal(ServerMessage{Type: FrameSnapshot, Snapshot: &snap})
			if err != nil {
				log.Error().Err(err).Str("game_id", state.ID).Msg("failed to marshal snapshot frame")
				return nil
			}
			return frame
		},
	})
}
