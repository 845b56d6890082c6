package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type names a game event.
type Type string

const (
	TypeGameStarted       Type = "GameStarted"
	TypeRoundStarted      Type = "RoundStarted"
	TypeTurnAdvanced      Type = "TurnAdvanced"
	TypeRoundEnded        Type = "RoundEnded"
	TypeChallengeStarted  Type = "ChallengeStarted"
	TypeChallengeResolved Type = "ChallengeResolved"
	TypeGameCompleted     Type = "GameCompleted"
	TypeTimerTick         Type = "TimerTick"
)

// Event is the envelope pushed to game subscribers.
type Event struct {
	ID        string          `json:"id"`
	GameID    string          `json:"game_id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New wraps a payload in an event envelope. A payload that fails to
// marshal yields an envelope with empty data; payloads here are plain
// structs, so that does not happen for real input.
func New(gameID string, typ Type, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return Event{
		ID:        uuid.New().String(),
		GameID:    gameID,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
