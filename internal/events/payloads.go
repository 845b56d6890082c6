// Package events holds the payload types shared between the orchestrator
// and the gateway so neither has to import the other.
package events

import (
	"time"

	"github.com/wordparty/catchphrase/internal/models"
)

// GameStartedPayload is emitted when the waiting room rolls into play.
type GameStartedPayload struct {
	GameID    string           `json:"game_id"`
	Team1     models.Team      `json:"team1"`
	Team2     models.Team      `json:"team2"`
	Talker    models.TalkerRef `json:"talker"`
	StartedAt time.Time        `json:"started_at"`
}

// RoundStartedPayload is emitted when the talker starts the countdown.
type RoundStartedPayload struct {
	GameID       string    `json:"game_id"`
	Round        int       `json:"round"`
	RoundSeconds int       `json:"round_seconds"`
	StartedAt    time.Time `json:"started_at"`
}

// TurnAdvancedPayload is emitted when the talker passes the word on.
type TurnAdvancedPayload struct {
	GameID string           `json:"game_id"`
	Turn   int              `json:"turn"`
	Talker models.TalkerRef `json:"talker"`
}

// RoundEndedPayload is emitted when a round resolves and a point lands.
type RoundEndedPayload struct {
	GameID     string        `json:"game_id"`
	Round      int           `json:"round"`
	Winner     models.TeamID `json:"winner"`
	Team1Score int           `json:"team1_score"`
	Team2Score int           `json:"team2_score"`
	EndedAt    time.Time     `json:"ended_at"`
}

// ChallengeStartedPayload is emitted when a clue is disputed.
type ChallengeStartedPayload struct {
	GameID       string        `json:"game_id"`
	Challenger   models.Player `json:"challenger"`
	RemainingSec int           `json:"remaining_sec"`
}

// ChallengeResolvedPayload is emitted when the table's judgement lands.
type ChallengeResolvedPayload struct {
	GameID string `json:"game_id"`
	Upheld bool   `json:"upheld"`
}

// GameCompletedPayload is emitted when a team reaches the winning score.
type GameCompletedPayload struct {
	GameID      string        `json:"game_id"`
	Winner      models.TeamID `json:"winner"`
	Team1Score  int           `json:"team1_score"`
	Team2Score  int           `json:"team2_score"`
	CompletedAt time.Time     `json:"completed_at"`
}

// TimerTickPayload carries the countdown's once-per-second heartbeat.
type TimerTickPayload struct {
	GameID       string    `json:"game_id"`
	RemainingSec int       `json:"remaining_sec"`
	TickedAt     time.Time `json:"ticked_at"`
}
