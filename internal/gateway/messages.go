package gateway

import (
	"errors"

	"github.com/wordparty/catchphrase/internal/events"
	"github.com/wordparty/catchphrase/internal/game"
	"github.com/wordparty/catchphrase/internal/store"
)

// Client message types. A client only ever needs the overloaded key press;
// the explicit types exist for UIs with dedicated buttons.
const (
	MessageKeyPress          = "key_press"
	MessageStartGame         = "start_game"
	MessageStartRound        = "start_round"
	MessageNextTurn          = "next_turn"
	MessageChallenge         = "challenge"
	MessageChallengeResponse = "challenge_response"
)

// ClientMessage is a frame sent by a connected player.
type ClientMessage struct {
	Type string `json:"type"`
	// Accept is the vote for challenge_response frames.
	Accept bool `json:"accept"`
}

// Server frame types.
const (
	FrameEvent    = "event"
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// ServerMessage is a frame pushed to a client.
type ServerMessage struct {
	Type     string        `json:"type"`
	Event    *events.Event `json:"event,omitempty"`
	Snapshot *Snapshot     `json:"snapshot,omitempty"`
	Error    *ErrorBody    `json:"error,omitempty"`
}

// ErrorBody reports a refused action back to the acting client.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorCode maps a refused transition to a stable wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrGameAlreadyStarted):
		return "game_already_started"
	case errors.Is(err, game.ErrGameNotInProgress):
		return "game_not_in_progress"
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return "not_enough_players"
	case errors.Is(err, game.ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, game.ErrNotBetweenRounds):
		return "not_between_rounds"
	case errors.Is(err, game.ErrBetweenRounds):
		return "between_rounds"
	case errors.Is(err, game.ErrChallengeActive):
		return "challenge_active"
	case errors.Is(err, game.ErrNoChallengeActive):
		return "no_challenge_active"
	case errors.Is(err, game.ErrNotCurrentTalker):
		return "not_current_talker"
	case errors.Is(err, game.ErrTalkerCannotAct):
		return "talker_cannot_act"
	case errors.Is(err, game.ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, game.ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, game.ErrWordListExhausted):
		return "word_list_exhausted"
	case errors.Is(err, store.ErrNotFound):
		return "game_not_found"
	case errors.Is(err, store.ErrVersionConflict):
		return "lost_race"
	default:
		return "internal"
	}
}
