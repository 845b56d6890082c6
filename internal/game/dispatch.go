package game

import (
	"github.com/wordparty/catchphrase/internal/models"
)

// Action is what a key press resolves to for a given actor.
type Action int

const (
	ActionNone Action = iota
	ActionNextTurn
	ActionChallenge
)

func (a Action) String() string {
	switch a {
	case ActionNextTurn:
		return "next_turn"
	case ActionChallenge:
		return "challenge"
	default:
		return "none"
	}
}

// DispatchKeyPress resolves the overloaded key press into a single action
// via an explicit guard table: the current talker always maps to the
// next-turn transition (whose own preconditions refuse it between rounds
// or mid-challenge), a player eligible to challenge maps to opening one,
// and anyone else no-ops.
func DispatchKeyPress(state *models.GameState, actor models.Player) Action {
	isTalker := state.Status == models.GameStatusInProgress &&
		actor.UID == state.CurrentTalker.Talker.UID

	switch {
	case isTalker:
		return ActionNextTurn
	case CanChallenge(state, actor):
		return ActionChallenge
	default:
		return ActionNone
	}
}
