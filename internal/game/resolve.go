package game

import (
	"github.com/wordparty/catchphrase/internal/models"
)

// ResolveRoundWinner decides which team is awarded the expiring round's
// point: the defense, i.e. the team opposite whoever was talking when the
// round ended.
func ResolveRoundWinner(state *models.GameState) models.TeamID {
	return state.CurrentTalker.Team.Opponent()
}

// TransitionToNextTurn advances talker, turn and word without touching the
// score or round number. Only valid mid-round with no challenge pending;
// the caller is responsible for checking that the actor is the current
// talker (see DispatchKeyPress).
func TransitionToNextTurn(state *models.GameState) (*models.GameState, error) {
	if state.Status != models.GameStatusInProgress {
		return state, ErrGameNotInProgress
	}
	if state.BetweenRounds {
		return state, ErrBetweenRounds
	}
	if state.Challenge != nil {
		return state, ErrChallengeActive
	}
	if state.CurrentTurn+1 >= len(state.WordList) {
		return state, ErrWordListExhausted
	}

	next := state.Clone()
	next.CurrentTalker = NextTurnTalker(state)
	next.CurrentTurn = state.CurrentTurn + 1
	next.CurrentWord = next.WordList[next.CurrentTurn]
	return next, nil
}

// TransitionToNextRound ends the current round: award the point, rotate
// the talker, advance turn/round/word, and park the game between rounds
// waiting for the new talker. If the winning team reaches the target score
// the game is done and the word list is cleared.
//
// Calling it while already between rounds is a deliberate no-op, which is
// what bounds the race between the expiring countdown and a manual
// trigger computed from the same observed record.
func TransitionToNextRound(state *models.GameState) (*models.GameState, error) {
	if state.Status != models.GameStatusInProgress {
		return state, ErrGameNotInProgress
	}
	if state.BetweenRounds {
		// Round already resolved; don't resolve it twice.
		return state, nil
	}
	if state.CurrentTurn+1 >= len(state.WordList) {
		return state, ErrWordListExhausted
	}

	winner := ResolveRoundWinner(state)
	winnerTeam := state.Team(winner)
	winnerTeam.Score++

	next := state.Clone()
	next.Challenge = nil
	next.CurrentTalker = NextTurnTalker(state)
	next.CurrentTurn = state.CurrentTurn + 1
	next.CurrentRound = state.CurrentRound + 1
	next.CurrentWord = next.WordList[next.CurrentTurn]
	next.BetweenRounds = true
	next.SetTeam(winner, winnerTeam)

	if winnerTeam.Score >= models.WinningScore {
		next.Status = models.GameStatusDone
		next.WordList = nil
		next.CurrentWord = ""
	}
	return next, nil
}
