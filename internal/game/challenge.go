package game

import (
	"github.com/wordparty/catchphrase/internal/models"
)

// ChallengeOutcome is the result of applying a challenge response.
type ChallengeOutcome int

const (
	// ChallengePending means votes are still outstanding.
	ChallengePending ChallengeOutcome = iota
	// ChallengeUpheld means the table sided with the challenger: the round
	// ended against the talker and the point went to the defense.
	ChallengeUpheld
	// ChallengeDismissed means the table sided with the talker: play
	// resumes from the frozen countdown.
	ChallengeDismissed
)

// CanChallenge reports whether the player may open a challenge against the
// current clue: game mid-round, no challenge already active, and the player
// on the non-talking team.
func CanChallenge(state *models.GameState, player models.Player) bool {
	if state.Status != models.GameStatusInProgress || state.BetweenRounds || state.Challenge != nil {
		return false
	}
	if player.UID == state.CurrentTalker.Talker.UID {
		return false
	}
	return state.TeamOf(player.UID) == state.CurrentTalker.Team.Opponent()
}

// StartChallenge opens a dispute over the current clue. The challenger's
// vote counts as the first accept; everyone else except the talker still
// owes a response, during which the round's countdown stays paused.
func StartChallenge(state *models.GameState, challenger models.Player) (*models.GameState, error) {
	if state.Status != models.GameStatusInProgress {
		return state, ErrGameNotInProgress
	}
	if state.BetweenRounds {
		return state, ErrBetweenRounds
	}
	if state.Challenge != nil {
		return state, ErrChallengeActive
	}
	if challenger.UID == state.CurrentTalker.Talker.UID {
		return state, ErrTalkerCannotAct
	}
	if !CanChallenge(state, challenger) {
		return state, ErrNotEligible
	}

	next := state.Clone()
	next.Challenge = &models.Challenge{
		Challenger: challenger,
		Accepts:    models.PlayerList{challenger},
		Ignores:    models.PlayerList{},
		Unanswered: next.InGamePlayers().Without(challenger.UID, state.CurrentTalker.Talker.UID),
	}
	return next, nil
}

// RespondToChallenge records one player's judgement of the disputed clue.
// Every player except the talker votes exactly once. When the last vote
// lands the challenge resolves: upheld when accepts strictly outnumber
// ignores (ties favor the talker), in which case the round ends against
// the talker's team; dismissed otherwise, clearing the challenge so the
// countdown can resume from its frozen remaining time.
func RespondToChallenge(state *models.GameState, voter models.Player, accept bool) (*models.GameState, ChallengeOutcome, error) {
	if state.Status != models.GameStatusInProgress {
		return state, ChallengePending, ErrGameNotInProgress
	}
	if state.Challenge == nil {
		return state, ChallengePending, ErrNoChallengeActive
	}
	if voter.UID == state.CurrentTalker.Talker.UID {
		return state, ChallengePending, ErrTalkerCannotAct
	}
	if !state.Challenge.Unanswered.Contains(voter.UID) {
		if state.Challenge.HasResponded(voter.UID) {
			return state, ChallengePending, ErrAlreadyVoted
		}
		return state, ChallengePending, ErrNotEligible
	}

	next := state.Clone()
	ch := next.Challenge
	ch.Unanswered = ch.Unanswered.Without(voter.UID)
	if accept {
		ch.Accepts = append(ch.Accepts, voter)
	} else {
		ch.Ignores = append(ch.Ignores, voter)
	}

	if len(ch.Unanswered) > 0 {
		return next, ChallengePending, nil
	}

	if len(ch.Accepts) > len(ch.Ignores) {
		// The table sided with the challenger; the round ends on the spot.
		next.Challenge = nil
		resolved, err := TransitionToNextRound(next)
		if err != nil {
			return state, ChallengePending, err
		}
		return resolved, ChallengeUpheld, nil
	}

	next.Challenge = nil
	return next, ChallengeDismissed, nil
}
