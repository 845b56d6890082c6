package game

import "errors"

// Precondition errors. A transition returning one of these has refused to
// run and left the record untouched.
var (
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrGameNotInProgress  = errors.New("game not in progress")
	ErrNotEnoughPlayers   = errors.New("at least 4 players are required to start")
	ErrAlreadyJoined      = errors.New("player already joined")
	ErrNotBetweenRounds   = errors.New("no round boundary to act on")
	ErrBetweenRounds      = errors.New("round has not started")
	ErrChallengeActive    = errors.New("a challenge is already in progress")
	ErrNoChallengeActive  = errors.New("no challenge in progress")
	ErrNotCurrentTalker   = errors.New("only the current talker may advance the turn")
	ErrTalkerCannotAct    = errors.New("the current talker may not take this action")
	ErrNotEligible        = errors.New("player is not eligible for this action")
	ErrAlreadyVoted       = errors.New("player already responded to the challenge")
	ErrWordListExhausted  = errors.New("word list exhausted")
	ErrIntegrityViolation = errors.New("game record integrity violation")
)
