package game

import (
	"math/rand"

	"github.com/wordparty/catchphrase/internal/models"
)

// MinPlayers is the smallest roster a game can start with.
const MinPlayers = 4

// Join adds a player to a game that has not started yet. Joining twice is
// refused, as is joining once teams are formed.
func Join(state *models.GameState, player models.Player) (*models.GameState, error) {
	if state.Status != models.GameStatusWaitingToStart {
		return state, ErrGameAlreadyStarted
	}
	if state.Players.Contains(player.UID) {
		return state, ErrAlreadyJoined
	}

	next := state.Clone()
	next.Players = append(next.Players, player)
	return next, nil
}

// StartGame partitions the joined players into two shuffled teams, assigns
// the word list, and moves the game in progress. Only valid from
// WAITING_TO_START with at least MinPlayers players. The first player of
// team1 opens as talker, waiting between rounds for their own start signal.
// With an odd roster team1 takes the extra player.
func StartGame(state *models.GameState, wordList []string, rng *rand.Rand) (*models.GameState, error) {
	if state.Status != models.GameStatusWaitingToStart {
		return state, ErrGameAlreadyStarted
	}
	if len(state.Players) < MinPlayers {
		return state, ErrNotEnoughPlayers
	}
	if len(wordList) < 2 {
		return state, ErrWordListExhausted
	}

	shuffled := append(models.PlayerList(nil), state.Players...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	split := (len(shuffled) + 1) / 2

	next := state.Clone()
	next.Status = models.GameStatusInProgress
	next.Team1 = models.Team{Players: shuffled[:split:split]}
	next.Team2 = models.Team{Players: shuffled[split:]}
	next.WordList = wordList
	next.CurrentTurn = 1
	next.CurrentRound = 1
	next.CurrentWord = wordList[1]
	next.CurrentTalker = models.TalkerRef{Team: models.TeamOne, Talker: next.Team1.Players[0]}
	next.BetweenRounds = true
	next.Challenge = nil
	return next, nil
}

// StartRound clears the between-rounds flag and stamps the timer seed so a
// racing duplicate start is detectable. Only valid at a round boundary with
// no challenge pending.
func StartRound(state *models.GameState, seed int64) (*models.GameState, error) {
	if state.Status != models.GameStatusInProgress {
		return state, ErrGameNotInProgress
	}
	if !state.BetweenRounds {
		return state, ErrNotBetweenRounds
	}
	if state.Challenge != nil {
		return state, ErrChallengeActive
	}

	next := state.Clone()
	next.BetweenRounds = false
	next.TimerSeed = seed
	return next, nil
}
