package game

import (
	"github.com/wordparty/catchphrase/internal/models"
)

var (
	playerA = models.Player{UID: "uid-a", DisplayName: "Alice"}
	playerB = models.Player{UID: "uid-b", DisplayName: "Bob"}
	playerC = models.Player{UID: "uid-c", DisplayName: "Cara"}
	playerD = models.Player{UID: "uid-d", DisplayName: "Dan"}
	playerE = models.Player{UID: "uid-e", DisplayName: "Eve"}
)

// midRoundState returns an in-progress game on turn 1 with the round
// running: team1 = [A,B], team2 = [C,D], talker A.
func midRoundState() *models.GameState {
	words := []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}
	return &models.GameState{
		ID:     "game-1",
		Status: models.GameStatusInProgress,
		Team1:  models.Team{Players: models.PlayerList{playerA, playerB}},
		Team2:  models.Team{Players: models.PlayerList{playerC, playerD}},
		CurrentTalker: models.TalkerRef{
			Team:   models.TeamOne,
			Talker: playerA,
		},
		CurrentTurn:  1,
		CurrentRound: 1,
		CurrentWord:  "one",
		WordList:     words,
	}
}

func waitingState(players ...models.Player) *models.GameState {
	return &models.GameState{
		ID:      "game-1",
		Status:  models.GameStatusWaitingToStart,
		Players: players,
	}
}
