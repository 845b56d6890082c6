package models

import (
	"fmt"
)

// GameStatus defines the lifecycle state of a game.
type GameStatus string

const (
	GameStatusWaitingToStart GameStatus = "WAITING_TO_START"
	GameStatusInProgress     GameStatus = "IN_PROGRESS"
	GameStatusDone           GameStatus = "DONE"
)

// WinningScore is the fixed score a team must reach to end the game.
const WinningScore = 7

// GameState is the single shared record for a game. Transitions never
// mutate it in place: each produces a complete replacement value that is
// written back to the shared store.
type GameState struct {
	ID      string     `json:"id"`
	Status  GameStatus `json:"status"`
	Players PlayerList `json:"players"`

	Team1 Team `json:"team1"`
	Team2 Team `json:"team2"`

	CurrentTalker TalkerRef `json:"current_talker"`
	CurrentTurn   int       `json:"current_turn"`
	CurrentRound  int       `json:"current_round"`
	CurrentWord   string    `json:"current_word"`
	WordList      []string  `json:"word_list"`

	BetweenRounds bool       `json:"between_rounds"`
	Challenge     *Challenge `json:"challenge_in_progress,omitempty"`

	// TimerSeed is an opaque handle set when a round's countdown starts.
	// It guards against double-starts; the authoritative countdown value
	// lives with the countdown owner, not on the record.
	TimerSeed int64 `json:"timer_seed"`

	// Version increases by one on every successful store write. Backends
	// use it for compare-and-set so racing writers resolve to a bounded
	// last-writer-wins instead of silently stacking duplicates.
	Version int64 `json:"version"`
}

// Team returns the team in the named slot.
func (g *GameState) Team(id TeamID) Team {
	if id == TeamOne {
		return g.Team1
	}
	return g.Team2
}

// SetTeam replaces the team in the named slot.
func (g *GameState) SetTeam(id TeamID, t Team) {
	if id == TeamOne {
		g.Team1 = t
	} else {
		g.Team2 = t
	}
}

// TeamOf returns the slot holding the player with the given UID, or "" if
// the player is on neither roster.
func (g *GameState) TeamOf(uid string) TeamID {
	if g.Team1.Players.Contains(uid) {
		return TeamOne
	}
	if g.Team2.Players.Contains(uid) {
		return TeamTwo
	}
	return ""
}

// InGamePlayers returns the combined team rosters. Before teams are formed
// it returns the pre-game player list instead.
func (g *GameState) InGamePlayers() PlayerList {
	if g.Status == GameStatusWaitingToStart {
		return g.Players
	}
	all := make(PlayerList, 0, len(g.Team1.Players)+len(g.Team2.Players))
	all = append(all, g.Team1.Players...)
	all = append(all, g.Team2.Players...)
	return all
}

// Clone returns a deep copy of the record. Transitions copy first and
// modify the copy so the previously observed value stays intact.
func (g *GameState) Clone() *GameState {
	out := *g
	out.Players = append(PlayerList(nil), g.Players...)
	out.Team1.Players = append(PlayerList(nil), g.Team1.Players...)
	out.Team2.Players = append(PlayerList(nil), g.Team2.Players...)
	out.WordList = append([]string(nil), g.WordList...)
	if g.Challenge != nil {
		ch := Challenge{
			Challenger: g.Challenge.Challenger,
			Accepts:    append(PlayerList(nil), g.Challenge.Accepts...),
			Ignores:    append(PlayerList(nil), g.Challenge.Ignores...),
			Unanswered: append(PlayerList(nil), g.Challenge.Unanswered...),
		}
		out.Challenge = &ch
	}
	return &out
}

// Validate checks the record invariants that must hold at every observable
// state while the game is in progress. A failure here is a data integrity
// fault, not a user error.
func (g *GameState) Validate() error {
	if g.Status != GameStatusInProgress {
		return nil
	}
	talkerTeam := g.TeamOf(g.CurrentTalker.Talker.UID)
	if talkerTeam == "" {
		return fmt.Errorf("current talker %q is on neither roster", g.CurrentTalker.Talker.UID)
	}
	if talkerTeam != g.CurrentTalker.Team {
		return fmt.Errorf("current talker %q recorded on %s but rostered on %s",
			g.CurrentTalker.Talker.UID, g.CurrentTalker.Team, talkerTeam)
	}
	if g.CurrentTurn < 1 || g.CurrentTurn >= len(g.WordList) {
		return fmt.Errorf("current turn %d outside word list of length %d", g.CurrentTurn, len(g.WordList))
	}
	if g.CurrentWord != g.WordList[g.CurrentTurn] {
		return fmt.Errorf("current word %q does not match word list entry %q at turn %d",
			g.CurrentWord, g.WordList[g.CurrentTurn], g.CurrentTurn)
	}
	if g.Team1.Score >= WinningScore || g.Team2.Score >= WinningScore {
		return fmt.Errorf("score reached %d/%d without the game ending", g.Team1.Score, g.Team2.Score)
	}
	return nil
}
