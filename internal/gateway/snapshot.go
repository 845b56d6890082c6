package gateway

import (
	"github.com/wordparty/catchphrase/internal/models"
)

// Snapshot is the per-viewer view of a game record. The word list never
// leaves the server, and the current word is hidden from the viewers who
// are supposed to guess it.
type Snapshot struct {
	ID      string            `json:"id"`
	Status  models.GameStatus `json:"status"`
	Players models.PlayerList `json:"players"`

	Team1 models.Team `json:"team1"`
	Team2 models.Team `json:"team2"`

	CurrentTalker models.TalkerRef `json:"current_talker"`
	CurrentTurn   int              `json:"current_turn"`
	CurrentRound  int              `json:"current_round"`
	CurrentWord   string           `json:"current_word,omitempty"`

	BetweenRounds bool              `json:"between_rounds"`
	Challenge     *models.Challenge `json:"challenge_in_progress,omitempty"`

	Version int64 `json:"version"`
}

// SnapshotFor projects the record for one viewer. viewerUID may be empty
// for an anonymous watcher, who sees the word like the defending team does.
func SnapshotFor(state *models.GameState, viewerUID string) Snapshot {
	snap := Snapshot{
		ID:            state.ID,
		Status:        state.Status,
		Players:       state.Players,
		Team1:         state.Team1,
		Team2:         state.Team2,
		CurrentTalker: state.CurrentTalker,
		CurrentTurn:   state.CurrentTurn,
		CurrentRound:  state.CurrentRound,
		CurrentWord:   state.CurrentWord,
		BetweenRounds: state.BetweenRounds,
		Challenge:     state.Challenge,
		Version:       state.Version,
	}
	if !shouldShowClue(state, viewerUID) {
		snap.CurrentWord = ""
	}
	return snap
}

// shouldShowClue decides whether the viewer may see the current word. The
// talker sees it, the defending team sees it so they can dispute clues, and
// watchers see it. The talker's own teammates are the ones guessing, so
// they never do.
func shouldShowClue(state *models.GameState, viewerUID string) bool {
	if state.Status != models.GameStatusInProgress {
		return false
	}
	if viewerUID == state.CurrentTalker.Talker.UID {
		return true
	}
	return state.TeamOf(viewerUID) != state.CurrentTalker.Team
}
