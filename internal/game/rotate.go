package game

import (
	"github.com/wordparty/catchphrase/internal/models"
)

// NextTurnTalker computes who talks on the next turn. The acting team
// alternates every turn, and within the team about to act the talker
// advances one roster position per act of that team, wrapping at the end.
// Team1 acts on odd turn numbers, so the whole rotation derives from
// CurrentTurn alone and the function stays pure and deterministic.
func NextTurnTalker(state *models.GameState) models.TalkerRef {
	nextTurn := state.CurrentTurn + 1
	team := actingTeam(nextTurn)
	roster := state.Team(team).Players
	if len(roster) == 0 {
		// Teams are never empty once formed; covered by Validate.
		return models.TalkerRef{Team: team}
	}

	// How many times this team has acted by the given turn: team1 owns
	// turns 1,3,5,... and team2 owns 2,4,6,...
	var acts int
	if team == models.TeamOne {
		acts = (nextTurn + 1) / 2
	} else {
		acts = nextTurn / 2
	}

	return models.TalkerRef{
		Team:   team,
		Talker: roster[(acts-1)%len(roster)],
	}
}

func actingTeam(turn int) models.TeamID {
	if turn%2 == 1 {
		return models.TeamOne
	}
	return models.TeamTwo
}
