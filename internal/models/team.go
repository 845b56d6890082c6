package models

// TeamID names one of the two fixed team slots in a game.
type TeamID string

const (
	TeamOne TeamID = "team1"
	TeamTwo TeamID = "team2"
)

// Opponent returns the other team slot.
func (t TeamID) Opponent() TeamID {
	if t == TeamOne {
		return TeamTwo
	}
	return TeamOne
}

// Team is one side of a game: a score and an ordered roster. Membership is
// immutable for the duration of the game.
type Team struct {
	Score   int        `json:"score"`
	Players PlayerList `json:"players"`
}

// TalkerRef identifies the player currently describing the word and the
// team they belong to.
type TalkerRef struct {
	Team   TeamID `json:"team"`
	Talker Player `json:"talker"`
}
