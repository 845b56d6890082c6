package models

// Challenge tracks an in-flight dispute over the current clue. It exists on
// the game record only while the round's countdown is logically paused.
type Challenge struct {
	Challenger Player     `json:"challenger"`
	Accepts    PlayerList `json:"accepts"`
	Ignores    PlayerList `json:"ignores"`
	Unanswered PlayerList `json:"unanswered"`
}

// HasResponded reports whether the player already cast a vote (the
// challenger's vote is the implicit accept recorded at creation).
func (c *Challenge) HasResponded(uid string) bool {
	return c.Accepts.Contains(uid) || c.Ignores.Contains(uid)
}
