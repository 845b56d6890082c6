package models

// Player is a participant in a game. Identity is by UID; DisplayName is
// presentational only.
type Player struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
}

// PlayerList is an ordered roster of players.
type PlayerList []Player

// Contains reports whether the list holds a player with the given UID.
func (l PlayerList) Contains(uid string) bool {
	return l.IndexOf(uid) >= 0
}

// IndexOf returns the roster position of the player with the given UID,
// or -1 if absent.
func (l PlayerList) IndexOf(uid string) int {
	for i, p := range l {
		if p.UID == uid {
			return i
		}
	}
	return -1
}

// Without returns a copy of the list with the named players removed.
func (l PlayerList) Without(uids ...string) PlayerList {
	out := make(PlayerList, 0, len(l))
	for _, p := range l {
		skip := false
		for _, uid := range uids {
			if p.UID == uid {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, p)
		}
	}
	return out
}
