package models

// Player is one seat at the table with its own time bank.
type Player struct {
	ID              int   `json:"id"`                // 1..N in rotation order
	TimeRemainingMs int64 `json:"time_remaining_ms"` // may dip below zero for one tick before the turn moves on
}

// IsOut reports whether the player has no time left.
func (p Player) IsOut() bool {
	return p.TimeRemainingMs <= 0
}

// NewRoster builds count players with the same time bank, IDs starting at 1.
func NewRoster(count int, timeMs int64) []Player {
	players := make([]Player, count)
	for i := range players {
		players[i] = Player{ID: i + 1, TimeRemainingMs: timeMs}
	}
	return players
}

// TotalTimeMs sums the remaining time of every player.
func TotalTimeMs(players []Player) int64 {
	var total int64
	for _, p := range players {
		total += p.TimeRemainingMs
	}
	return total
}
