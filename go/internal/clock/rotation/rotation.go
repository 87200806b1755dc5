// Package rotation decides turn succession. Every function here is pure and
// never mutates the roster it is given.
package rotation

import (
	"cmp"
	"slices"

	"github.com/mcdev12/tableclock/go/internal/models"
)

// Find returns the roster index of the player with the given ID.
func Find(players []models.Player, id int) (int, bool) {
	for i, p := range players {
		if p.ID == id {
			return i, true
		}
	}
	return -1, false
}

// AllOut reports whether no player has time left. An empty roster counts as over.
func AllOut(players []models.Player) bool {
	for _, p := range players {
		if !p.IsOut() {
			return false
		}
	}
	return true
}

// NextEligible returns the ID of the player who moves after currentID.
//
// Players are tried in ascending ID order starting just after currentID and
// wrapping to the lowest ID; the first one with time left wins. currentID
// itself is tried last, so a lone survivor keeps the turn. When currentID is
// not in the roster (stale reference after a restart or a knockout race) the
// lowest-ID eligible player is returned instead.
func NextEligible(players []models.Player, currentID int) (int, bool) {
	ordered := byID(players)

	start, ok := Find(ordered, currentID)
	if !ok {
		for _, p := range ordered {
			if !p.IsOut() {
				return p.ID, true
			}
		}
		return 0, false
	}

	n := len(ordered)
	for step := 1; step <= n; step++ {
		p := ordered[(start+step)%n]
		if !p.IsOut() {
			return p.ID, true
		}
	}
	return 0, false
}

// byID returns a copy of players in ascending ID order.
func byID(players []models.Player) []models.Player {
	ordered := slices.Clone(players)
	slices.SortFunc(ordered, func(a, b models.Player) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return ordered
}
