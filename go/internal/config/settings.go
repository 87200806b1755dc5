package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mcdev12/tableclock/go/internal/clock/table"
)

// DefaultMaxPlayers is the largest roster the settings form accepts.
const DefaultMaxPlayers = 6

// maxPlayerTimeMinutes keeps "mm:59" within an int64 millisecond count.
const maxPlayerTimeMinutes = (math.MaxInt64/1000 - 59) / 60

var ErrInvalidSettings = errors.New("invalid game settings")

// ParseGameSettings validates the values of the game settings form.
// playerTime is either minutes ("5", "2.5") or minutes and seconds ("4:30").
func ParseGameSettings(playerCount, playerTime string, maxPlayers int) (table.Settings, error) {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}

	count, err := strconv.Atoi(strings.TrimSpace(playerCount))
	if err != nil {
		return table.Settings{}, fmt.Errorf("%w: player count %q is not a number", ErrInvalidSettings, playerCount)
	}
	if count < 1 || count > maxPlayers {
		return table.Settings{}, fmt.Errorf("%w: player count must be between 1 and %d", ErrInvalidSettings, maxPlayers)
	}

	ms, err := parsePlayerTime(strings.TrimSpace(playerTime))
	if err != nil {
		return table.Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	return table.Settings{PlayerCount: count, PlayerTimeMs: ms}, nil
}

func parsePlayerTime(s string) (int64, error) {
	if minutes, seconds, ok := strings.Cut(s, ":"); ok {
		m, err := strconv.ParseInt(minutes, 10, 64)
		if err != nil || m < 0 {
			return 0, fmt.Errorf("player time %q has invalid minutes", s)
		}
		if m > maxPlayerTimeMinutes {
			return 0, fmt.Errorf("player time %q is too long", s)
		}
		sec, err := strconv.Atoi(seconds)
		if err != nil || sec < 0 || sec > 59 || len(seconds) != 2 {
			return 0, fmt.Errorf("player time %q has invalid seconds", s)
		}
		return (m*60 + int64(sec)) * 1000, nil
	}

	minutes, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes < 0 {
		return 0, fmt.Errorf("player time %q is not a number of minutes", s)
	}
	if minutes > maxPlayerTimeMinutes {
		return 0, fmt.Errorf("player time %q is too long", s)
	}
	return int64(math.Round(minutes * 60_000)), nil
}
