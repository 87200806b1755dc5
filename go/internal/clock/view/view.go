// Package view projects session state into the snapshot that renderers draw.
package view

import (
	"github.com/google/uuid"

	"github.com/mcdev12/tableclock/go/internal/clock/rotation"
	"github.com/mcdev12/tableclock/go/internal/models"
)

// Snapshot is the raw session state a view is built from.
type Snapshot struct {
	SessionID      uuid.UUID
	Players        []models.Player
	ActivePlayerID int // 0 when nobody is on the clock
	Paused         bool
}

// SessionView is the render-ready state sent to every renderer after a change.
type SessionView struct {
	SessionID      uuid.UUID    `json:"session_id"`
	Players        []PlayerView `json:"players"`
	ActivePlayerID *int         `json:"active_player_id,omitempty"`
	IsPaused       bool         `json:"is_paused"`
	IsGameOver     bool         `json:"is_game_over"`
	CanPause       bool         `json:"can_pause"` // pause control is disabled while nobody is active
}

// PlayerView is one player's button/label state.
type PlayerView struct {
	ID              int    `json:"id"`
	TimeLabel       string `json:"time_label"`
	TimeRemainingMs int64  `json:"time_remaining_ms"`
	IsActive        bool   `json:"is_active"`
	IsOut           bool   `json:"is_out"`
}

// ToView maps a snapshot to its view. It does not retain s.Players.
func ToView(s Snapshot) SessionView {
	v := SessionView{
		SessionID:  s.SessionID,
		Players:    make([]PlayerView, len(s.Players)),
		IsPaused:   s.Paused,
		IsGameOver: rotation.AllOut(s.Players),
	}

	for i, p := range s.Players {
		remaining := max(p.TimeRemainingMs, 0)
		v.Players[i] = PlayerView{
			ID:              p.ID,
			TimeLabel:       FormatTimeLabel(remaining),
			TimeRemainingMs: remaining,
			IsActive:        s.ActivePlayerID != 0 && p.ID == s.ActivePlayerID,
			IsOut:           p.IsOut(),
		}
	}

	if s.ActivePlayerID != 0 {
		id := s.ActivePlayerID
		v.ActivePlayerID = &id
		v.CanPause = true
	}
	return v
}

// Active returns the active player's view, if any.
func (v SessionView) Active() (PlayerView, bool) {
	for _, p := range v.Players {
		if p.IsActive {
			return p, true
		}
	}
	return PlayerView{}, false
}
