package events

import (
	"time"
)

// Event payload types shared by the session, the publishers and the history recorder

// SessionStartedPayload is the payload for a SessionStarted event
type SessionStartedPayload struct {
	PlayerCount  int       `json:"player_count"`
	PlayerTimeMs int64     `json:"player_time_ms"`
	TickMs       int64     `json:"tick_ms"`
	StartedAt    time.Time `json:"started_at"`
}

// TurnStartedPayload is the payload for a TurnStarted event
type TurnStartedPayload struct {
	PlayerID        int   `json:"player_id"`
	PreviousID      int   `json:"previous_id,omitempty"` // 0 when the game was idle
	TimeRemainingMs int64 `json:"time_remaining_ms"`
}

// SessionPausedPayload is the payload for a SessionPaused event
type SessionPausedPayload struct {
	ActivePlayerID int       `json:"active_player_id,omitempty"`
	PausedAt       time.Time `json:"paused_at"`
}

// SessionResumedPayload is the payload for a SessionResumed event
type SessionResumedPayload struct {
	ActivePlayerID int       `json:"active_player_id,omitempty"`
	ResumedAt      time.Time `json:"resumed_at"`
}

// PlayerKnockedOutPayload is the payload for a PlayerKnockedOut event
type PlayerKnockedOutPayload struct {
	PlayerID      int           `json:"player_id"`
	RemovedTimeMs int64         `json:"removed_time_ms"`
	Shares        map[int]int64 `json:"shares,omitempty"` // recipient ID -> ms received
	Discarded     bool          `json:"discarded"`        // nobody was left to receive the time
}

// PlayerTimedOutPayload is the payload for a PlayerTimedOut event
type PlayerTimedOutPayload struct {
	PlayerID int `json:"player_id"`
}

// GameOverPayload is the payload for a GameOver event
type GameOverPayload struct {
	LastPlayerID int       `json:"last_player_id,omitempty"`
	EndedAt      time.Time `json:"ended_at"`
}

// SessionClosedPayload is the payload for a SessionClosed event
type SessionClosedPayload struct {
	ClosedAt time.Time `json:"closed_at"`
	Finished bool      `json:"finished"`
}
