package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/tableclock/go/internal/clock/table"
	"github.com/mcdev12/tableclock/go/internal/clock/view"
)

// FrameType identifies a websocket frame.
type FrameType string

const (
	FrameTap         FrameType = "tap"
	FrameTogglePause FrameType = "toggle_pause"
	FrameKnockOut    FrameType = "knock_out"
	FrameStart       FrameType = "start"

	FrameView  FrameType = "view"
	FrameError FrameType = "error"
)

var (
	ErrUnknownFrame        = errors.New("unknown frame type")
	ErrKnockOutUnconfirmed = errors.New("knock out requires confirmation")
	ErrMissingPlayerID     = errors.New("player_id is required")
)

// InboundFrame is a command sent by a client.
type InboundFrame struct {
	Type         FrameType `json:"type"`
	PlayerID     int       `json:"player_id,omitempty"`
	Confirmed    bool      `json:"confirmed,omitempty"`
	PlayerCount  int       `json:"player_count,omitempty"`
	PlayerTimeMs int64     `json:"player_time_ms,omitempty"`
}

// OutboundFrame is pushed to clients.
type OutboundFrame struct {
	Type    FrameType         `json:"type"`
	Data    *view.SessionView `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
}

func viewFrame(v view.SessionView) OutboundFrame {
	return OutboundFrame{Type: FrameView, Data: &v}
}

func errorFrame(err error) OutboundFrame {
	return OutboundFrame{Type: FrameError, Message: err.Error()}
}

func parseFrame(message []byte) (InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		return InboundFrame{}, fmt.Errorf("failed to parse frame: %w", err)
	}
	return frame, nil
}

// apply runs a client command against a table. A start frame without
// settings restarts with the previous ones.
func apply(t *table.Table, frame InboundFrame) (view.SessionView, error) {
	switch frame.Type {
	case FrameTap:
		if frame.PlayerID == 0 {
			return view.SessionView{}, ErrMissingPlayerID
		}
		return t.Tap(frame.PlayerID)
	case FrameTogglePause:
		return t.TogglePause()
	case FrameKnockOut:
		if frame.PlayerID == 0 {
			return view.SessionView{}, ErrMissingPlayerID
		}
		if !frame.Confirmed {
			return view.SessionView{}, ErrKnockOutUnconfirmed
		}
		return t.KnockOut(frame.PlayerID)
	case FrameStart:
		if frame.PlayerCount == 0 && frame.PlayerTimeMs == 0 {
			return t.Restart()
		}
		return t.Start(table.Settings{PlayerCount: frame.PlayerCount, PlayerTimeMs: frame.PlayerTimeMs})
	default:
		return view.SessionView{}, fmt.Errorf("%w: %q", ErrUnknownFrame, frame.Type)
	}
}
