package gateway

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableclock/go/internal/clock/table"
)

// HandleTableConnection handles WebSocket connections for a specific table.
// The client receives the current view right after connecting.
func (s *Service) HandleTableConnection(w http.ResponseWriter, r *http.Request) {
	tableIDStr := r.URL.Query().Get("table_id")
	if tableIDStr == "" {
		http.Error(w, "table_id is required", http.StatusBadRequest)
		return
	}

	tableID, err := uuid.Parse(tableIDStr)
	if err != nil {
		http.Error(w, "invalid table_id format", http.StatusBadRequest)
		return
	}

	t, err := s.registry.Get(tableID)
	if err != nil {
		http.Error(w, "table not found", http.StatusNotFound)
		return
	}

	conn, err := s.manager.UpgradeConnection(w, r, tableID)
	if err != nil {
		// the upgrader has already written an error response
		log.Error().
			Err(err).
			Str("table_id", tableID.String()).
			Msg("failed to upgrade WebSocket connection")
		return
	}

	if v, err := t.View(); err == nil {
		s.manager.SendTo(conn, viewFrame(v))
	}
}

// handleMessage applies a client frame to the connection's table. State
// changes reach every client through the table subscription; only errors
// are answered directly.
func (s *Service) handleMessage(conn *Connection, message []byte) {
	frame, err := parseFrame(message)
	if err != nil {
		s.manager.SendTo(conn, errorFrame(err))
		return
	}

	t, err := s.registry.Get(conn.TableID)
	if err != nil {
		s.manager.SendTo(conn, errorFrame(err))
		return
	}

	if frame.Type == FrameStart && frame.PlayerCount > s.config.MaxPlayers {
		s.manager.SendTo(conn, errorFrame(ErrTooManyPlayers))
		return
	}

	if _, err := apply(t, frame); err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", conn.ID).
			Str("frame_type", string(frame.Type)).
			Msg("client command rejected")
		if errors.Is(err, table.ErrNoSession) {
			err = errors.New("no game has been started; send a start frame first")
		}
		s.manager.SendTo(conn, errorFrame(err))
	}
}

// HandleConnectionStats returns statistics about active connections
func (s *Service) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.GetConnectionStats())
}
