package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableclock/go/internal/clock/history"
	"github.com/mcdev12/tableclock/go/internal/clock/table"
	"github.com/mcdev12/tableclock/go/internal/clock/view"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// HistoryReader lists finished games.
type HistoryReader interface {
	RecentGames(ctx context.Context, limit int) ([]history.GameRecord, error)
}

// CreateTableResponse is returned by POST /api/tables.
type CreateTableResponse struct {
	Table table.Summary     `json:"table"`
	View  *view.SessionView `json:"view,omitempty"`
}

// HandleCreateTable handles POST /api/tables. An empty body creates an idle
// table; settings start the first game right away.
func (s *Service) HandleCreateTable(w http.ResponseWriter, r *http.Request) {
	var settings *table.Settings
	var body table.Settings
	err := json.NewDecoder(r.Body).Decode(&body)
	switch {
	case errors.Is(err, io.EOF):
	case err != nil:
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	default:
		settings = &body
	}

	t, v, err := s.CreateTable(settings)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, CreateTableResponse{Table: t.Summary(), View: v})
}

// HandleListTables handles GET /api/tables
func (s *Service) HandleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

// HandleGetTableState handles GET /api/tables/{id}/state
func (s *Service) HandleGetTableState(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTable(w, r)
	if !ok {
		return
	}

	v, err := t.View()
	if errors.Is(err, table.ErrNoSession) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleDeleteTable handles DELETE /api/tables/{id}
func (s *Service) HandleDeleteTable(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTable(w, r)
	if !ok {
		return
	}

	if err := s.RemoveTable(t.ID()); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetHistory handles GET /api/history?limit=N
func (s *Service) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history is disabled", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	games, err := s.history.RecentGames(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to get game history")
		http.Error(w, "failed to get game history", http.StatusInternalServerError)
		return
	}
	if games == nil {
		games = []history.GameRecord{}
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Service) lookupTable(w http.ResponseWriter, r *http.Request) (*table.Table, bool) {
	tableID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid table ID format", http.StatusBadRequest)
		return nil, false
	}

	t, err := s.registry.Get(tableID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
