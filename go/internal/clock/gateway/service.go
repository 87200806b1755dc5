// Package gateway serves table clocks over WebSocket and REST.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableclock/go/internal/clock/table"
	"github.com/mcdev12/tableclock/go/internal/clock/view"
)

// DefaultMaxPlayers caps the roster size accepted from clients.
const DefaultMaxPlayers = 6

var ErrTooManyPlayers = errors.New("too many players")

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	MaxPlayers       int
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		MaxPlayers:       DefaultMaxPlayers,
	}
}

// Service connects the table registry to WebSocket clients.
type Service struct {
	config   Config
	manager  *ConnectionManager
	registry *table.Registry
	history  HistoryReader

	mu      sync.Mutex
	watches map[uuid.UUID]func()
}

// NewService creates the gateway. history may be nil when game history is
// disabled.
func NewService(config Config, registry *table.Registry, history HistoryReader) *Service {
	if config.MaxPlayers <= 0 {
		config.MaxPlayers = DefaultMaxPlayers
	}
	s := &Service{
		config:   config,
		registry: registry,
		history:  history,
		watches:  make(map[uuid.UUID]func()),
	}
	s.manager = NewConnectionManager(config.ConnectionConfig, s.handleMessage)
	return s
}

// Start runs the broadcast loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting table gateway service")
	s.manager.Start(ctx)
	log.Info().Msg("table gateway service stopped")
}

// CreateTable registers a table and broadcasts its views to connected
// clients. Non-nil settings start the first game.
func (s *Service) CreateTable(settings *table.Settings) (*table.Table, *view.SessionView, error) {
	if settings != nil && settings.PlayerCount > s.config.MaxPlayers {
		return nil, nil, fmt.Errorf("%w: at most %d", ErrTooManyPlayers, s.config.MaxPlayers)
	}

	t := s.registry.Create()
	s.watch(t)

	if settings == nil {
		return t, nil, nil
	}

	v, err := t.Start(*settings)
	if err != nil {
		_ = s.RemoveTable(t.ID())
		return nil, nil, err
	}
	return t, &v, nil
}

// RemoveTable ends the table's game and disconnects its clients.
func (s *Service) RemoveTable(id uuid.UUID) error {
	s.mu.Lock()
	unsubscribe, ok := s.watches[id]
	delete(s.watches, id)
	s.mu.Unlock()

	if ok {
		unsubscribe()
	}
	s.manager.DisconnectTable(id)
	return s.registry.Remove(id)
}

func (s *Service) watch(t *table.Table) {
	id := t.ID()
	unsubscribe := t.Subscribe(func(v view.SessionView) {
		s.manager.BroadcastToTable(id, viewFrame(v))
	})

	s.mu.Lock()
	s.watches[id] = unsubscribe
	s.mu.Unlock()
}

// Stats returns connection statistics.
func (s *Service) Stats() ConnectionStats {
	return s.manager.GetConnectionStats()
}

// RegisterRoutes registers the WebSocket and REST routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/table", s.HandleTableConnection)
	mux.HandleFunc("GET /ws/stats", s.HandleConnectionStats)

	mux.HandleFunc("POST /api/tables", s.HandleCreateTable)
	mux.HandleFunc("GET /api/tables", s.HandleListTables)
	mux.HandleFunc("GET /api/tables/{id}/state", s.HandleGetTableState)
	mux.HandleFunc("DELETE /api/tables/{id}", s.HandleDeleteTable)
	mux.HandleFunc("GET /api/history", s.HandleGetHistory)

	log.Info().Msg("table gateway routes registered")
}
