package table

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Summary describes a table for listings.
type Summary struct {
	TableID        string    `json:"table_id"`
	CreatedAt      time.Time `json:"created_at"`
	Started        bool      `json:"started"`
	Settings       Settings  `json:"settings"`
	ActivePlayerID *int      `json:"active_player_id,omitempty"`
	IsPaused       bool      `json:"is_paused"`
	IsGameOver     bool      `json:"is_game_over"`
}

// Registry keeps the tables served by this process in memory.
type Registry struct {
	opts Options

	mu     sync.RWMutex
	tables map[uuid.UUID]*Table
}

// NewRegistry creates an empty registry whose tables share opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:   opts,
		tables: make(map[uuid.UUID]*Table),
	}
}

// Create adds a new idle table.
func (r *Registry) Create() *Table {
	t := New(r.opts)

	r.mu.Lock()
	r.tables[t.ID()] = t
	count := len(r.tables)
	r.mu.Unlock()

	log.Info().Str("table_id", t.ID().String()).Int("tables", count).Msg("table created")
	return t
}

// Get returns the table with the given ID.
func (r *Registry) Get(id uuid.UUID) (*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tables[id]
	if !ok {
		return nil, ErrTableNotFound
	}
	return t, nil
}

// Remove closes and forgets a table.
func (r *Registry) Remove(id uuid.UUID) error {
	r.mu.Lock()
	t, ok := r.tables[id]
	delete(r.tables, id)
	r.mu.Unlock()

	if !ok {
		return ErrTableNotFound
	}
	t.Close()
	log.Info().Str("table_id", id.String()).Msg("table removed")
	return nil
}

// List summarizes every table, oldest first.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	tables := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		tables = append(tables, t)
	}
	r.mu.RUnlock()

	slices.SortFunc(tables, func(a, b *Table) int {
		return a.createdAt.Compare(b.createdAt)
	})

	summaries := make([]Summary, 0, len(tables))
	for _, t := range tables {
		summaries = append(summaries, t.Summary())
	}
	return summaries
}

// CloseAll ends every session; used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tables {
		t.Close()
	}
}

// Summary describes the table's current state.
func (t *Table) Summary() Summary {
	s := Summary{
		TableID:   t.id.String(),
		CreatedAt: t.createdAt,
	}
	s.Settings, s.Started = t.Settings()
	if v, err := t.View(); err == nil {
		s.ActivePlayerID = v.ActivePlayerID
		s.IsPaused = v.IsPaused
		s.IsGameOver = v.IsGameOver
	}
	return s
}
