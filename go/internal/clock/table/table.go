// Package table owns the current game at a table. Starting a game replaces
// the previous session wholesale.
package table

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableclock/go/internal/clock/events"
	"github.com/mcdev12/tableclock/go/internal/clock/session"
	"github.com/mcdev12/tableclock/go/internal/clock/view"
	"github.com/mcdev12/tableclock/go/internal/keepawake"
)

var (
	ErrNoSession     = errors.New("no game has been started at this table")
	ErrTableNotFound = errors.New("table not found")
)

// EventSink receives session events; it must not block.
type EventSink interface {
	Enqueue(event events.Event)
}

// Options are shared by every session a table starts.
type Options struct {
	Clock       clockwork.Clock
	TickQuantum time.Duration
	KeepAwake   keepawake.Lock
	Events      EventSink
}

// Settings is the game configuration a session is started with.
type Settings struct {
	PlayerCount  int   `json:"player_count"`
	PlayerTimeMs int64 `json:"player_time_ms"`
}

// Table holds the current session of one physical table.
type Table struct {
	id        uuid.UUID
	opts      Options
	createdAt time.Time

	mu       sync.Mutex
	current  *session.Session
	settings Settings

	subMu   sync.RWMutex
	subs    map[int]func(view.SessionView)
	nextSub int
}

// New creates an idle table.
func New(opts Options) *Table {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Table{
		id:        uuid.New(),
		opts:      opts,
		createdAt: opts.Clock.Now(),
		subs:      make(map[int]func(view.SessionView)),
	}
}

// ID returns the table ID.
func (t *Table) ID() uuid.UUID {
	return t.id
}

// Start tears down the current session, if any, and starts a new game.
func (t *Table) Start(settings Settings) (view.SessionView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		t.current.Close()
		t.current = nil
	}

	s, err := session.New(session.Config{
		Clock:       t.opts.Clock,
		TickQuantum: t.opts.TickQuantum,
		KeepAwake:   t.opts.KeepAwake,
		OnView:      t.broadcast,
		OnEvent:     t.forward,
	}, settings.PlayerCount, settings.PlayerTimeMs)
	if err != nil {
		return view.SessionView{}, fmt.Errorf("failed to start session: %w", err)
	}

	t.current = s
	t.settings = settings

	log.Info().
		Str("table_id", t.id.String()).
		Str("session_id", s.ID().String()).
		Msg("table started new session")

	v := s.View()
	t.broadcast(v)
	return v, nil
}

// Restart starts a new game with the settings of the last one.
func (t *Table) Restart() (view.SessionView, error) {
	t.mu.Lock()
	settings, started := t.settings, t.current != nil
	t.mu.Unlock()

	if !started {
		return view.SessionView{}, ErrNoSession
	}
	return t.Start(settings)
}

// Tap forwards a player tap to the current session.
func (t *Table) Tap(playerID int) (view.SessionView, error) {
	s, err := t.session()
	if err != nil {
		return view.SessionView{}, err
	}
	return s.Tap(playerID), nil
}

// TogglePause forwards a pause toggle to the current session.
func (t *Table) TogglePause() (view.SessionView, error) {
	s, err := t.session()
	if err != nil {
		return view.SessionView{}, err
	}
	return s.TogglePause(), nil
}

// KnockOut forwards a confirmed knockout to the current session.
func (t *Table) KnockOut(playerID int) (view.SessionView, error) {
	s, err := t.session()
	if err != nil {
		return view.SessionView{}, err
	}
	return s.KnockOut(playerID), nil
}

// View returns the current session's snapshot.
func (t *Table) View() (view.SessionView, error) {
	s, err := t.session()
	if err != nil {
		return view.SessionView{}, err
	}
	return s.View(), nil
}

// Settings returns the settings of the current game.
func (t *Table) Settings() (Settings, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings, t.current != nil
}

// Subscribe registers fn for every view the table emits. fn runs with the
// session lock held and must not block. The returned func unsubscribes.
func (t *Table) Subscribe(fn func(view.SessionView)) func() {
	t.subMu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.subMu.Unlock()

	return func() {
		t.subMu.Lock()
		delete(t.subs, id)
		t.subMu.Unlock()
	}
}

// Close ends the current session.
func (t *Table) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		t.current.Close()
		t.current = nil
	}
}

func (t *Table) session() (*session.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil, ErrNoSession
	}
	return t.current, nil
}

func (t *Table) broadcast(v view.SessionView) {
	t.subMu.RLock()
	defer t.subMu.RUnlock()
	for _, fn := range t.subs {
		fn(v)
	}
}

func (t *Table) forward(event events.Event) {
	event.TableID = t.id
	if t.opts.Events != nil {
		t.opts.Events.Enqueue(event)
	}
}
