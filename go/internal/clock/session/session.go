// Package session implements the turn/timer state machine of one game.
//
// A Session owns the roster, the active-player pointer, the pause flag and
// the tick scheduler. Every input and every scheduler fire runs to completion
// under the session lock, so the state machine behaves as if it were single
// threaded. A Session is never reused: restarting a game means closing the
// old Session and creating a new one.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableclock/go/internal/clock/events"
	"github.com/mcdev12/tableclock/go/internal/clock/rotation"
	"github.com/mcdev12/tableclock/go/internal/clock/view"
	"github.com/mcdev12/tableclock/go/internal/keepawake"
	"github.com/mcdev12/tableclock/go/internal/models"
)

// DefaultTickQuantum is how often the active player's clock is decremented.
const DefaultTickQuantum = 10 * time.Millisecond

var (
	ErrInvalidPlayerCount = errors.New("player count must be at least 1")
	ErrInvalidPlayerTime  = errors.New("player time must not be negative")
)

// Config wires a Session to its collaborators. Zero values get defaults.
type Config struct {
	Clock       clockwork.Clock
	TickQuantum time.Duration
	KeepAwake   keepawake.Lock

	// OnView receives a snapshot after every state change and OnEvent every
	// domain event. Both run with the session lock held: they must not block
	// and must not call back into the Session.
	OnView  func(view.SessionView)
	OnEvent func(events.Event)
}

// Session is one game from setup until every player is out.
type Session struct {
	id      uuid.UUID
	clock   clockwork.Clock
	quantum time.Duration
	onView  func(view.SessionView)
	onEvent func(events.Event)
	awake   *keepAwakeGuard

	mu       sync.Mutex
	players  []models.Player
	activeID int // 0: nobody on the clock
	paused   bool
	closed   bool
	finished bool
	ticker   *tickHandle
}

// New starts a game with playerCount players holding playerTimeMs each.
// Nobody is active until the first tap.
func New(cfg Config, playerCount int, playerTimeMs int64) (*Session, error) {
	if playerCount < 1 {
		return nil, ErrInvalidPlayerCount
	}
	if playerTimeMs < 0 {
		return nil, ErrInvalidPlayerTime
	}

	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TickQuantum < time.Millisecond {
		cfg.TickQuantum = DefaultTickQuantum
	}
	if cfg.KeepAwake == nil {
		cfg.KeepAwake = keepawake.Noop{}
	}

	s := &Session{
		id:      uuid.New(),
		clock:   cfg.Clock,
		quantum: cfg.TickQuantum,
		onView:  cfg.OnView,
		onEvent: cfg.OnEvent,
		players: models.NewRoster(playerCount, playerTimeMs),
	}
	s.awake = newKeepAwakeGuard(s.id, cfg.KeepAwake)

	log.Info().
		Str("session_id", s.id.String()).
		Int("player_count", playerCount).
		Int64("player_time_ms", playerTimeMs).
		Dur("tick", s.quantum).
		Msg("session started")

	s.emitEvent(events.EventTypeSessionStarted, events.SessionStartedPayload{
		PlayerCount:  playerCount,
		PlayerTimeMs: playerTimeMs,
		TickMs:       s.quantum.Milliseconds(),
		StartedAt:    s.clock.Now(),
	})
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// View returns the current snapshot without emitting it.
func (s *Session) View() view.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Players returns a copy of the roster.
func (s *Session) Players() []models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Player(nil), s.players...)
}

// ActivePlayerID returns the player on the clock, if any.
func (s *Session) ActivePlayerID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID, s.activeID != 0
}

// Paused reports whether the clock is paused.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Running reports whether the tick scheduler is live.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker != nil
}

// GameOver reports whether every player is out.
func (s *Session) GameOver() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rotation.AllOut(s.players)
}

// Tap handles a tap on a player's button.
//
// While idle a tap on a player with time left starts their clock. A tap by
// the active player confirms their turn and hands the clock to the next
// eligible player, ending the game when nobody is left. Taps while paused and
// taps on other players are ignored.
func (s *Session) Tap(playerID int) view.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.viewLocked()
	}

	idx, ok := rotation.Find(s.players, playerID)
	if !ok {
		log.Warn().
			Str("session_id", s.id.String()).
			Int("player_id", playerID).
			Msg("tap on unknown player ignored")
		return s.viewLocked()
	}

	if s.paused {
		log.Debug().Str("session_id", s.id.String()).Int("player_id", playerID).Msg("tap ignored while paused")
		return s.viewLocked()
	}

	switch s.activeID {
	case 0:
		if s.players[idx].IsOut() {
			log.Debug().Str("session_id", s.id.String()).Int("player_id", playerID).Msg("tap on out player ignored")
			return s.viewLocked()
		}
		s.activateLocked(playerID)
		s.startTicking()
		s.awake.Request()

	case playerID:
		if s.players[idx].IsOut() {
			s.timedOutLocked()
		}
		s.advanceLocked()

	default:
		log.Debug().
			Str("session_id", s.id.String()).
			Int("player_id", playerID).
			Int("active_player_id", s.activeID).
			Msg("tap on inactive player ignored")
		return s.viewLocked()
	}

	return s.publishLocked()
}

// TogglePause flips the pause flag. Pausing keeps the active player and stops
// the scheduler; resuming restarts it when somebody is on the clock.
func (s *Session) TogglePause() view.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.viewLocked()
	}

	s.paused = !s.paused
	now := s.clock.Now()

	if s.paused {
		s.stopTicking()
		log.Info().Str("session_id", s.id.String()).Int("active_player_id", s.activeID).Msg("session paused")
		s.emitEvent(events.EventTypeSessionPaused, events.SessionPausedPayload{
			ActivePlayerID: s.activeID,
			PausedAt:       now,
		})
	} else {
		if s.activeID != 0 {
			s.startTicking()
		}
		log.Info().Str("session_id", s.id.String()).Int("active_player_id", s.activeID).Msg("session resumed")
		s.emitEvent(events.EventTypeSessionResumed, events.SessionResumedPayload{
			ActivePlayerID: s.activeID,
			ResumedAt:      now,
		})
	}

	return s.publishLocked()
}

// Close stops the scheduler and releases the wake lock. The session ignores
// all input afterwards. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.stopTicking()
	s.awake.Release()

	log.Info().Str("session_id", s.id.String()).Bool("finished", s.finished).Msg("session closed")
	s.emitEvent(events.EventTypeSessionClosed, events.SessionClosedPayload{
		ClosedAt: s.clock.Now(),
		Finished: s.finished,
	})
}

// activateLocked puts playerID on the clock.
func (s *Session) activateLocked(playerID int) {
	previous := s.activeID
	s.activeID = playerID

	idx, _ := rotation.Find(s.players, playerID)
	s.emitEvent(events.EventTypeTurnStarted, events.TurnStartedPayload{
		PlayerID:        playerID,
		PreviousID:      previous,
		TimeRemainingMs: s.players[idx].TimeRemainingMs,
	})
}

// advanceLocked hands the turn to the next eligible player, or ends the game.
func (s *Session) advanceLocked() {
	next, ok := rotation.NextEligible(s.players, s.activeID)
	if !ok {
		s.endGameLocked()
		return
	}
	s.activateLocked(next)
}

// endGameLocked clears the active player and tears down the scheduler and
// wake lock. The GameOver event is emitted once per session.
func (s *Session) endGameLocked() {
	last := s.activeID
	s.activeID = 0
	s.stopTicking()
	s.awake.Release()

	if s.finished {
		return
	}
	s.finished = true

	log.Info().Str("session_id", s.id.String()).Int("last_player_id", last).Msg("game over")
	s.emitEvent(events.EventTypeGameOver, events.GameOverPayload{
		LastPlayerID: last,
		EndedAt:      s.clock.Now(),
	})
}

func (s *Session) viewLocked() view.SessionView {
	return view.ToView(view.Snapshot{
		SessionID:      s.id,
		Players:        s.players,
		ActivePlayerID: s.activeID,
		Paused:         s.paused,
	})
}

func (s *Session) publishLocked() view.SessionView {
	v := s.viewLocked()
	if s.onView != nil {
		s.onView(v)
	}
	return v
}

func (s *Session) emitEvent(eventType events.EventType, payload any) {
	if s.onEvent == nil {
		return
	}
	event, err := events.NewEvent(eventType, s.id, s.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("session_id", s.id.String()).Msg("failed to build event")
		return
	}
	s.onEvent(event)
}
