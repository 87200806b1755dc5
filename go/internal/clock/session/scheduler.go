package session

import (
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableclock/go/internal/clock/events"
	"github.com/mcdev12/tableclock/go/internal/clock/rotation"
)

// tickHandle is one running scheduler. A session holds at most one; a fire
// from any handle other than the current one is discarded.
type tickHandle struct {
	ticker clockwork.Ticker
	done   chan struct{}
}

// startTicking replaces any running scheduler with a fresh one.
// Caller holds s.mu.
func (s *Session) startTicking() {
	if s.ticker != nil {
		s.stopTicking()
		log.Debug().Str("session_id", s.id.String()).Msg("replaced existing ticker")
	}

	h := &tickHandle{
		ticker: s.clock.NewTicker(s.quantum),
		done:   make(chan struct{}),
	}
	s.ticker = h

	go s.runTicker(h)
}

// stopTicking cancels the running scheduler, if any. It does not wait for the
// ticker goroutine, which may be blocked on s.mu; that goroutine sees it is no
// longer current and exits. Caller holds s.mu.
func (s *Session) stopTicking() {
	if s.ticker == nil {
		return
	}
	s.ticker.ticker.Stop()
	close(s.ticker.done)
	s.ticker = nil
}

func (s *Session) runTicker(h *tickHandle) {
	for {
		select {
		case <-h.done:
			return
		case <-h.ticker.Chan():
			s.onTick(h)
		}
	}
}

// onTick is one scheduler evaluation. An active player who is already out is
// moved past instead of decremented, so a player reaching zero stays on the
// clock for at most one quantum.
func (s *Session) onTick(h *tickHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != h {
		return
	}

	idx, ok := rotation.Find(s.players, s.activeID)
	switch {
	case !ok:
		s.advanceLocked()
	case s.players[idx].IsOut():
		s.timedOutLocked()
		s.advanceLocked()
	default:
		s.players[idx].TimeRemainingMs -= s.quantum.Milliseconds()
	}

	s.publishLocked()
}

// timedOutLocked reports the active player's expiry. Caller holds s.mu and
// advances the turn afterwards.
func (s *Session) timedOutLocked() {
	log.Info().
		Str("session_id", s.id.String()).
		Int("player_id", s.activeID).
		Msg("player ran out of time")
	s.emitEvent(events.EventTypePlayerTimedOut, events.PlayerTimedOutPayload{PlayerID: s.activeID})
}
