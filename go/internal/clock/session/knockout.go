package session

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableclock/go/internal/clock/events"
	"github.com/mcdev12/tableclock/go/internal/clock/rotation"
	"github.com/mcdev12/tableclock/go/internal/clock/view"
)

// KnockOut removes a player from contention. Callers confirm with the user
// first; the session does not ask.
//
// The player's remaining time is split equally among the other players who
// still have time. Leftover milliseconds from the integer split go one each
// to recipients in rotation order after the knocked-out player, so the total
// time at the table is unchanged. With no recipients the time is discarded.
// If this leaves the active player out, the turn moves on immediately.
func (s *Session) KnockOut(playerID int) view.SessionView {
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
			Msg("knockout of unknown player ignored")
		return s.viewLocked()
	}
	if s.players[idx].IsOut() {
		log.Debug().Str("session_id", s.id.String()).Int("player_id", playerID).Msg("player already out")
		return s.viewLocked()
	}

	removed := s.players[idx].TimeRemainingMs
	s.players[idx].TimeRemainingMs = 0
	shares := s.redistributeLocked(idx, removed)

	log.Info().
		Str("session_id", s.id.String()).
		Int("player_id", playerID).
		Int64("removed_time_ms", removed).
		Int("recipients", len(shares)).
		Msg("player knocked out")

	s.emitEvent(events.EventTypePlayerKnockedOut, events.PlayerKnockedOutPayload{
		PlayerID:      playerID,
		RemovedTimeMs: removed,
		Shares:        shares,
		Discarded:     len(shares) == 0,
	})

	switch {
	case rotation.AllOut(s.players):
		s.endGameLocked()
	case s.activeID != 0:
		if active, ok := rotation.Find(s.players, s.activeID); !ok || s.players[active].IsOut() {
			s.advanceLocked()
		}
	}

	return s.publishLocked()
}

// redistributeLocked hands removed ms to every player still in, starting with
// the one after the player at idx. Returns recipient ID -> ms received.
func (s *Session) redistributeLocked(idx int, removed int64) map[int]int64 {
	n := len(s.players)
	var recipients []int
	for step := 1; step < n; step++ {
		j := (idx + step) % n
		if !s.players[j].IsOut() {
			recipients = append(recipients, j)
		}
	}
	if len(recipients) == 0 || removed <= 0 {
		return nil
	}

	count := int64(len(recipients))
	share, leftover := removed/count, removed%count

	shares := make(map[int]int64, len(recipients))
	for k, j := range recipients {
		amount := share
		if int64(k) < leftover {
			amount++
		}
		s.players[j].TimeRemainingMs += amount
		shares[s.players[j].ID] = amount
	}
	return shares
}
