package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableclock/go/internal/clock/events"
)

// Store persists finished games.
type Store interface {
	RecordGame(ctx context.Context, game GameRecord) error
}

// Recorder builds game records from the session event stream and stores one
// when a game ends. It implements the publisher interface so it can sit
// behind the event dispatcher.
type Recorder struct {
	store Store

	mu      sync.Mutex
	pending map[uuid.UUID]*GameRecord
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store:   store,
		pending: make(map[uuid.UUID]*GameRecord),
	}
}

// Publish folds one event into the game it belongs to.
func (r *Recorder) Publish(ctx context.Context, event events.Event) error {
	payload, err := events.ParsePayload(event)
	if err != nil {
		return err
	}

	game := r.take(event, payload)
	if game == nil {
		return nil
	}

	if err := r.store.RecordGame(ctx, *game); err != nil {
		return fmt.Errorf("failed to record game: %w", err)
	}
	log.Info().
		Str("session_id", game.SessionID.String()).
		Int("last_player_id", game.LastPlayerID).
		Int("eliminations", len(game.Eliminations)).
		Msg("game recorded")
	return nil
}

// take applies the event and returns the finished game, if this event ended it.
func (r *Recorder) take(event events.Event, payload any) *GameRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := payload.(*events.SessionStartedPayload); ok {
		r.pending[event.SessionID] = &GameRecord{
			SessionID:    event.SessionID,
			TableID:      event.TableID,
			PlayerCount:  p.PlayerCount,
			PlayerTimeMs: p.PlayerTimeMs,
			StartedAt:    p.StartedAt,
		}
		return nil
	}

	game, ok := r.pending[event.SessionID]
	if !ok {
		return nil
	}

	switch p := payload.(type) {
	case *events.PlayerKnockedOutPayload:
		game.Eliminations = append(game.Eliminations, Elimination{
			PlayerID: p.PlayerID,
			Reason:   ReasonKnockedOut,
			At:       event.Timestamp,
		})
	case *events.PlayerTimedOutPayload:
		game.Eliminations = append(game.Eliminations, Elimination{
			PlayerID: p.PlayerID,
			Reason:   ReasonTimedOut,
			At:       event.Timestamp,
		})
	case *events.GameOverPayload:
		delete(r.pending, event.SessionID)
		game.LastPlayerID = p.LastPlayerID
		game.EndedAt = p.EndedAt
		return game
	case *events.SessionClosedPayload:
		// abandoned before the end
		delete(r.pending, event.SessionID)
	}
	return nil
}
