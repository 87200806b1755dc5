package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every session domain event
type Event struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	TableID   uuid.UUID       `json:"table_id"` // filled in by the owning table
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType names a session transition
type EventType string

const (
	EventTypeSessionStarted   EventType = "SessionStarted"
	EventTypeTurnStarted      EventType = "TurnStarted"
	EventTypeSessionPaused    EventType = "SessionPaused"
	EventTypeSessionResumed   EventType = "SessionResumed"
	EventTypePlayerKnockedOut EventType = "PlayerKnockedOut"
	EventTypePlayerTimedOut   EventType = "PlayerTimedOut"
	EventTypeGameOver         EventType = "GameOver"
	EventTypeSessionClosed    EventType = "SessionClosed"
)

// NewEvent wraps a payload in an envelope
func NewEvent(eventType EventType, sessionID uuid.UUID, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		SessionID: sessionID,
		Type:      eventType,
		Timestamp: at,
		Data:      data,
	}, nil
}

// ParsePayload decodes event data into the payload struct for its type
func ParsePayload(event Event) (any, error) {
	var payload any
	switch event.Type {
	case EventTypeSessionStarted:
		payload = &SessionStartedPayload{}
	case EventTypeTurnStarted:
		payload = &TurnStartedPayload{}
	case EventTypeSessionPaused:
		payload = &SessionPausedPayload{}
	case EventTypeSessionResumed:
		payload = &SessionResumedPayload{}
	case EventTypePlayerKnockedOut:
		payload = &PlayerKnockedOutPayload{}
	case EventTypePlayerTimedOut:
		payload = &PlayerTimedOutPayload{}
	case EventTypeGameOver:
		payload = &GameOverPayload{}
	case EventTypeSessionClosed:
		payload = &SessionClosedPayload{}
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}

	if err := json.Unmarshal(event.Data, payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", event.Type, err)
	}
	return payload, nil
}
