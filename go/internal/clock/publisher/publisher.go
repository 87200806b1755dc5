package publisher

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableclock/go/internal/clock/events"
)

// Publisher delivers a session event somewhere outside the process
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// LogPublisher writes events to the log; used when no broker is configured
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, event events.Event) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("table_id", event.TableID.String()).
		Str("session_id", event.SessionID.String()).
		RawJSON("data", event.Data).
		Msg("session event")
	return nil
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ctx context.Context, event events.Event) error

func (f PublisherFunc) Publish(ctx context.Context, event events.Event) error {
	return f(ctx, event)
}
