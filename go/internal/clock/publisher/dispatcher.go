package publisher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableclock/go/internal/clock/events"
)

// publishTimeout bounds one publisher call.
const publishTimeout = 5 * time.Second

// Dispatcher fans session events out to publishers on its own goroutine so
// the game clock never waits on a broker or a database.
type Dispatcher struct {
	publishers []Publisher
	eventCh    chan events.Event

	processed atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64

	lastMu    sync.Mutex
	lastEvent time.Time
}

// NewDispatcher creates a dispatcher with a buffer of bufferSize events.
func NewDispatcher(bufferSize int, publishers ...Publisher) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Dispatcher{
		publishers: publishers,
		eventCh:    make(chan events.Event, bufferSize),
	}
}

// Enqueue hands an event to the dispatcher. It never blocks; when the buffer
// is full the event is dropped.
func (d *Dispatcher) Enqueue(event events.Event) {
	select {
	case d.eventCh <- event:
	default:
		d.dropped.Add(1)
		log.Warn().
			Str("event_type", string(event.Type)).
			Str("session_id", event.SessionID.String()).
			Msg("event buffer full, dropping event")
	}
}

// Run delivers events until ctx is cancelled, then flushes what is buffered.
func (d *Dispatcher) Run(ctx context.Context) {
	log.Info().Int("publishers", len(d.publishers)).Msg("event dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.flush()
			log.Info().Uint64("processed", d.processed.Load()).Msg("event dispatcher stopped")
			return
		case event := <-d.eventCh:
			d.deliver(context.WithoutCancel(ctx), event)
		}
	}
}

func (d *Dispatcher) flush() {
	for {
		select {
		case event := <-d.eventCh:
			d.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event events.Event) {
	for _, p := range d.publishers {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := p.Publish(pubCtx, event)
		cancel()
		if err != nil {
			d.failed.Add(1)
			log.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", string(event.Type)).
				Msg("failed to publish event")
		}
	}

	d.processed.Add(1)
	d.lastMu.Lock()
	d.lastEvent = time.Now()
	d.lastMu.Unlock()
}

// Stats reports delivery counters.
type Stats struct {
	Processed     uint64    `json:"processed"`
	Dropped       uint64    `json:"dropped"`
	Failed        uint64    `json:"failed"`
	Pending       int       `json:"pending"`
	LastEventTime time.Time `json:"last_event_time"`
}

func (d *Dispatcher) Stats() Stats {
	d.lastMu.Lock()
	last := d.lastEvent
	d.lastMu.Unlock()

	return Stats{
		Processed:     d.processed.Load(),
		Dropped:       d.dropped.Load(),
		Failed:        d.failed.Load(),
		Pending:       len(d.eventCh),
		LastEventTime: last,
	}
}
