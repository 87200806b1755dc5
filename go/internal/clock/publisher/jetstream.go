package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableclock/go/internal/clock/events"
)

// JetStreamConfig describes the NATS connection and the stream that keeps
// table events. A zero MaxEvents keeps every event until it ages out.
type JetStreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	Retention     time.Duration
	MaxEvents     int64
	Replicas      int
	DedupWindow   time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "TABLECLOCK_EVENTS",
		SubjectPrefix: "tableclock.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Retention:     24 * time.Hour,
		Replicas:      1,
		DedupWindow:   2 * time.Minute,
	}
}

// JetStreamPublisher writes table events to a JetStream stream, one subject
// per table and event type.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("tableclock"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("lost NATS connection, table events will queue in the dispatcher")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS connection restored")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS async error")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open JetStream: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *JetStreamPublisher) streamConfig() jetstream.StreamConfig {
	maxMsgs := p.config.MaxEvents
	if maxMsgs <= 0 {
		maxMsgs = -1
	}
	return jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Table clock session events",
		Subjects:    []string{p.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.Retention,
		MaxMsgs:     maxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    p.config.Replicas,
		Duplicates:  p.config.DedupWindow,
	}
}

// ensureStream creates the event stream, or brings an existing one in line
// with the configured limits.
func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	want := p.streamConfig()

	stream, err := p.js.Stream(ctx, want.Name)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		if _, err := p.js.CreateStream(ctx, want); err != nil {
			return fmt.Errorf("create stream %s: %w", want.Name, err)
		}
		log.Info().Str("stream", want.Name).Strs("subjects", want.Subjects).Msg("event stream created")
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up stream %s: %w", want.Name, err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("read stream %s: %w", want.Name, err)
	}
	if sameLimits(info.Config, want) {
		return nil
	}
	if _, err := p.js.UpdateStream(ctx, want); err != nil {
		return fmt.Errorf("update stream %s: %w", want.Name, err)
	}
	log.Info().
		Str("stream", want.Name).
		Dur("retention", want.MaxAge).
		Int64("max_events", want.MaxMsgs).
		Msg("event stream limits updated")
	return nil
}

// Subject returns the subject an event is published on:
// <prefix>.<table_id>.<event_type>
func (p *JetStreamPublisher) Subject(event events.Event) string {
	return subjectFor(p.config.SubjectPrefix, event)
}

func subjectFor(prefix string, event events.Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, event.TableID, event.Type)
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event events.Event) error {
	subject := p.Subject(event)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(event.Type)},
			"Table-ID":   []string{event.TableID.String()},
			"Session-ID": []string{event.SessionID.String()},
		},
	},
		jetstream.WithMsgID(event.ID.String()),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	if ack.Duplicate {
		log.Debug().Str("event_id", event.ID.String()).Msg("event already in stream")
		return nil
	}
	log.Debug().
		Str("subject", subject).
		Str("event_type", string(event.Type)).
		Uint64("seq", ack.Sequence).
		Msg("event published")

	return nil
}

// Connected reports whether the NATS connection is up.
func (p *JetStreamPublisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

func sameLimits(a, b jetstream.StreamConfig) bool {
	return a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates &&
		slices.Equal(a.Subjects, b.Subjects)
}
