package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableclock/go/internal/clock/gateway"
	"github.com/mcdev12/tableclock/go/internal/clock/history"
	"github.com/mcdev12/tableclock/go/internal/clock/publisher"
	"github.com/mcdev12/tableclock/go/internal/clock/table"
	"github.com/mcdev12/tableclock/go/internal/config"
	"github.com/mcdev12/tableclock/go/internal/dbconfig"
	"github.com/mcdev12/tableclock/go/internal/keepawake"
)

// Services is everything a command needs around its tables.
type Services struct {
	Dispatcher *publisher.Dispatcher
	Registry   *table.Registry
	History    *history.Repository

	jetstream *publisher.JetStreamPublisher
	pool      *pgxpool.Pool
}

func setupServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	// Wire up the event pipeline
	// session events → dispatcher → log / JetStream / history
	services := &Services{}
	publishers := []publisher.Publisher{publisher.NewLogPublisher()}

	if cfg.NATS.Enabled {
		jsCfg := publisher.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATS.URL
		jsCfg.StreamName = cfg.NATS.Stream

		js, err := publisher.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to set up event publisher: %w", err)
		}
		services.jetstream = js
		publishers = append(publishers, js)
	}

	if cfg.History.Enabled {
		dbCfg := dbconfig.NewConfigFromEnv()
		pool, err := dbCfg.Connect(ctx)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.pool = pool

		repo := history.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			services.Close()
			return nil, err
		}
		services.History = repo
		publishers = append(publishers, history.NewRecorder(repo))

		log.Info().Str("database", dbCfg.Database).Msg("game history enabled")
	}

	var lock keepawake.Lock = keepawake.Noop{}
	if cfg.Clock.KeepAwake {
		lock = keepawake.Default()
	}

	services.Dispatcher = publisher.NewDispatcher(0, publishers...)
	services.Registry = table.NewRegistry(table.Options{
		TickQuantum: cfg.TickQuantum(),
		KeepAwake:   lock,
		Events:      services.Dispatcher,
	})
	return services, nil
}

// HistoryReader returns the history store for the gateway, or nil when
// history is disabled.
func (s *Services) HistoryReader() gateway.HistoryReader {
	if s.History == nil {
		return nil
	}
	return s.History
}

// Close releases broker and database connections.
func (s *Services) Close() {
	if s.Registry != nil {
		s.Registry.CloseAll()
	}
	if s.jetstream != nil {
		if err := s.jetstream.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close NATS connection")
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
