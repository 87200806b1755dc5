package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/tableclock/go/internal/clock/gateway"
	"github.com/mcdev12/tableclock/go/internal/config"
)

// tableclock serve
func Serve(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve table clocks over WebSocket and HTTP",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`serve runs the table gateway. Clients create a table with
			POST /api/tables and connect to /ws/table?table_id=<id> to send
			taps and receive the clock state after every change.

			Events are logged, and published to NATS JetStream when nats.enabled
			is set. Finished games are stored in Postgres when history.enabled
			is set; the connection is configured with the DB_* variables.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			services, err := setupServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer services.Close()

			gwCfg := gateway.DefaultConfig()
			gwCfg.MaxPlayers = cfg.Clock.MaxPlayers
			gw := gateway.NewService(gwCfg, services.Registry, services.HistoryReader())

			go services.Dispatcher.Run(ctx)
			go gw.Start(ctx)

			server := setupServer(cfg, gw)
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("server shutdown failed")
				}
			}()

			log.Info().Str("addr", server.Addr).Msg("tableclock server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			stats := services.Dispatcher.Stats()
			log.Info().
				Uint64("events_processed", stats.Processed).
				Uint64("events_dropped", stats.Dropped).
				Msg("tableclock server stopped")
			return nil
		},
	}
}
