package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/adrg/xdg"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/tableclock/go/internal/config"
	"github.com/mcdev12/tableclock/go/internal/tui"
)

// tableclock play
func Play(cfg *config.Config) *cobra.Command {
	var playerCount, playerTime, logPath string

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Run a clock in this terminal",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`play runs a clock for one table in the terminal.

			Each player has a number. Press your number to start the game or
			to end your turn. Space pauses, k knocks a player out after a
			confirmation, r restarts with the same settings and q quits.

			--time takes minutes ("5", "2.5") or minutes and seconds ("4:30").`),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.ParseGameSettings(playerCount, playerTime, cfg.Clock.MaxPlayers)
			if err != nil {
				return err
			}

			// the terminal belongs to the clock from here on
			if logPath == "" {
				if logPath, err = xdg.StateFile("tableclock/play.log"); err != nil {
					return fmt.Errorf("failed to locate log file: %w", err)
				}
			}
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer logFile.Close()
			log.Logger = zerolog.New(logFile).With().Timestamp().Logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			services, err := setupServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer services.Close()
			go services.Dispatcher.Run(ctx)

			t := services.Registry.Create()
			if _, err := t.Start(settings); err != nil {
				return err
			}

			screen, err := tcell.NewScreen()
			if err != nil {
				return fmt.Errorf("failed to create screen: %w", err)
			}
			if err := screen.Init(); err != nil {
				return fmt.Errorf("failed to initialise screen: %w", err)
			}
			defer screen.Fini()

			return tui.New(screen, t).Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&playerCount, "players", "p", "2", "Number of players")
	cmd.Flags().StringVarP(&playerTime, "time", "m", "10", "Time per player")
	cmd.Flags().StringVar(&logPath, "log-file", "", "Where to write logs (default: user state directory)")

	return cmd
}
