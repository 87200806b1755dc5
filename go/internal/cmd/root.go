package main

import (
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mcdev12/tableclock/go/internal/config"
)

// Root builds the tableclock command tree.
func Root() *cobra.Command {
	var (
		configPath string
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:   "tableclock",
		Short: "A chess clock for any number of players",
		Long: heredoc.Doc(`tableclock keeps a countdown clock for every player at a table.
			Tapping your own number ends your turn and starts the next player's
			clock. A player whose time runs out is skipped; a player who is
			knocked out hands their remaining time to everyone still in.`),
		Args: cobra.NoArgs,

		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flag("trace").Changed {
				loaded.LogLevel = "trace"
			}
			level, err := zerolog.ParseLevel(loaded.LogLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", loaded.LogLevel, err)
			}
			zerolog.SetGlobalLevel(level)
			*cfg = *loaded
			return nil
		},
	}

	cfg = config.Default()

	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Path to the YAML config file")
	root.PersistentFlags().BoolP("trace", "t", false, "Show Trace Information")

	root.AddCommand(Serve(cfg))
	root.AddCommand(Play(cfg))

	return root
}
