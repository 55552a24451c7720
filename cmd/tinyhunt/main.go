package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"tinyhunt/internal/config"
)

type rootFlags struct {
	configPath string
	pretty     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("tinyhunt failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "tinyhunt",
		Short:         "Hide-and-seek match server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", config.DefaultPath, "settings file (KEY=value lines)")
	cmd.PersistentFlags().BoolVar(&flags.pretty, "pretty", false, "human readable console logs")

	cmd.AddCommand(
		newServeCmd(flags),
		newCheckCmd(flags),
	)
	return cmd
}

// newLogger builds the process logger at level, falling back to info.
func newLogger(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr)
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	logger = logger.Level(lvl).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
