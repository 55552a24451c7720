package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"tinyhunt/internal/arena"
	"tinyhunt/internal/config"
)

var errNotReady = eris.New("lobby or arena is not configured")

func newCheckCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the settings and report whether a match can start",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			logger := newLogger(settings.LogLevel, flags.pretty)
			if _, err := arena.ParsePoint(settings.WorldSpawn); err != nil {
				return eris.Wrap(err, "WORLD_SPAWN")
			}

			client, err := connectRedis(cmd.Context(), settings)
			if err != nil {
				return err
			}
			store := arena.NewStore(client, settings.RedisKeyPrefix, logger)
			defer store.Close()

			layout, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), settings, layout)
		},
	}
}

// report prints the effective settings and the layout, failing when a match
// could not start.
func report(w io.Writer, s config.Settings, layout arena.Layout) error {
	fmt.Fprintf(w, "players        %d-%d\n", s.MinPlayers, s.MaxPlayers)
	fmt.Fprintf(w, "auto start     %ds\n", s.AutoStartSeconds)
	fmt.Fprintf(w, "match          %ds (hunter after %ds)\n", s.GameDurationSeconds, s.HunterSelectionSeconds)
	if s.SuddenDeathEnabled {
		fmt.Fprintf(w, "sudden death   last %ds, reveal every %ds\n", s.SuddenDeathStartSeconds, s.RevealIntervalSeconds)
	} else {
		fmt.Fprintln(w, "sudden death   off")
	}

	lobby := layout.Lobby.Complete()
	fmt.Fprintf(w, "lobby          %s\n", readiness(lobby))
	def, ok := layout.ActiveArena()
	switch {
	case !ok:
		fmt.Fprintln(w, "arena          none")
	default:
		fmt.Fprintf(w, "arena          %s: %s (%d spawns)\n", def.Name, readiness(def.Ready()), len(def.Spawns))
	}
	if !lobby || !ok || !def.Ready() {
		return errNotReady
	}
	return nil
}

func readiness(ok bool) string {
	if ok {
		return "ready"
	}
	return "incomplete"
}
