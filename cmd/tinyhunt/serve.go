package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/cobra"

	"tinyhunt/internal/arena"
	"tinyhunt/internal/config"
	"tinyhunt/internal/handlers"
	"tinyhunt/internal/hud"
	"tinyhunt/internal/match"
	"tinyhunt/internal/presence"
	"tinyhunt/internal/telemetry"
	"tinyhunt/pkg/realtime"
)

const shutdownGrace = 10 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the match loop and the HTTP surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			logger := newLogger(settings.LogLevel, flags.pretty)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, flags.configPath, settings, logger)
		},
	}
}

func connectRedis(ctx context.Context, settings config.Settings) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     settings.RedisAddress,
		Password: settings.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "redis at %s", settings.RedisAddress)
	}
	return client, nil
}

func serve(ctx context.Context, configPath string, settings config.Settings, logger zerolog.Logger) error {
	worldSpawn, err := arena.ParsePoint(settings.WorldSpawn)
	if err != nil {
		return eris.Wrap(err, "WORLD_SPAWN")
	}

	client, err := connectRedis(ctx, settings)
	if err != nil {
		return err
	}
	store := arena.NewStore(client, settings.RedisKeyPrefix, logger)
	defer store.Close()

	layout, err := store.Load(ctx)
	if err != nil {
		return err
	}
	provider := arena.NewProvider(layout, worldSpawn)

	metrics, err := telemetry.New(settings.StatsdAddress, []string{"service:tinyhunt"}, logger)
	if err != nil {
		return err
	}
	defer metrics.Close()

	dir := presence.New(nil, logger)
	sink := hud.NewSink(hud.DefaultCatalog(), logger)
	manager := match.NewManager(settings, provider, dir, sink,
		match.WithLogger(logger),
		match.WithRecorder(metrics),
	)

	loop := realtime.NewLoop(func(now time.Time) {
		start := time.Now()
		manager.Step(now)
		metrics.EmitTickStat(start)
	}, realtime.WithTickRate(settings.TickRate), realtime.WithLogger(logger.With().Str("component", "loop").Logger()))

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(loopCtx) }()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	handlers.NewMatchHandler(handlers.Deps{
		Loop:         loop,
		Manager:      manager,
		Directory:    dir,
		Sink:         sink,
		Store:        store,
		Provider:     provider,
		LoadSettings: func() (config.Settings, error) { return config.Load(configPath) },
		Logger:       logger,
	}).RegisterRoutes(r)

	// No write timeout: the event stream and the websocket stay open.
	server := &http.Server{
		Addr:              settings.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", settings.HTTPAddr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !eris.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-serverErr:
		if err != nil {
			return eris.Wrap(err, "http server")
		}
	case err := <-loopDone:
		loopDone <- err
		return eris.Wrap(err, "tick loop")
	}

	graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := loop.Do(graceCtx, manager.Shutdown); err != nil {
		logger.Warn().Err(err).Msg("match shutdown")
	}
	return eris.Wrap(server.Shutdown(graceCtx), "http shutdown")
}
