package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatsim/internal/api"
	"github.com/eldtechnologies/chatsim/internal/api/middleware"
	"github.com/eldtechnologies/chatsim/internal/config"
	"github.com/eldtechnologies/chatsim/internal/hub"
	"github.com/eldtechnologies/chatsim/internal/persona"
	"github.com/eldtechnologies/chatsim/internal/session"
	"github.com/eldtechnologies/chatsim/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Open the conversation store
	backend, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("store unavailable")
	}
	defer backend.Close()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("store opened")

	// Redis also backs rate limiting when configured
	var redisClient *redis.Client
	if rs, ok := backend.(*store.RedisStore); ok {
		redisClient = rs.Client()
	} else if cfg.RedisURL != "" {
		rs, err := store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, rate limiting in memory")
		} else {
			defer rs.Close()
			redisClient = rs.Client()
		}
	}

	// Persona catalog
	catalog := persona.Builtin()
	if cfg.PersonasFile != "" {
		catalog, err = persona.LoadFile(cfg.PersonasFile)
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.PersonasFile).Msg("failed to load personas")
		}
		logger.Info().Int("personas", len(catalog.List())).Msg("personas loaded")
	}

	// Session and WebSocket hub
	sess := session.New(session.Deps{
		Messages:    store.NewMessageStore(backend, logger),
		Preferences: store.NewPreferences(backend, logger),
		Catalog:     catalog,
		Logger:      logger,
	}, cfg.SessionConfig())

	wsHub := hub.NewHub(hub.DefaultConfig(), logger)
	go wsHub.Run(ctx)
	sess.Subscribe(wsHub.Publish)
	sess.Start(ctx)

	// Create router
	router := api.NewRouter(logger, api.Options{
		Session: sess,
		Backend: backend,
		Hub:     wsHub,
		Redis:   redisClient,
		RateLimit: middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		},
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("persona", sess.ActivePersona().ID).
			Msg("starting chatsim server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	// Closes WebSocket clients, which Shutdown does not track.
	stop()

	logger.Info().Msg("server stopped")
}
