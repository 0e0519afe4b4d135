// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"prestalib/internal/catalog"
	"prestalib/internal/config"
	"prestalib/internal/favorites"
	"prestalib/internal/httpx"
	"prestalib/internal/lending"
	"prestalib/internal/members"
	"prestalib/internal/metrics"
	"prestalib/internal/resolver"
	"prestalib/internal/retirement"
	"prestalib/internal/seed"
	"prestalib/internal/storage"
	"prestalib/internal/tracing"
	"prestalib/internal/waitlist"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migrate schema")
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTLPEndpoint, "prestalib-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("set up tracing")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shut down tracing")
		}
	}()

	if cfg.SeedOnStart {
		if err := seed.Run(ctx, store, logger); err != nil {
			logger.Fatal().Err(err).Msg("seed database")
		}
	}

	res := resolver.New(store)
	catalogSvc := catalog.NewService(store, logger)
	waitlistSvc := waitlist.NewService(store, logger)
	membersSvc := members.NewService(store, logger, nil)
	lendingSvc := lending.NewService(store, catalogSvc, waitlistSvc, res, logger, nil)
	favoritesSvc := favorites.NewService(store, res, logger)
	retirementSvc := retirement.NewService(store, catalogSvc, res, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
	})
	r.Handle("/metrics", promhttp.Handler())

	catalog.NewHandler(catalogSvc, logger).RegisterRoutes(r)
	lending.NewHandler(lendingSvc, logger).RegisterRoutes(r)
	waitlist.NewHandler(waitlistSvc, res, logger).RegisterRoutes(r)
	members.NewHandler(membersSvc, logger).RegisterRoutes(r)
	favorites.NewHandler(favoritesSvc, logger).RegisterRoutes(r)
	retirement.NewHandler(retirementSvc, logger).RegisterRoutes(r)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "prestalib").Logger()
}
