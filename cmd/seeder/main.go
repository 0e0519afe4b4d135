// cmd/seeder/main.go
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"prestalib/internal/config"
	"prestalib/internal/seed"
	"prestalib/internal/storage"
)

func main() {
	cfg := config.Load()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "prestalib-seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migrate schema")
	}
	if err := seed.Run(ctx, store, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed database")
	}
	logger.Info().Msg("seeding complete")
}
