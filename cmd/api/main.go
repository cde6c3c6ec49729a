package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"splitchain/db"
	"splitchain/dispute"
	"splitchain/notify"
	"splitchain/split"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap database pool")
	}
	defer pool.Close()

	splits := split.NewService(split.NewRepository(pool))
	dispatcher := notify.NewDispatcher(notify.NewLogSender(logger), logger)
	disputes := dispute.NewService(pool, dispute.NewRepository(pool), splits, dispatcher, logger)

	logger.Info().Msg("splitchain services ready")

	sweepInterval := time.Hour
	if raw := os.Getenv("DISPUTE_SWEEP_INTERVAL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			sweepInterval = parsed
		} else {
			logger.Warn().Str("value", raw).Msg("invalid DISPUTE_SWEEP_INTERVAL, using default")
		}
	}

	sweeper := dispute.NewSweeper(disputes, sweepInterval, logger)
	sweeper.Run(ctx)

	logger.Info().Msg("shutting down")
}
