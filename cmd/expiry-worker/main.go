package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/citadental/clinic-booking/internal/booking"
	"github.com/citadental/clinic-booking/internal/config"
	"github.com/citadental/clinic-booking/internal/db"
	"github.com/citadental/clinic-booking/internal/metrics"
	redisclient "github.com/citadental/clinic-booking/internal/redis"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "expiry-worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}
	if cfg.Env == "dev" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("expiry-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	repo := booking.NewPgRepository(pgPool)
	notifier := redisclient.NewSlotNotifier(rdb, logger)
	bookingMetrics := metrics.NewBookingMetrics(nil)

	svc := booking.NewService(repo, notifier, bookingMetrics, booking.Config{
		HoldTTL:             cfg.HoldTTL,
		SlotDurationMinutes: cfg.SlotDuration,
		HorizonDays:         cfg.HorizonDays,
		Location:            cfg.Timezone,
	}, logger)

	// Run once at startup so a restart does not leave stale holds
	// sitting until the first tick.
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	reclaimed, err := svc.ExpireHolds(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("expiry run error")
		return
	}
	logger.Info().Int("reclaimed", reclaimed).Dur("took", time.Since(start)).Msg("expiry run complete")
}
