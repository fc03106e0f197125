package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/kasir-api/internal/config"
	"github.com/noah-isme/kasir-api/internal/lock"
	"github.com/noah-isme/kasir-api/internal/obs"
	"github.com/noah-isme/kasir-api/internal/order"
	"github.com/noah-isme/kasir-api/internal/store/postgres"
)

// taskSweepHeld voids HELD orders untouched longer than HELD_ORDER_TTL.
const taskSweepHeld = "orders:sweep_held"

const sweepLockKey = "kasir:lock:sweep_held"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "kasir"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	database := &postgres.DB{Pool: pool}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	sweeper := &order.Sweeper{
		Engine: &order.Engine{Store: database.Orders(), TaxRatePercent: cfg.TaxRatePercent},
		List:   database,
		TTL:    cfg.HeldOrderTTL,
		Log:    logger,
	}
	locker := lock.Redis{Client: redisClient, TTL: cfg.LockTTL, Backoff: cfg.LockRetryBackoff}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for asynq")
	}

	scheduler := asynq.NewScheduler(asynqOpt, nil)
	spec := fmt.Sprintf("@every %s", cfg.HeldSweepInterval)
	if _, err := scheduler.Register(spec, asynq.NewTask(taskSweepHeld, nil)); err != nil {
		logger.Fatal().Err(err).Msg("register sweep schedule")
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(taskSweepHeld, func(ctx context.Context, _ *asynq.Task) error {
		err := locker.Try(ctx, sweepLockKey, func(ctx context.Context) error {
			swept, err := sweeper.Sweep(ctx)
			if err != nil {
				return err
			}
			if swept > 0 {
				logger.Info().Int("swept", swept).Msg("voided expired held orders")
			}
			return nil
		})
		if errors.Is(err, lock.ErrHeld) {
			// another sweeper owns this round
			return nil
		}
		return err
	})

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Fatal().Err(err).Msg("scheduler stopped")
		}
	}()

	srv := asynq.NewServer(asynqOpt, asynq.Config{Concurrency: 1})
	logger.Info().Str("interval", cfg.HeldSweepInterval.String()).Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
