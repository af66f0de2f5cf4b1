// The relay publishes staged outbox rows to the job queue. It runs as its
// own process so a queue outage never blocks the worker's database commits.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/redis/go-redis/v9"

	"github.com/Saranwich/longsorn/internal/config"
	"github.com/Saranwich/longsorn/internal/db"
	"github.com/Saranwich/longsorn/internal/logger"
	"github.com/Saranwich/longsorn/internal/metrics"
	"github.com/Saranwich/longsorn/internal/outbox"
)

type brokerAdapter struct {
	broker *broker.RedisStreamsBroker
}

func (a *brokerAdapter) Enqueue(jobType string, payload interface{}) (string, error) {
	j, err := job.New(jobType, payload)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}
	if err := a.broker.Enqueue(context.Background(), j); err != nil {
		return "", err
	}
	return j.ID, nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()

	log.Info("configuration loaded")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("connecting to database")
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Info("database connected")

	log.Info("connecting to redis")
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpt)
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	b := broker.NewRedisStreamsBroker(redisClient,
		broker.WithWorkerID(fmt.Sprintf("relay-%d", os.Getpid())),
	)
	log.Info("broker initialized")

	metrics.SetAppInfo("1.0.0", cfg.Environment, "relay")

	relay := outbox.NewRelay(
		db.New(pool),
		&brokerAdapter{broker: b},
		cfg.OutboxPollInterval,
		int32(cfg.OutboxBatchSize),
		log,
	)

	log.Info("relay starting",
		"poll_interval", cfg.OutboxPollInterval.String(),
		"batch_size", cfg.OutboxBatchSize,
	)

	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("relay error: %w", err)
	}

	log.Info("relay stopped")
	return nil
}
