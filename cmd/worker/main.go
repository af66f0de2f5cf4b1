package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"
	"github.com/abdul-hamid-achik/job-queue/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Saranwich/longsorn/internal/config"
	"github.com/Saranwich/longsorn/internal/db"
	"github.com/Saranwich/longsorn/internal/logger"
	"github.com/Saranwich/longsorn/internal/media"
	"github.com/Saranwich/longsorn/internal/metrics"
	"github.com/Saranwich/longsorn/internal/storage"
	lsworker "github.com/Saranwich/longsorn/internal/worker"
)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zerologger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// A missing ffmpeg install should kill the process here, not fail
	// every job it picks up.
	extractor, err := media.NewExtractor(&media.Config{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
	})
	if err != nil {
		return fmt.Errorf("failed to init media tools: %w", err)
	}
	log.Info("media tools found", "ffmpeg", cfg.FFmpegPath, "ffprobe", cfg.FFprobePath)

	log.Info("connecting to database")
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Info("database connected")

	log.Info("connecting to object storage")
	store, err := storage.NewMinIOStorage(&storage.Config{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		UseSSL:    cfg.StorageUseSSL,
		Region:    cfg.StorageRegion,
	})
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	log.Info("object storage connected")

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
		broker.WithWorkerID(fmt.Sprintf("worker-%d", os.Getpid())),
	)
	log.Info("broker initialized")

	metrics.SetAppInfo("1.0.0", cfg.Environment, "worker")

	deps := &lsworker.Dependencies{
		Store:      db.NewStore(pool),
		Storage:    metrics.NewInstrumentedStorage(store),
		Extractor:  extractor,
		ScratchDir: cfg.ScratchDir,
	}

	log.Info("registering job handlers")
	registry := worker.NewRegistry()
	_ = registry.Register(lsworker.JobTypeExtractAudio, lsworker.ExtractAudioHandler(deps))

	registry.Use(
		middleware.RecoveryMiddleware(zerologger),
		middleware.LoggingMiddleware(zerologger),
		middleware.TimeoutMiddleware(cfg.JobTimeout),
		middleware.MetricsMiddleware(metrics.NewPrometheusCollector()),
	)

	log.Info("creating worker pool", "concurrency", cfg.WorkerConcurrency)

	workerPool := worker.NewPool(b, registry,
		worker.WithConcurrency(cfg.WorkerConcurrency),
		worker.WithPoolQueues([]string{"default"}),
		worker.WithPoolPollInterval(time.Second),
		worker.WithShutdownTimeout(30*time.Second),
		worker.WithPoolLogger(zerologger),
	)

	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		metricsPort = "9090"
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	metricsServer := &http.Server{
		Addr:    ":" + metricsPort,
		Handler: metricsMux,
	}

	go func() {
		log.Info("metrics server starting", "port", metricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	poolErr := make(chan error, 1)
	go func() {
		log.Info("starting worker pool")
		poolErr <- workerPool.Start(ctx)
	}()

	select {
	case err := <-poolErr:
		if err != nil && err != context.Canceled {
			return fmt.Errorf("worker pool error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := workerPool.Stop(shutdownCtx); err != nil {
			log.Error("worker pool stop failed", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown failed", "error", err)
		}
		log.Info("worker stopped")
	}

	return nil
}
