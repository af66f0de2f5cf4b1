package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port int

	Environment string
	LogLevel    string

	DatabaseURL string
	RedisURL    string

	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
	StorageRegion    string

	// UploadURLTTL is how long an issued upload URL stays valid.
	UploadURLTTL time.Duration

	JWTSecret string

	WorkerConcurrency int
	JobTimeout        time.Duration
	ScratchDir        string
	FFmpegPath        string
	FFprobePath       string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Port = getEnvInt("PORT", 8080)

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg.StorageEndpoint = os.Getenv("STORAGE_ENDPOINT")
	if cfg.StorageEndpoint == "" {
		return nil, fmt.Errorf("STORAGE_ENDPOINT is required")
	}

	cfg.StorageAccessKey = os.Getenv("STORAGE_ACCESS_KEY")
	if cfg.StorageAccessKey == "" {
		return nil, fmt.Errorf("STORAGE_ACCESS_KEY is required")
	}

	cfg.StorageSecretKey = os.Getenv("STORAGE_SECRET_KEY")
	if cfg.StorageSecretKey == "" {
		return nil, fmt.Errorf("STORAGE_SECRET_KEY is required")
	}

	cfg.StorageBucket = getEnvString("STORAGE_BUCKET", "videos")
	cfg.StorageUseSSL = getEnvBool("STORAGE_USE_SSL", false)
	cfg.StorageRegion = getEnvString("STORAGE_REGION", "auto")

	cfg.UploadURLTTL, err = getEnvDuration("UPLOAD_URL_TTL", "1h")
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_URL_TTL: %w", err)
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg.WorkerConcurrency = getEnvInt("WORKER_CONCURRENCY", 1)
	cfg.JobTimeout, err = getEnvDuration("JOB_TIMEOUT", "30m")
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
	}
	cfg.ScratchDir = getEnvString("SCRATCH_DIR", os.TempDir())
	cfg.FFmpegPath = getEnvString("FFMPEG_PATH", "ffmpeg")
	cfg.FFprobePath = getEnvString("FFPROBE_PATH", "ffprobe")

	cfg.OutboxPollInterval, err = getEnvDuration("OUTBOX_POLL_INTERVAL", "2s")
	if err != nil {
		return nil, fmt.Errorf("invalid OUTBOX_POLL_INTERVAL: %w", err)
	}
	cfg.OutboxBatchSize = getEnvInt("OUTBOX_BATCH_SIZE", 50)

	cfg.Environment = getEnvString("ENVIRONMENT", "development")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key, defaultValue string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return time.ParseDuration(value)
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("invalid worker concurrency: %d", c.WorkerConcurrency)
	}

	if c.UploadURLTTL < time.Minute {
		return fmt.Errorf("upload url ttl too short: %s", c.UploadURLTTL)
	}

	if c.OutboxBatchSize < 1 {
		return fmt.Errorf("invalid outbox batch size: %d", c.OutboxBatchSize)
	}

	return nil
}
