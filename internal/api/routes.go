package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Saranwich/longsorn/internal/db"
	"github.com/Saranwich/longsorn/internal/health"
	"github.com/Saranwich/longsorn/internal/metrics"
	"github.com/Saranwich/longsorn/internal/storage"
)

// Querier is the slice of the database layer the API needs. *db.Queries
// satisfies it; tests plug in a mock.
type Querier interface {
	CreateVideo(ctx context.Context, arg db.CreateVideoParams) (db.Video, error)
	GetVideoForOwner(ctx context.Context, arg db.GetVideoForOwnerParams) (db.Video, error)
	AdvanceVideoStatus(ctx context.Context, arg db.AdvanceVideoStatusParams) error
}

type Broker interface {
	Enqueue(jobType string, payload interface{}) (string, error)
}

type Config struct {
	Storage      storage.Storage
	Broker       Broker
	Queries      Querier
	JWTSecret    string
	UploadURLTTL time.Duration
	Pool         *pgxpool.Pool
	RedisClient  *redis.Client
}

func NewRouter(cfg *Config) http.Handler {
	mux := http.NewServeMux()

	checker := health.NewChecker()
	if cfg.Pool != nil {
		checker = checker.WithDatabase(cfg.Pool)
	}
	if cfg.RedisClient != nil {
		checker = checker.WithRedis(cfg.RedisClient)
	}
	if cfg.Storage != nil {
		checker = checker.WithStorage(cfg.Storage)
	}
	mux.HandleFunc("GET /health", health.ReadinessHandler(checker))
	mux.HandleFunc("GET /health/live", health.LivenessHandler())
	mux.HandleFunc("GET /health/ready", health.ReadinessHandler(checker))
	mux.Handle("GET /metrics", promhttp.Handler())

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /v1/videos/request-upload", requestUploadHandler(cfg))
	apiMux.HandleFunc("POST /v1/videos/{id}/upload-complete", uploadCompleteHandler(cfg))
	apiMux.HandleFunc("GET /v1/videos/{id}", getVideoHandler(cfg))

	mux.Handle("/v1/", AuthMiddleware(cfg.JWTSecret)(apiMux))

	return RequestID(RequestLogger(Recovery(metrics.HTTPMetricsMiddleware(mux))))
}
