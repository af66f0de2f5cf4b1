// Package health reports readiness of the service's backing systems.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type StorageHealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Latency int64  `json:"latency_ms"`
	Error   string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

type check struct {
	name string
	run  func(ctx context.Context) error
}

type Checker struct {
	checks []check
}

func NewChecker() *Checker {
	return &Checker{}
}

func (c *Checker) WithDatabase(pool *pgxpool.Pool) *Checker {
	c.checks = append(c.checks, check{
		name: "database",
		run:  func(ctx context.Context) error { return pool.Ping(ctx) },
	})
	return c
}

func (c *Checker) WithRedis(client *redis.Client) *Checker {
	c.checks = append(c.checks, check{
		name: "redis",
		run:  func(ctx context.Context) error { return client.Ping(ctx).Err() },
	})
	return c
}

func (c *Checker) WithStorage(s StorageHealthChecker) *Checker {
	c.checks = append(c.checks, check{name: "storage", run: s.HealthCheck})
	return c
}

// CheckAll runs every registered check concurrently under a shared
// timeout. One unhealthy component makes the whole response unhealthy.
func (c *Checker) CheckAll(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	components := make([]ComponentHealth, len(c.checks))
	var wg sync.WaitGroup
	for i, chk := range c.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			components[i] = runCheck(ctx, chk)
		}()
	}
	wg.Wait()

	status := StatusHealthy
	for _, comp := range components {
		if comp.Status == StatusUnhealthy {
			status = StatusUnhealthy
			break
		}
	}

	return HealthResponse{
		Status:     status,
		Components: components,
		Timestamp:  time.Now(),
	}
}

func runCheck(ctx context.Context, chk check) ComponentHealth {
	start := time.Now()
	err := chk.run(ctx)
	comp := ComponentHealth{
		Name:    chk.name,
		Status:  StatusHealthy,
		Latency: time.Since(start).Milliseconds(),
	}
	if err != nil {
		comp.Status = StatusUnhealthy
		comp.Error = err.Error()
	}
	return comp
}

func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
}

func ReadinessHandler(checker *Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := checker.CheckAll(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
