// Package outbox drains staged queue publications from the database into
// the broker. Rows are published in insertion order and marked sent only
// after the broker accepts them, so delivery is at-least-once and a
// consumer may see duplicates.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Saranwich/longsorn/internal/db"
	"github.com/Saranwich/longsorn/internal/metrics"
)

type Store interface {
	ListUnsentOutboxMessages(ctx context.Context, limit int32) ([]db.OutboxMessage, error)
	MarkOutboxMessageSent(ctx context.Context, id int64) error
}

type Broker interface {
	Enqueue(jobType string, payload interface{}) (string, error)
}

type Relay struct {
	store     Store
	broker    Broker
	interval  time.Duration
	batchSize int32
	logger    *slog.Logger
}

func NewRelay(store Store, broker Broker, interval time.Duration, batchSize int32, log *slog.Logger) *Relay {
	return &Relay{
		store:     store,
		broker:    broker,
		interval:  interval,
		batchSize: batchSize,
		logger:    log,
	}
}

// Run polls until the context is cancelled. A failed drain is logged and
// retried on the next tick rather than crashing the process.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sent, err := r.DrainOnce(ctx)
			if err != nil {
				metrics.OutboxDrainErrorsTotal.Inc()
				r.logger.Error("outbox drain failed", "sent", sent, "error", err)
				continue
			}
			if sent > 0 {
				r.logger.Info("outbox drained", "sent", sent)
			}
		}
	}
}

// DrainOnce publishes one batch. It stops at the first failure so later
// rows are never published ahead of an earlier one.
func (r *Relay) DrainOnce(ctx context.Context) (int, error) {
	messages, err := r.store.ListUnsentOutboxMessages(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list unsent messages: %w", err)
	}

	sent := 0
	for _, msg := range messages {
		if _, err := r.broker.Enqueue(msg.JobType, json.RawMessage(msg.Payload)); err != nil {
			return sent, fmt.Errorf("enqueue outbox message %d (%s): %w", msg.ID, msg.JobType, err)
		}
		if err := r.store.MarkOutboxMessageSent(ctx, msg.ID); err != nil {
			// The job is already on the queue; the row will be
			// published again next tick.
			return sent, fmt.Errorf("mark outbox message %d sent: %w", msg.ID, err)
		}
		metrics.OutboxMessagesSentTotal.Inc()
		metrics.RecordJobEnqueued(msg.JobType)
		sent++
	}
	return sent, nil
}
