package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the query layer with the pool so callers can run the few
// operations that need a transaction without holding the pool themselves.
type Store struct {
	pool *pgxpool.Pool
	*Queries
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:    pool,
		Queries: New(pool),
	}
}

// CompleteExtraction commits the audio key, the PENDING_ANALYSIS transition
// and the downstream job as one unit. Staging the job in the outbox table
// instead of publishing directly closes the window where a record claims
// readiness for analysis but no job exists.
func (s *Store) CompleteExtraction(ctx context.Context, videoID pgtype.UUID, audioKey, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := New(tx)
	if err := q.setExtracted(ctx, videoID, audioKey); err != nil {
		return err
	}
	if _, err := q.CreateOutboxMessage(ctx, jobType, data); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
