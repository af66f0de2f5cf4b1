package db

import (
	"context"
	"fmt"
)

const createOutboxMessage = `
INSERT INTO outbox_messages (job_type, payload)
VALUES ($1, $2)
RETURNING id, job_type, payload, created_at, sent_at`

func (q *Queries) CreateOutboxMessage(ctx context.Context, jobType string, payload []byte) (OutboxMessage, error) {
	var m OutboxMessage
	err := q.db.QueryRow(ctx, createOutboxMessage, jobType, payload).Scan(
		&m.ID,
		&m.JobType,
		&m.Payload,
		&m.CreatedAt,
		&m.SentAt,
	)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("create outbox message: %w", err)
	}
	return m, nil
}

const listUnsentOutboxMessages = `
SELECT id, job_type, payload, created_at, sent_at
FROM outbox_messages
WHERE sent_at IS NULL
ORDER BY id
LIMIT $1`

func (q *Queries) ListUnsentOutboxMessages(ctx context.Context, limit int32) ([]OutboxMessage, error) {
	rows, err := q.db.Query(ctx, listUnsentOutboxMessages, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsent outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		if err := rows.Scan(&m.ID, &m.JobType, &m.Payload, &m.CreatedAt, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

const markOutboxMessageSent = `
UPDATE outbox_messages SET sent_at = now() WHERE id = $1 AND sent_at IS NULL`

func (q *Queries) MarkOutboxMessageSent(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, markOutboxMessageSent, id)
	if err != nil {
		return fmt.Errorf("mark outbox message sent: %w", err)
	}
	return nil
}
