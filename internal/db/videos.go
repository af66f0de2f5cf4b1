package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	ErrNotFound        = errors.New("db: video not found")
	ErrStaleTransition = errors.New("db: video status changed concurrently")
)

const videoColumns = `id, owner_id, original_filename, source_object_key, audio_object_key, status, created_at, updated_at`

const createVideo = `
INSERT INTO videos (id, owner_id, original_filename, source_object_key, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + videoColumns

type CreateVideoParams struct {
	ID               pgtype.UUID
	OwnerID          pgtype.UUID
	OriginalFilename string
	SourceObjectKey  string
	Status           VideoStatus
}

func (q *Queries) CreateVideo(ctx context.Context, arg CreateVideoParams) (Video, error) {
	row := q.db.QueryRow(ctx, createVideo,
		arg.ID,
		arg.OwnerID,
		arg.OriginalFilename,
		arg.SourceObjectKey,
		arg.Status,
	)
	return scanVideo(row)
}

const getVideo = `
SELECT ` + videoColumns + ` FROM videos WHERE id = $1`

func (q *Queries) GetVideo(ctx context.Context, id pgtype.UUID) (Video, error) {
	row := q.db.QueryRow(ctx, getVideo, id)
	v, err := scanVideo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Video{}, ErrNotFound
	}
	return v, err
}

const getVideoForOwner = `
SELECT ` + videoColumns + ` FROM videos WHERE id = $1 AND owner_id = $2`

type GetVideoForOwnerParams struct {
	ID      pgtype.UUID
	OwnerID pgtype.UUID
}

// GetVideoForOwner scopes the lookup to the requesting principal. A record
// owned by someone else is indistinguishable from a missing one.
func (q *Queries) GetVideoForOwner(ctx context.Context, arg GetVideoForOwnerParams) (Video, error) {
	row := q.db.QueryRow(ctx, getVideoForOwner, arg.ID, arg.OwnerID)
	v, err := scanVideo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Video{}, ErrNotFound
	}
	return v, err
}

const advanceVideoStatus = `
UPDATE videos SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2`

type AdvanceVideoStatusParams struct {
	ID   pgtype.UUID
	From VideoStatus
	To   VideoStatus
}

// AdvanceVideoStatus is a compare-and-set transition. It fails with
// ErrStaleTransition when the record is no longer in the expected state,
// which keeps statuses moving forward only.
func (q *Queries) AdvanceVideoStatus(ctx context.Context, arg AdvanceVideoStatusParams) error {
	if !CanTransition(arg.From, arg.To) {
		return fmt.Errorf("db: illegal transition %s -> %s", arg.From, arg.To)
	}

	tag, err := q.db.Exec(ctx, advanceVideoStatus, arg.ID, arg.From, arg.To)
	if err != nil {
		return fmt.Errorf("advance video status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

const setVideoStatus = `
UPDATE videos SET status = $2, updated_at = now()
WHERE id = $1`

// SetVideoStatus overwrites the status unconditionally. The worker owns the
// record for the duration of a job, so it does not compare-and-set.
func (q *Queries) SetVideoStatus(ctx context.Context, id pgtype.UUID, status VideoStatus) error {
	tag, err := q.db.Exec(ctx, setVideoStatus, id, status)
	if err != nil {
		return fmt.Errorf("set video status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const setVideoExtracted = `
UPDATE videos SET audio_object_key = $2, status = $3, updated_at = now()
WHERE id = $1`

// setExtracted records the published audio key together with the
// PENDING_ANALYSIS transition. Callers run it inside the outbox transaction.
func (q *Queries) setExtracted(ctx context.Context, id pgtype.UUID, audioKey string) error {
	tag, err := q.db.Exec(ctx, setVideoExtracted, id, audioKey, VideoStatusPendingAnalysis)
	if err != nil {
		return fmt.Errorf("set video extracted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanVideo(row pgx.Row) (Video, error) {
	var v Video
	err := row.Scan(
		&v.ID,
		&v.OwnerID,
		&v.OriginalFilename,
		&v.SourceObjectKey,
		&v.AudioObjectKey,
		&v.Status,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	return v, err
}
