package db

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type VideoStatus string

const (
	VideoStatusUploading       VideoStatus = "UPLOADING"
	VideoStatusUploaded        VideoStatus = "UPLOADED"
	VideoStatusProcessing      VideoStatus = "PROCESSING"
	VideoStatusPendingAnalysis VideoStatus = "PENDING_ANALYSIS"
	VideoStatusSuccess         VideoStatus = "SUCCESS"
	VideoStatusFailed          VideoStatus = "FAILED"
)

var statusRank = map[VideoStatus]int{
	VideoStatusUploading:       0,
	VideoStatusUploaded:        1,
	VideoStatusProcessing:      2,
	VideoStatusPendingAnalysis: 3,
	VideoStatusSuccess:         4,
}

// CanTransition reports whether a record may move from one status to
// another. Statuses only advance along the chain; any state may drop to
// FAILED directly.
func CanTransition(from, to VideoStatus) bool {
	if to == VideoStatusFailed {
		return from != VideoStatusFailed
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank == fromRank+1
}

type Video struct {
	ID               pgtype.UUID
	OwnerID          pgtype.UUID
	OriginalFilename string
	SourceObjectKey  string
	AudioObjectKey   *string
	Status           VideoStatus
	CreatedAt        pgtype.Timestamptz
	UpdatedAt        pgtype.Timestamptz
}

// OutboxMessage is a queue publication staged in the same transaction as
// the state change that caused it.
type OutboxMessage struct {
	ID        int64
	JobType   string
	Payload   []byte
	CreatedAt pgtype.Timestamptz
	SentAt    pgtype.Timestamptz
}
