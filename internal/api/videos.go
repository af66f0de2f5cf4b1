package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Saranwich/longsorn/internal/apperror"
	"github.com/Saranwich/longsorn/internal/db"
	"github.com/Saranwich/longsorn/internal/logger"
	"github.com/Saranwich/longsorn/internal/metrics"
	"github.com/Saranwich/longsorn/internal/objectkey"
	"github.com/Saranwich/longsorn/internal/worker"
)

type requestUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type requestUploadResponse struct {
	VideoID   string `json:"video_id"`
	ObjectKey string `json:"object_key"`
	UploadURL string `json:"upload_url"`
	ExpiresIn int64  `json:"expires_in"`
}

type videoResponse struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	OriginalFilename string    `json:"original_filename"`
	SourceObjectKey  string    `json:"source_object_key"`
	AudioObjectKey   *string   `json:"audio_object_key,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newVideoResponse(v db.Video) videoResponse {
	return videoResponse{
		ID:               uuid.UUID(v.ID.Bytes).String(),
		Status:           string(v.Status),
		OriginalFilename: v.OriginalFilename,
		SourceObjectKey:  v.SourceObjectKey,
		AudioObjectKey:   v.AudioObjectKey,
		CreatedAt:        v.CreatedAt.Time,
		UpdatedAt:        v.UpdatedAt.Time,
	}
}

// requestUploadHandler issues a presigned PUT URL and registers the
// pending record. The URL is requested first so a storage outage leaves no
// orphaned UPLOADING row behind.
func requestUploadHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := GetOwnerID(r.Context())
		if !ok {
			apperror.WriteJSON(w, r, apperror.ErrUnauthorized)
			return
		}

		var req requestUploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "invalid_body", "Request body must be JSON with a filename", http.StatusBadRequest))
			return
		}
		if strings.TrimSpace(req.Filename) == "" {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(nil, "missing_filename", "A filename is required", http.StatusBadRequest))
			return
		}

		videoID := uuid.New()
		key := objectkey.Source(ownerID, videoID, req.Filename)

		uploadURL, err := cfg.Storage.PresignedPutURL(r.Context(), key, req.ContentType, cfg.UploadURLTTL)
		if err != nil {
			metrics.RecordUploadURLIssued("error")
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrStorageUnavailable))
			return
		}

		_, err = cfg.Queries.CreateVideo(r.Context(), db.CreateVideoParams{
			ID:               pgtype.UUID{Bytes: videoID, Valid: true},
			OwnerID:          pgtype.UUID{Bytes: ownerID, Valid: true},
			OriginalFilename: req.Filename,
			SourceObjectKey:  key,
			Status:           db.VideoStatusUploading,
		})
		if err != nil {
			// The presigned URL is never returned, so nothing can be
			// uploaded against the missing record.
			metrics.RecordUploadURLIssued("error")
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrPersistenceFailed))
			return
		}

		metrics.RecordUploadURLIssued("success")
		logger.FromContext(r.Context()).Info("upload URL issued",
			"video_id", videoID.String(),
			"object_key", key,
		)

		writeJSON(w, http.StatusCreated, requestUploadResponse{
			VideoID:   videoID.String(),
			ObjectKey: key,
			UploadURL: uploadURL,
			ExpiresIn: int64(cfg.UploadURLTTL.Seconds()),
		})
	}
}

// uploadCompleteHandler confirms a client upload: the record advances to
// UPLOADED and the extraction job is enqueued. The status write commits
// before the enqueue, so a broker outage leaves a consistent UPLOADED
// record the client can re-confirm.
func uploadCompleteHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := GetOwnerID(r.Context())
		if !ok {
			apperror.WriteJSON(w, r, apperror.ErrUnauthorized)
			return
		}

		videoID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "invalid_id", "Video ID must be a UUID", http.StatusBadRequest))
			return
		}

		video, err := cfg.Queries.GetVideoForOwner(r.Context(), db.GetVideoForOwnerParams{
			ID:      pgtype.UUID{Bytes: videoID, Valid: true},
			OwnerID: pgtype.UUID{Bytes: ownerID, Valid: true},
		})
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				apperror.WriteJSON(w, r, apperror.ErrNotFound)
				return
			}
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrPersistenceFailed))
			return
		}

		err = cfg.Queries.AdvanceVideoStatus(r.Context(), db.AdvanceVideoStatusParams{
			ID:   video.ID,
			From: db.VideoStatusUploading,
			To:   db.VideoStatusUploaded,
		})
		if err != nil {
			// A record already in UPLOADED means a previous confirm
			// committed but its enqueue may have failed. Re-confirming
			// re-drives the job; duplicate delivery is tolerated
			// downstream. Anything past UPLOADED is a real conflict.
			if errors.Is(err, db.ErrStaleTransition) && video.Status != db.VideoStatusUploaded {
				metrics.RecordUploadConfirmation("conflict")
				apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "conflict", "Video is not awaiting upload confirmation", http.StatusConflict))
				return
			}
			if !errors.Is(err, db.ErrStaleTransition) {
				metrics.RecordUploadConfirmation("error")
				apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrPersistenceFailed))
				return
			}
		}

		payload := worker.NewExtractAudioPayload(videoID, video.SourceObjectKey)
		if _, err := cfg.Broker.Enqueue(worker.JobTypeExtractAudio, payload); err != nil {
			metrics.RecordUploadConfirmation("queue_error")
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrQueueUnavailable))
			return
		}

		metrics.RecordUploadConfirmation("success")
		metrics.RecordJobEnqueued(worker.JobTypeExtractAudio)
		logger.FromContext(r.Context()).Info("upload confirmed",
			"video_id", videoID.String(),
		)

		writeJSON(w, http.StatusAccepted, map[string]string{
			"video_id": videoID.String(),
			"status":   string(db.VideoStatusUploaded),
		})
	}
}

func getVideoHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := GetOwnerID(r.Context())
		if !ok {
			apperror.WriteJSON(w, r, apperror.ErrUnauthorized)
			return
		}

		videoID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "invalid_id", "Video ID must be a UUID", http.StatusBadRequest))
			return
		}

		video, err := cfg.Queries.GetVideoForOwner(r.Context(), db.GetVideoForOwnerParams{
			ID:      pgtype.UUID{Bytes: videoID, Valid: true},
			OwnerID: pgtype.UUID{Bytes: ownerID, Valid: true},
		})
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				apperror.WriteJSON(w, r, apperror.ErrNotFound)
				return
			}
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrPersistenceFailed))
			return
		}

		writeJSON(w, http.StatusOK, newVideoResponse(video))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
