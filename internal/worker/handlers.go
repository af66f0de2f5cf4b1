package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Saranwich/longsorn/internal/db"
	"github.com/Saranwich/longsorn/internal/logger"
	"github.com/Saranwich/longsorn/internal/media"
	"github.com/Saranwich/longsorn/internal/metrics"
	"github.com/Saranwich/longsorn/internal/objectkey"
	"github.com/Saranwich/longsorn/internal/storage"
)

// VideoStore is the slice of the database layer the worker needs.
// *db.Store satisfies it.
type VideoStore interface {
	GetVideo(ctx context.Context, id pgtype.UUID) (db.Video, error)
	SetVideoStatus(ctx context.Context, id pgtype.UUID, status db.VideoStatus) error
	CompleteExtraction(ctx context.Context, videoID pgtype.UUID, audioKey, jobType string, payload any) error
}

// AudioExtractor is the slice of internal/media the worker needs.
type AudioExtractor interface {
	Probe(ctx context.Context, inputPath string) (*media.ProbeResult, error)
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error
}

type Dependencies struct {
	Store      VideoStore
	Storage    storage.Storage
	Extractor  AudioExtractor
	ScratchDir string
}

// ExtractAudioHandler downloads the source video, copies out its audio
// track and commits the result. Deterministic failures (corrupt file, no
// audio stream, missing source object) are permanent; infrastructure
// failures are returned plain so the queue retries them.
func ExtractAudioHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		log := logger.FromContext(ctx).With("job_id", j.ID, "job_type", JobTypeExtractAudio)
		log.Info("job started")
		start := time.Now()

		var payload ExtractAudioPayload
		if err := j.UnmarshalPayload(&payload); err != nil {
			log.Error("invalid payload", "error", err)
			return middleware.Permanent(fmt.Errorf("invalid payload: %w", err))
		}

		ctx = logger.WithVideoID(logger.WithLogger(ctx, log), payload.VideoID.String())
		log = logger.FromContext(ctx)

		videoID := pgtype.UUID{
			Bytes: payload.VideoID,
			Valid: true,
		}

		// retryable hands a transient error back to the queue. On the
		// last attempt the broker dead-letters the job, so the record
		// must be marked FAILED here or it stays PROCESSING forever.
		retryable := func(err error) error {
			if !j.CanRetry() {
				log.Error("retries exhausted, marking video failed", "error", err)
				markVideoFailed(deps.Store, videoID, log)
				metrics.RecordExtraction("failed", time.Since(start).Seconds())
			}
			return err
		}

		video, err := deps.Store.GetVideo(ctx, videoID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				log.Error("video record missing, dropping job")
				return middleware.Permanent(fmt.Errorf("video not found: %w", err))
			}
			log.Error("failed to retrieve video", "error", err)
			return retryable(fmt.Errorf("failed to retrieve video: %w", err))
		}

		sourceKey := payload.SourceObjectKey
		if sourceKey == "" {
			sourceKey = video.SourceObjectKey
		}

		if err := deps.Store.SetVideoStatus(ctx, videoID, db.VideoStatusProcessing); err != nil {
			log.Error("failed to mark video processing", "error", err)
			return retryable(fmt.Errorf("failed to mark video processing: %w", err))
		}

		scratch := filepath.Join(deps.ScratchDir, payload.VideoID.String())
		if err := os.MkdirAll(scratch, 0o755); err != nil {
			log.Error("failed to create scratch dir", "path", scratch, "error", err)
			return retryable(fmt.Errorf("failed to create scratch dir: %w", err))
		}
		defer func() {
			if err := os.RemoveAll(scratch); err != nil {
				log.Warn("failed to remove scratch dir", "path", scratch, "error", err)
			}
		}()

		inputPath := filepath.Join(scratch, path.Base(sourceKey))
		log.Debug("downloading source video", "source_object_key", sourceKey)
		downloadStart := time.Now()
		if err := downloadToFile(ctx, deps.Storage, sourceKey, inputPath); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				log.Error("source object missing", "source_object_key", sourceKey)
				markVideoFailed(deps.Store, videoID, log)
				metrics.RecordExtraction("failed", time.Since(start).Seconds())
				return middleware.Permanent(fmt.Errorf("source object missing: %w", err))
			}
			log.Error("failed to download source video", "source_object_key", sourceKey, "error", err)
			return retryable(fmt.Errorf("failed to download source video: %w", err))
		}
		log.Debug("source video downloaded", "duration_ms", time.Since(downloadStart).Milliseconds())

		probed, err := deps.Extractor.Probe(ctx, inputPath)
		if err != nil {
			log.Error("source video unreadable", "error", err)
			markVideoFailed(deps.Store, videoID, log)
			metrics.RecordExtraction("failed", time.Since(start).Seconds())
			return middleware.Permanent(fmt.Errorf("source video unreadable: %w", err))
		}
		if !probed.HasAudio {
			log.Error("source video has no audio stream", "format", probed.FormatName)
			markVideoFailed(deps.Store, videoID, log)
			metrics.RecordExtraction("failed", time.Since(start).Seconds())
			return middleware.Permanent(media.ErrNoAudioStream)
		}

		outputPath := filepath.Join(scratch, "audio.m4a")
		log.Debug("extracting audio", "audio_codec", probed.AudioCodec)
		extractStart := time.Now()
		if err := deps.Extractor.ExtractAudio(ctx, inputPath, outputPath); err != nil {
			log.Error("failed to extract audio", "error", err)
			markVideoFailed(deps.Store, videoID, log)
			metrics.RecordExtraction("failed", time.Since(start).Seconds())
			return middleware.Permanent(fmt.Errorf("failed to extract audio: %w", err))
		}
		log.Debug("audio extracted", "duration_ms", time.Since(extractStart).Milliseconds())

		audioKey := objectkey.Audio(payload.VideoID)
		if err := uploadFromFile(ctx, deps.Storage, audioKey, outputPath, "audio/mp4"); err != nil {
			log.Error("failed to upload audio", "audio_object_key", audioKey, "error", err)
			return retryable(fmt.Errorf("failed to upload audio: %w", err))
		}

		analysis := NewAnalysisPayload(payload.VideoID, audioKey)
		if err := deps.Store.CompleteExtraction(ctx, videoID, audioKey, JobTypeAnalysis, analysis); err != nil {
			log.Error("failed to record extraction result", "error", err)
			return retryable(fmt.Errorf("failed to record extraction result: %w", err))
		}

		metrics.RecordExtraction("success", time.Since(start).Seconds())
		log.Info("job completed",
			"duration_ms", time.Since(start).Milliseconds(),
			"audio_object_key", audioKey)
		return nil
	}
}

// markVideoFailed is a terminal write, retried on its own clock so a job
// timeout cannot strand the record in PROCESSING.
func markVideoFailed(store VideoStore, videoID pgtype.UUID, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(func() error {
		return store.SetVideoStatus(ctx, videoID, db.VideoStatusFailed)
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		log.Error("could not mark video failed, record left stale", "error", err)
	}
}

func downloadToFile(ctx context.Context, store storage.Storage, key, dest string) error {
	reader, err := store.Download(ctx, key)
	if err != nil {
		return err
	}
	defer closeSafely(reader, "source object reader")

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer closeSafely(f, "scratch file")

	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func uploadFromFile(ctx context.Context, store storage.Storage, key, src, contentType string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer closeSafely(f, "audio file")

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	return store.Upload(ctx, key, f, contentType, info.Size())
}

func closeSafely(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		logger.Default().Warn("close failed", "what", what, "error", err)
	}
}
