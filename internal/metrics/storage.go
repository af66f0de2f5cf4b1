package metrics

import (
	"context"
	"io"
	"time"

	"github.com/Saranwich/longsorn/internal/storage"
)

// InstrumentedStorage wraps a Storage and records per-operation counters
// and latencies.
type InstrumentedStorage struct {
	storage.Storage
}

func NewInstrumentedStorage(s storage.Storage) *InstrumentedStorage {
	return &InstrumentedStorage{Storage: s}
}

func (s *InstrumentedStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) error {
	start := time.Now()

	err := s.Storage.Upload(ctx, key, reader, contentType, size)

	observe("upload", start, err)
	if err == nil {
		StorageBytesTotal.WithLabelValues("upload").Add(float64(size))
	}
	return err
}

func (s *InstrumentedStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()

	reader, err := s.Storage.Download(ctx, key)

	observe("download", start, err)
	return reader, err
}

func (s *InstrumentedStorage) Delete(ctx context.Context, key string) error {
	start := time.Now()

	err := s.Storage.Delete(ctx, key)

	observe("delete", start, err)
	return err
}

func (s *InstrumentedStorage) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()

	exists, err := s.Storage.Exists(ctx, key)

	observe("exists", start, err)
	return exists, err
}

func (s *InstrumentedStorage) PresignedPutURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	start := time.Now()

	url, err := s.Storage.PresignedPutURL(ctx, key, contentType, expiry)

	observe("presign_put", start, err)
	return url, err
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
