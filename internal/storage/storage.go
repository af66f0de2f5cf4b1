package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotFound     = errors.New("storage: object not found")
	ErrInvalidKey   = errors.New("storage: invalid key")
	ErrAccessDenied = errors.New("storage: access denied")
)

type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// PresignedPutURL returns a time-limited URL a client can PUT the
	// object to directly, without the API proxying the bytes. A non-empty
	// contentType is signed into the URL, so the client PUT must send the
	// same Content-Type header.
	PresignedPutURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	HealthCheck(ctx context.Context) error
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}
