package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/strollcast/director/internal/config"
)

// MetaDuration is the object-metadata key holding the audio duration in
// seconds, as a decimal string.
const MetaDuration = "duration"

// ErrNotFound is returned when an object does not exist in the store.
var ErrNotFound = errors.New("object not found")

// ObjectStore abstracts the audio object storage backends.
// Keys are forward-slash paths, e.g. "segments/<fingerprint>.mp3".
type ObjectStore interface {
	// Save stores an object together with its user metadata.
	Save(ctx context.Context, key string, data []byte, contentType string, meta map[string]string) error

	// Open returns a reader for the object and its user metadata.
	// Returns ErrNotFound if the object does not exist.
	Open(ctx context.Context, key string) (io.ReadCloser, map[string]string, error)

	// Head returns the object's user metadata without fetching the body.
	// Returns ErrNotFound if the object does not exist.
	Head(ctx context.Context, key string) (map[string]string, error)

	// Exists checks whether the object exists.
	Exists(ctx context.Context, key string) bool

	// GetURL returns a time-limited read URL for the object.
	GetURL(ctx context.Context, key string) (string, error)

	// PutURL returns a time-limited write URL for the object.
	PutURL(ctx context.Context, key, contentType string) (string, error)

	// Type returns "local" or "s3".
	Type() string
}

// New creates an ObjectStore for the given bucket based on config.
// With no S3 endpoint configured it falls back to a local filesystem store
// rooted under the data dir (dev mode). S3 credentials and bucket access are
// verified at startup.
func New(ctx context.Context, cfg config.S3Config, bucket string, log zerolog.Logger) (ObjectStore, error) {
	if !cfg.Enabled() {
		return NewLocalStore(cfg.LocalDir(bucket)), nil
	}

	store, err := NewS3Store(cfg, bucket, log)
	if err != nil {
		return nil, err
	}
	if err := store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")
	return store, nil
}
