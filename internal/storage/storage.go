// Package storage archives session audio. Each saved session's raw chunks
// are written once under a date-partitioned key and served back through
// the API.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/attune-labs/attune-engine/internal/config"
)

// AudioStore abstracts session audio storage backends.
type AudioStore interface {
	// Save stores audio data. key format: sessions/{YYYY-MM-DD}/{session_id}.webm
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// LocalPath returns the local filesystem path if the file exists on disk.
	// Returns "" if not available locally.
	LocalPath(key string) string

	// URL returns a presigned URL for the audio file.
	// Returns "" for local-only backends.
	URL(ctx context.Context, key string) (string, error)

	// Open returns a reader for the audio file.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an audio file exists.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// SessionKey builds the storage key for a session recorded at the given time.
func SessionKey(sessionID string, recordedAt time.Time) string {
	return fmt.Sprintf("sessions/%s/%s.webm", recordedAt.UTC().Format("2006-01-02"), sessionID)
}

// New creates an AudioStore based on config. Returns an error if S3 is
// configured but unreachable.
func New(cfg config.S3Config, audioDir string, log zerolog.Logger) (AudioStore, error) {
	if !cfg.Enabled() {
		return NewLocalStore(audioDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	return s3store, nil
}
