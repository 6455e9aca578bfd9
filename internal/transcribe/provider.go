package transcribe

import (
	"context"

	"github.com/attune-labs/attune-engine/internal/capture"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, chunk capture.Chunk) (*Response, error)
	Name() string  // "lemonfox"
	Model() string // model identifier for logs
}

// Response is the common transcription result from any provider.
type Response struct {
	Text     string
	Language string
}
