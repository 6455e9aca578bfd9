// Package capture turns a live audio input into a sequence of bounded
// chunks suitable for transcription. A Source supplies raw audio bytes; the
// Capturer cuts them into one chunk per interval, plus a tail chunk on
// Flush when the recording stops.
package capture

import (
	"errors"
	"time"
)

// Microphone acquisition failures, surfaced distinctly so the recording
// controller can report them.
var (
	ErrPermissionDenied  = errors.New("capture: audio device permission denied")
	ErrDeviceUnavailable = errors.New("capture: no audio input device")
)

// Chunk is one bounded slice of captured audio, submitted as a single
// transcription unit. CapturedAt is the start of the chunk's window; the
// transcript line produced from it is timestamped with CapturedAt, not with
// the transcription response time.
type Chunk struct {
	Seq        int
	Data       []byte
	CapturedAt time.Time
	Duration   time.Duration
}

// Source supplies raw audio bytes. Open maps acquisition failures onto
// ErrPermissionDenied / ErrDeviceUnavailable; Read behaves like io.Reader
// and returns an error once the source is closed.
type Source interface {
	Open() error
	Read(p []byte) (int, error)
	Close() error
}

// Ticker abstracts time.Ticker so tests can drive the chunker with a fake
// clock instead of wall-clock delays.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewTicker returns a wall-clock Ticker.
func NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}
