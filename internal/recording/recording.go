// Package recording owns the live-session lifecycle: one controller moves
// through idle, recording, and saving, accumulating transcript lines,
// engagement samples, and behavior tags until the session is persisted.
package recording

import (
	"errors"
	"time"

	"github.com/attune-labs/attune-engine/internal/engagement"
	"github.com/attune-labs/attune-engine/internal/transcribe"
)

var (
	// ErrEmptyTitle is returned by Start when the title is blank.
	ErrEmptyTitle = errors.New("recording: session title must not be empty")

	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("recording: a session is already in progress")

	// ErrNotRecording is returned by Tag when no session is active.
	ErrNotRecording = errors.New("recording: no session in progress")

	// ErrInvalidTag is returned by Tag for a label outside the fixed set.
	ErrInvalidTag = errors.New("recording: unknown behavior tag")
)

// State is the controller's lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateSaving    State = "saving"
)

// Status is a snapshot of the controller for the status endpoint and the
// live dashboard.
type Status struct {
	State          State                  `json:"state"`
	Title          string                 `json:"title,omitempty"`
	StartedAt      *time.Time             `json:"started_at,omitempty"`
	ElapsedSeconds int                    `json:"elapsed_seconds"`
	Attention      float64                `json:"attention"`
	Understanding  float64                `json:"understanding"`
	Classification engagement.Status      `json:"classification,omitempty"`
	Transcript     int                    `json:"transcript_lines"`
	Tags           int                    `json:"tags"`
	Queue          *transcribe.QueueStats `json:"queue,omitempty"`
}
