// Package engagement produces and aggregates classroom attention and
// understanding metrics. During a live recording samples come from a Source:
// either the bounded random-walk Simulator or the MQTT feed when real
// sensors are wired in. After the fact, the pure aggregation functions
// compute averages and a coarse status label from persisted samples.
package engagement

import (
	"context"
	"time"
)

// Kind identifies which metric a sample belongs to.
type Kind string

const (
	KindAttention     Kind = "attention"
	KindUnderstanding Kind = "understanding"
)

// Sample is one scalar metric reading in [0, 100].
type Sample struct {
	Kind  Kind      `json:"kind"`
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
}

// Source emits engagement samples during a live recording. The consumer
// contract is identical for the simulator and a real signal feed, so the
// two are interchangeable.
type Source interface {
	// Start begins emitting samples until the context is cancelled or
	// Stop is called.
	Start(ctx context.Context)

	// Samples returns the channel samples are delivered on. Closed after
	// the source stops.
	Samples() <-chan Sample

	// Stop halts emission and closes the sample channel. Safe to call
	// more than once.
	Stop()
}
