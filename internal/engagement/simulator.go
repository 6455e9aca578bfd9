package engagement

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Random-walk parameters. Attention starts high and swings harder than
// understanding; both are clamped to their floor and 100.
const (
	attentionStart    = 85.0
	attentionFloor    = 20.0
	attentionStep     = 8.0
	attentionInterval = 4 * time.Second

	understandingStart    = 90.0
	understandingFloor    = 10.0
	understandingStep     = 5.0
	understandingInterval = 5 * time.Second

	simulatorCeiling = 100.0
)

// Simulator is a placeholder engagement source: each tick the metric moves
// by a fixed step up or down, clamped to its bounds. It stands in for a real
// sensor feed and shares the Source contract with one.
type Simulator struct {
	rng *rand.Rand
	now func() time.Time

	mu            sync.Mutex
	attention     float64
	understanding float64

	out      chan Sample
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSimulator creates a simulator seeded from seed so tests are
// reproducible. Pass time.Now-based seeds in production wiring.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		rng:           rand.New(rand.NewSource(seed)),
		now:           time.Now,
		attention:     attentionStart,
		understanding: understandingStart,
		out:           make(chan Sample, 16),
		stopCh:        make(chan struct{}),
	}
}

// Samples returns the sample delivery channel.
func (s *Simulator) Samples() <-chan Sample { return s.out }

// Start launches the tick loops. Emission stops when ctx is cancelled or
// Stop is called.
func (s *Simulator) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.run(ctx, KindAttention, attentionInterval)
	go s.run(ctx, KindUnderstanding, understandingInterval)

	go func() {
		s.wg.Wait()
		close(s.out)
	}()
}

// Stop halts emission. Safe to call more than once.
func (s *Simulator) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Simulator) run(ctx context.Context, kind Kind, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			sample := Sample{Kind: kind, Value: s.step(kind), At: s.now()}
			select {
			case s.out <- sample:
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			}
		}
	}
}

// step advances the random walk for one metric and returns the new value.
func (s *Simulator) step(kind Kind) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value, stepSize, floor float64
	switch kind {
	case KindAttention:
		value, stepSize, floor = s.attention, attentionStep, attentionFloor
	default:
		value, stepSize, floor = s.understanding, understandingStep, understandingFloor
	}

	if s.rng.Float64() < 0.5 {
		value -= stepSize
	} else {
		value += stepSize
	}
	value = clamp(value, floor, simulatorCeiling)

	switch kind {
	case KindAttention:
		s.attention = value
	default:
		s.understanding = value
	}
	return value
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
