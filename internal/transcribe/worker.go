package transcribe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/attune-labs/attune-engine/internal/capture"
	"github.com/attune-labs/attune-engine/internal/metrics"
)

// Result is a completed transcription, tagged with the chunk's capture
// time so transcript lines are timestamped by when the audio was spoken,
// not by when the provider answered.
type Result struct {
	Seq        int
	Text       string
	CapturedAt time.Time
}

// QueueStats reports the current state of the transcription queue.
type QueueStats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
	Degraded  bool  `json:"degraded"`
}

// WorkerPoolOptions configures the transcription worker pool.
type WorkerPoolOptions struct {
	Provider  Provider
	Workers   int
	QueueSize int
	Timeout   time.Duration
	Log       zerolog.Logger
}

// WorkerPool fans chunks out to transcription workers. Responses may
// complete out of order; results are delivered in completion order. After
// a quota rejection the pool marks itself degraded and drops further
// chunks, letting the recording continue without transcription.
type WorkerPool struct {
	jobs     chan capture.Chunk
	results  chan Result
	provider Provider
	opts     WorkerPoolOptions
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	degraded  atomic.Bool
	stopped   atomic.Bool
}

// NewWorkerPool creates a new transcription worker pool.
func NewWorkerPool(opts WorkerPoolOptions) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobs:     make(chan capture.Chunk, opts.QueueSize),
		results:  make(chan Result, opts.QueueSize),
		provider: opts.Provider,
		opts:     opts,
		log:      opts.Log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	go func() {
		wp.wg.Wait()
		close(wp.results)
	}()
	wp.log.Info().Int("workers", wp.opts.Workers).Int("queue_size", wp.opts.QueueSize).Msg("transcription worker pool started")
}

// Stop signals workers to drain and waits for completion. In-flight
// requests finish or fail on their own; nothing new is accepted.
func (wp *WorkerPool) Stop() {
	if !wp.stopped.CompareAndSwap(false, true) {
		return
	}
	close(wp.jobs)
	wp.wg.Wait()
	wp.cancel()
	wp.log.Info().
		Int64("completed", wp.completed.Load()).
		Int64("failed", wp.failed.Load()).
		Int64("skipped", wp.skipped.Load()).
		Msg("transcription worker pool stopped")
}

// Enqueue submits a chunk for transcription. Returns false if the queue is
// full, the pool is degraded, or Stop has been called; the chunk is dropped
// either way, never retried.
func (wp *WorkerPool) Enqueue(chunk capture.Chunk) bool {
	if wp.stopped.Load() || wp.degraded.Load() {
		return false
	}
	select {
	case wp.jobs <- chunk:
		return true
	default:
		return false
	}
}

// Results returns the completed-transcription channel. Closed after Stop
// once all in-flight work has finished.
func (wp *WorkerPool) Results() <-chan Result { return wp.results }

// Stats returns current queue statistics.
func (wp *WorkerPool) Stats() QueueStats {
	return QueueStats{
		Pending:   len(wp.jobs),
		Completed: wp.completed.Load(),
		Failed:    wp.failed.Load(),
		Skipped:   wp.skipped.Load(),
		Degraded:  wp.degraded.Load(),
	}
}

// Degraded reports whether the pool has stopped transcribing after a
// quota rejection.
func (wp *WorkerPool) Degraded() bool { return wp.degraded.Load() }

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int { return wp.opts.Workers }

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()

	for chunk := range wp.jobs {
		wp.processChunk(log, chunk)
	}
}

func (wp *WorkerPool) processChunk(log zerolog.Logger, chunk capture.Chunk) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(wp.ctx, wp.opts.Timeout+10*time.Second)
	defer cancel()

	resp, err := wp.provider.Transcribe(ctx, chunk)
	metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, ErrEmptyResult):
		wp.skipped.Add(1)
		log.Debug().Int("seq", chunk.Seq).Msg("no speech recognized, skipping")
		return
	case IsQuota(err):
		wp.failed.Add(1)
		metrics.TranscriptionsFailed.Inc()
		if wp.degraded.CompareAndSwap(false, true) {
			log.Warn().Err(err).Msg("transcription quota exceeded, continuing without transcription")
		}
		return
	case err != nil:
		wp.failed.Add(1)
		metrics.TranscriptionsFailed.Inc()
		log.Warn().Err(err).Int("seq", chunk.Seq).Msg("transcription failed")
		return
	}

	wp.completed.Add(1)
	metrics.TranscriptionsCompleted.Inc()

	result := Result{Seq: chunk.Seq, Text: resp.Text, CapturedAt: chunk.CapturedAt}
	select {
	case wp.results <- result:
	case <-wp.ctx.Done():
	}

	log.Debug().
		Int("seq", chunk.Seq).
		Int("chars", len(resp.Text)).
		Dur("duration_ms", time.Since(start)).
		Msg("transcription complete")
}
