package recording

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/attune-labs/attune-engine/internal/capture"
	"github.com/attune-labs/attune-engine/internal/database"
	"github.com/attune-labs/attune-engine/internal/engagement"
	"github.com/attune-labs/attune-engine/internal/metrics"
	"github.com/attune-labs/attune-engine/internal/storage"
	"github.com/attune-labs/attune-engine/internal/transcribe"
)

// ChunkSource produces audio chunks for one recording run. Implemented by
// capture.Capturer.
type ChunkSource interface {
	Start(ctx context.Context) error
	Chunks() <-chan capture.Chunk
	ReadErr() <-chan error
	Flush(ctx context.Context)
	Close()
}

// Transcriber turns chunks into transcript lines. Implemented by
// transcribe.WorkerPool.
type Transcriber interface {
	Start()
	Enqueue(capture.Chunk) bool
	Results() <-chan transcribe.Result
	Stats() transcribe.QueueStats
	Stop()
}

// SessionStore persists a finished session. Implemented by database.DB.
type SessionStore interface {
	SaveSession(ctx context.Context, in database.SaveSessionInput) (*database.SessionAPI, error)
}

// Publisher distributes live events. Implemented by live.EventBus.
type Publisher interface {
	Publish(eventType, subType string, payload any)
}

// InsightRunner generates post-session insights. Implemented by
// insight.Generator.
type InsightRunner interface {
	Generate(ctx context.Context, sessionID string) bool
}

// Options wires a Controller. The capture, transcription, and engagement
// factories are invoked once per recording run so every session starts with
// fresh channels.
type Options struct {
	NewChunkSource func() (ChunkSource, error)
	NewTranscriber func() Transcriber
	NewEngagement  func() engagement.Source

	Store    SessionStore
	Audio    storage.AudioStore
	Insights InsightRunner
	Bus      Publisher

	Now func() time.Time
	Log zerolog.Logger
}

// run owns one recording session's pipeline. Each run carries its own
// cancel and WaitGroups so tearing down a finished run can never cancel
// or wait on a successor started in the meantime.
type run struct {
	src    ChunkSource
	pool   Transcriber
	eng    engagement.Source
	cancel context.CancelFunc

	chunkWG  sync.WaitGroup
	resultWG sync.WaitGroup
	sampleWG sync.WaitGroup
}

// Controller runs the recording state machine. All transitions go through
// the mutex; pumping goroutines only append to the buffers.
type Controller struct {
	opts Options
	now  func() time.Time
	log  zerolog.Logger

	mu        sync.Mutex
	state     State
	title     string
	startedAt time.Time

	transcript    []database.Segment
	attention     []database.Sample
	understanding []database.Sample
	tags          []database.Tag
	audio         []byte

	attSum, undSum     float64
	latestAtt, lastUnd float64

	run *run
}

// NewController creates an idle controller.
func NewController(opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		opts:  opts,
		now:   opts.Now,
		log:   opts.Log.With().Str("component", "recording").Logger(),
		state: StateIdle,
	}
}

// Start begins a new recording session. The previous session's buffers are
// discarded; a blank title or an active session is rejected.
func (c *Controller) Start(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}

	src, err := c.opts.NewChunkSource()
	if err != nil {
		c.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if err := src.Start(runCtx); err != nil {
		cancel()
		src.Close()
		c.mu.Unlock()
		return err
	}

	c.state = StateRecording
	c.title = title
	c.startedAt = c.now()
	c.transcript = nil
	c.attention = nil
	c.understanding = nil
	c.tags = nil
	c.audio = nil
	c.attSum, c.undSum = 0, 0
	c.latestAtt, c.lastUnd = 0, 0

	r := &run{
		src:    src,
		pool:   c.opts.NewTranscriber(),
		eng:    c.opts.NewEngagement(),
		cancel: cancel,
	}
	c.run = r

	r.pool.Start()
	r.eng.Start(runCtx)

	r.chunkWG.Add(1)
	go c.pumpChunks(r)
	r.resultWG.Add(1)
	go c.pumpResults(r)
	r.sampleWG.Add(1)
	go c.pumpSamples(r)
	go c.watchCapture(runCtx, r)
	go c.tickLoop(runCtx)
	c.mu.Unlock()

	c.log.Info().Str("title", title).Msg("recording started")
	c.publish("recording", "started", map[string]any{
		"title":      title,
		"started_at": c.startedAt.UTC().Format(time.RFC3339),
	})
	return nil
}

// Stop ends the active session and persists it. Calling Stop while idle is
// a no-op; the returned session is nil.
func (c *Controller) Stop(ctx context.Context) (*database.SessionAPI, error) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return nil, nil
	}
	c.state = StateSaving
	r := c.run
	c.mu.Unlock()

	// Cut the tail chunk, then drain the pipeline. The pool's own per-job
	// timeouts bound how long the drain can take.
	r.src.Flush(ctx)
	r.src.Close()
	r.chunkWG.Wait()
	r.pool.Stop()
	r.resultWG.Wait()
	r.eng.Stop()
	r.sampleWG.Wait()
	r.cancel()

	c.mu.Lock()
	in := database.SaveSessionInput{
		Title:         c.title,
		StartedAt:     c.startedAt,
		EndedAt:       c.now(),
		Transcript:    c.transcript,
		Attention:     c.attention,
		Understanding: c.understanding,
		Tags:          c.tags,
	}
	audio := c.audio
	startedAt := c.startedAt
	c.mu.Unlock()

	session, err := c.opts.Store.SaveSession(ctx, in)

	c.mu.Lock()
	c.state = StateIdle
	c.run = nil
	c.mu.Unlock()

	if err != nil {
		c.log.Error().Err(err).Msg("session save failed")
		return nil, err
	}
	metrics.SessionsSaved.Inc()
	c.log.Info().Str("session_id", session.ID).Int("transcript_lines", len(in.Transcript)).Msg("session saved")

	c.archiveAudio(ctx, session.ID, startedAt, audio)

	if c.opts.Insights != nil {
		go func(id string) {
			bg, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			c.opts.Insights.Generate(bg, id)
		}(session.ID)
	}

	c.publish("recording", "saved", session)
	return session, nil
}

// Tag applies a behavior label at the current moment. Only the fixed label
// set is accepted, and only while recording.
func (c *Controller) Tag(label string) error {
	if !database.ValidTag(label) {
		return ErrInvalidTag
	}

	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return ErrNotRecording
	}
	at := c.now()
	c.tags = append(c.tags, database.Tag{Label: label, At: at})
	c.mu.Unlock()

	c.publish("behavior", "tag", map[string]any{
		"tag":       label,
		"timestamp": at.UTC().Format(time.RFC3339),
	})
	return nil
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	s := Status{State: c.state}
	if c.state == StateIdle {
		return s
	}

	started := c.startedAt
	s.Title = c.title
	s.StartedAt = &started
	s.ElapsedSeconds = int(c.now().Sub(started).Seconds())
	s.Attention = c.latestAtt
	s.Understanding = c.lastUnd
	s.Transcript = len(c.transcript)
	s.Tags = len(c.tags)

	if len(c.attention) > 0 || len(c.understanding) > 0 {
		attMean := meanOf(c.attSum, len(c.attention))
		undMean := meanOf(c.undSum, len(c.understanding))
		s.Classification = engagement.Classify(attMean, undMean, engagement.ConfusionProxy(undMean))
	}
	if c.run != nil {
		stats := c.run.pool.Stats()
		s.Queue = &stats
	}
	return s
}

// Recording reports whether a session is active. Used by the metrics
// collector.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRecording
}

// PendingChunks returns the transcription backlog. Used by the metrics
// collector.
func (c *Controller) PendingChunks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return 0
	}
	return c.run.pool.Stats().Pending
}

func (c *Controller) pumpChunks(r *run) {
	defer r.chunkWG.Done()

	for chunk := range r.src.Chunks() {
		metrics.ChunksCaptured.Inc()

		c.mu.Lock()
		c.audio = append(c.audio, chunk.Data...)
		c.mu.Unlock()

		if !r.pool.Enqueue(chunk) {
			c.log.Debug().Int("seq", chunk.Seq).Msg("chunk not transcribed")
		}
	}
}

func (c *Controller) pumpResults(r *run) {
	defer r.resultWG.Done()

	// Results arrive in completion order; each line keeps its chunk's
	// capture time, so a slow response never shifts the timeline.
	for res := range r.pool.Results() {
		c.mu.Lock()
		c.transcript = append(c.transcript, database.Segment{Text: res.Text, At: res.CapturedAt})
		c.mu.Unlock()

		c.publish("transcript", "line", map[string]any{
			"text":      res.Text,
			"timestamp": res.CapturedAt.UTC().Format(time.RFC3339),
		})
	}
}

func (c *Controller) pumpSamples(r *run) {
	defer r.sampleWG.Done()

	for sample := range r.eng.Samples() {
		metrics.EngagementSamples.WithLabelValues(string(sample.Kind)).Inc()

		c.mu.Lock()
		switch sample.Kind {
		case engagement.KindAttention:
			c.attention = append(c.attention, database.Sample{Value: sample.Value, At: sample.At})
			c.attSum += sample.Value
			c.latestAtt = sample.Value
		case engagement.KindUnderstanding:
			c.understanding = append(c.understanding, database.Sample{Value: sample.Value, At: sample.At})
			c.undSum += sample.Value
			c.lastUnd = sample.Value
		}
		c.mu.Unlock()

		c.publish("engagement", string(sample.Kind), map[string]any{
			"value":     sample.Value,
			"timestamp": sample.At.UTC().Format(time.RFC3339),
		})
	}
}

// watchCapture aborts the session on a hard capture failure. The buffers
// are discarded; the session is not saved.
func (c *Controller) watchCapture(ctx context.Context, r *run) {
	select {
	case <-ctx.Done():
		return
	case err, ok := <-r.src.ReadErr():
		if !ok {
			return
		}
		c.abort(r, err)
	}
}

func (c *Controller) abort(r *run, cause error) {
	c.mu.Lock()
	if c.state != StateRecording || c.run != r {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.run = nil
	r.cancel()
	c.mu.Unlock()

	c.log.Error().Err(cause).Msg("capture failed, recording aborted")

	r.src.Close()
	r.chunkWG.Wait()
	r.pool.Stop()
	r.resultWG.Wait()
	r.eng.Stop()
	r.sampleWG.Wait()

	c.publish("recording", "stopped", map[string]any{
		"reason": "capture_failure",
		"error":  cause.Error(),
	})
}

// tickLoop publishes a status snapshot every second while recording, the
// live dashboard's elapsed-time heartbeat.
func (c *Controller) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.state != StateRecording {
				c.mu.Unlock()
				return
			}
			s := c.statusLocked()
			c.mu.Unlock()
			c.publish("recording", "status", s)
		}
	}
}

func (c *Controller) archiveAudio(ctx context.Context, sessionID string, startedAt time.Time, audio []byte) {
	if c.opts.Audio == nil || len(audio) == 0 {
		return
	}
	key := storage.SessionKey(sessionID, startedAt)
	if err := c.opts.Audio.Save(ctx, key, audio, "audio/webm"); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("audio archive failed")
		return
	}
	c.log.Debug().Str("key", key).Int("bytes", len(audio)).Msg("audio archived")
}

func (c *Controller) publish(eventType, subType string, payload any) {
	if c.opts.Bus != nil {
		c.opts.Bus.Publish(eventType, subType, payload)
	}
}

func meanOf(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
