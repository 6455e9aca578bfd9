package capture

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Chunks under this size carry no usable speech and are dropped instead of
// being submitted for transcription.
const defaultMinChunkBytes = 1000

// Options configures a Capturer.
type Options struct {
	// Interval between chunk cuts. Defaults to 5s.
	Interval time.Duration

	// MinChunkBytes drops chunks smaller than this. Defaults to 1000;
	// set negative to keep everything.
	MinChunkBytes int

	// NewTicker and Now are injectable for tests. Default to wall clock.
	NewTicker func(time.Duration) Ticker
	Now       func() time.Time

	Log zerolog.Logger
}

// Capturer reads audio from a Source and emits one Chunk per interval on
// the Chunks channel. Each chunk is emitted exactly once. After Close no
// new chunks are produced; chunks already emitted are unaffected.
type Capturer struct {
	src  Source
	opts Options

	mu        sync.Mutex
	buf       bytes.Buffer
	seq       int
	chunkFrom time.Time

	out       chan Chunk
	readErrCh chan error
	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

func New(src Source, opts Options) *Capturer {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.MinChunkBytes == 0 {
		opts.MinChunkBytes = defaultMinChunkBytes
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTicker
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Capturer{
		src:       src,
		opts:      opts,
		out:       make(chan Chunk, 8),
		readErrCh: make(chan error, 1),
		closed:    make(chan struct{}),
	}
}

// Chunks returns the chunk delivery channel. Closed after Close.
func (c *Capturer) Chunks() <-chan Chunk { return c.out }

// Start opens the source and begins reading and chunking. It returns the
// source's acquisition error unchanged, so callers can distinguish
// ErrPermissionDenied from ErrDeviceUnavailable.
func (c *Capturer) Start(ctx context.Context) error {
	if err := c.src.Open(); err != nil {
		return err
	}
	c.chunkFrom = c.opts.Now()

	c.wg.Add(2)
	go c.readLoop()
	go c.chunkLoop(ctx)

	go func() {
		c.wg.Wait()
		close(c.out)
	}()
	return nil
}

// readLoop pulls bytes from the source into the pending buffer until the
// source is closed or errors out.
func (c *Capturer) readLoop() {
	defer c.wg.Done()
	p := make([]byte, 4096)
	for {
		n, err := c.src.Read(p)
		if n > 0 {
			c.mu.Lock()
			c.buf.Write(p[:n])
			c.mu.Unlock()
		}
		if err != nil {
			select {
			case <-c.closed:
				// Expected: Close shut the source under us.
			default:
				c.opts.Log.Warn().Err(err).Msg("audio source read failed")
				select {
				case c.readErrCh <- err:
				default:
				}
			}
			return
		}
	}
}

// ReadErr returns a channel that receives the first unexpected source read
// failure. The recording controller treats this as a hard capture failure.
func (c *Capturer) ReadErr() <-chan error { return c.readErrCh }

func (c *Capturer) chunkLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := c.opts.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case <-ticker.C():
			c.emit(ctx)
		}
	}
}

// emit cuts the pending buffer into a chunk and sends it.
func (c *Capturer) emit(ctx context.Context) {
	now := c.opts.Now()

	c.mu.Lock()
	data := make([]byte, c.buf.Len())
	copy(data, c.buf.Bytes())
	c.buf.Reset()
	from := c.chunkFrom
	c.chunkFrom = now
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	if len(data) < c.opts.MinChunkBytes {
		if len(data) > 0 {
			c.opts.Log.Debug().Int("bytes", len(data)).Msg("chunk too small, skipping")
		}
		return
	}

	chunk := Chunk{
		Seq:        seq,
		Data:       data,
		CapturedAt: from,
		Duration:   now.Sub(from),
	}
	select {
	case c.out <- chunk:
		c.opts.Log.Debug().Int("seq", seq).Int("bytes", len(data)).Msg("chunk captured")
	case <-ctx.Done():
	}
}

// Flush cuts whatever has accumulated since the last chunk, regardless of
// the interval. Used at stop time to capture the tail.
func (c *Capturer) Flush(ctx context.Context) {
	select {
	case <-c.closed:
		return
	default:
	}
	c.emit(ctx)
}

// Close stops the source and the chunk loop and releases device resources.
// Safe to call multiple times; the second call is a no-op.
func (c *Capturer) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if err := c.src.Close(); err != nil {
			c.opts.Log.Warn().Err(err).Msg("audio source close failed")
		}
	})
}
