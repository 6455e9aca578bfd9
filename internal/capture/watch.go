package capture

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// settleDelay coalesces rapid Create+Write events on the same file and
// gives the writer time to finish before the file is ingested.
const settleDelay = 500 * time.Millisecond

// WatchSource feeds audio from files dropped into a directory, for setups
// where an external recorder writes chunk files instead of exposing a
// device. Each completed file becomes one burst of bytes on Read.
type WatchSource struct {
	dir string
	log zerolog.Logger

	watcher *fsnotify.Watcher
	data    chan []byte

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	pending []byte
	closed  chan struct{}
	once    sync.Once
}

func NewWatchSource(dir string, log zerolog.Logger) *WatchSource {
	return &WatchSource{
		dir:            dir,
		log:            log.With().Str("component", "watch-source").Logger(),
		data:           make(chan []byte, 8),
		debounceTimers: make(map[string]*time.Timer),
		closed:         make(chan struct{}),
	}
}

// Open initializes the fsnotify watcher on the drop directory. A missing
// directory maps to ErrDeviceUnavailable.
func (w *WatchSource) Open() error {
	if _, err := os.Stat(w.dir); err != nil {
		if os.IsNotExist(err) {
			return ErrDeviceUnavailable
		}
		if os.IsPermission(err) {
			return ErrPermissionDenied
		}
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	go w.watchLoop()
	w.log.Info().Str("dir", w.dir).Msg("watching for audio files")
	return nil
}

func (w *WatchSource) watchLoop() {
	for {
		select {
		case <-w.closed:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.debounce(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// debounce schedules ingestion of path after writes settle, resetting the
// timer on each new event for the same file.
func (w *WatchSource) debounce(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(settleDelay)
		return
	}
	w.debounceTimers[path] = time.AfterFunc(settleDelay, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()
		w.ingest(path)
	})
}

func (w *WatchSource) ingest(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Warn().Err(err).Str("file", filepath.Base(path)).Msg("failed to read dropped file")
		return
	}
	if len(data) == 0 {
		return
	}
	select {
	case w.data <- data:
		w.log.Debug().Str("file", filepath.Base(path)).Int("bytes", len(data)).Msg("file ingested")
	case <-w.closed:
	}
}

// Read hands out bytes from ingested files. Blocks until data arrives or
// the source is closed.
func (w *WatchSource) Read(p []byte) (int, error) {
	for len(w.pending) == 0 {
		select {
		case data, ok := <-w.data:
			if !ok {
				return 0, io.EOF
			}
			w.pending = data
		case <-w.closed:
			return 0, io.EOF
		}
	}
	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

// Close stops the watcher. Safe to call multiple times.
func (w *WatchSource) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closed)
		if w.watcher != nil {
			err = w.watcher.Close()
		}
	})
	return err
}
