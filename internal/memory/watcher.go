package memory

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// EventKind distinguishes the three change kinds the watcher reports.
type EventKind int

const (
	EventAdd EventKind = iota
	EventChange
	EventUnlink
)

func (k EventKind) String() string {
	switch k {
	case EventAdd:
		return "add"
	case EventChange:
		return "change"
	case EventUnlink:
		return "unlink"
	default:
		return "unknown"
	}
}

// ChunkEvent is one reconciled filesystem event, keyed by absolute path.
type ChunkEvent struct {
	Kind EventKind
	Path string
}

const (
	settleWindow = 500 * time.Millisecond
	pollInterval = 100 * time.Millisecond
	stablePolls  = int(settleWindow / pollInterval)
)

type settleState struct {
	lastSize    int64
	stableCount int
	known       bool // whether this path has already been reported as added once
}

// Watcher observes a single top-level directory (no recursion), ignoring
// dotfiles and dotfolders, and emits add/change events once a file's size
// has been stable for settleWindow, polling every pollInterval; unlink
// events are emitted as soon as a file is removed or renamed away. It
// may refire on writes the orchestrator itself made —
// reconciliation on the receiving end is idempotent, so this is not a
// correctness problem (see orchestrator.go).
type Watcher struct {
	dir     string
	logger  zerolog.Logger
	onEvent func(ChunkEvent)

	fsw    *fsnotify.Watcher
	stopCh chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
	state  map[string]*settleState
}

// NewWatcher constructs a Watcher over dir. Call Start to begin emitting
// events via onEvent. Unlink events are delivered from the event loop and
// settled add/change events from per-path timer goroutines, so onEvent
// may run concurrently with itself and must do its own locking.
func NewWatcher(dir string, logger zerolog.Logger, onEvent func(ChunkEvent)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dir:     dir,
		logger:  logger,
		onEvent: onEvent,
		fsw:     fsw,
		stopCh:  make(chan struct{}),
		timers:  make(map[string]*time.Timer),
		state:   make(map[string]*settleState),
	}, nil
}

// Start begins watching the directory and runs the event loop in a
// background goroutine.
func (w *Watcher) Start() error {
	if err := w.fsw.Add(w.dir); err != nil {
		return err
	}
	go w.run()
	return nil
}

// Stop tears down the watcher and any pending settle timers.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.inScope(event.Name) {
				continue
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("watcher error")

		case <-w.stopCh:
			return
		}
	}
}

// inScope enforces top-level-only (no recursion — fsnotify already gives
// us that for free since we only Add one directory) and dotfile/dotfolder
// exclusion.
func (w *Watcher) inScope(path string) bool {
	if filepath.Dir(path) != filepath.Clean(w.dir) {
		return false
	}
	return !strings.HasPrefix(filepath.Base(path), ".")
}

func (w *Watcher) handle(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.cancelSettle(event.Name)
		w.logger.Debug().Str("path", event.Name).Msg("chunk file removed")
		w.onEvent(ChunkEvent{Kind: EventUnlink, Path: event.Name})

	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		w.scheduleSettle(event.Name)
	}
}

// scheduleSettle (re)starts the settle poll loop for path.
func (w *Watcher) scheduleSettle(path string) {
	w.mu.Lock()
	if st, ok := w.state[path]; ok {
		st.stableCount = 0
	} else {
		w.state[path] = &settleState{lastSize: -1}
	}
	w.armTimer(path)
	w.mu.Unlock()
}

// armTimer must be called with mu held.
func (w *Watcher) armTimer(path string) {
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(pollInterval, func() { w.pollSettle(path) })
}

func (w *Watcher) pollSettle(path string) {
	info, err := os.Stat(path)
	if err != nil {
		w.mu.Lock()
		_, wasKnown := w.state[path]
		delete(w.state, path)
		delete(w.timers, path)
		w.mu.Unlock()
		if wasKnown {
			w.onEvent(ChunkEvent{Kind: EventUnlink, Path: path})
		}
		return
	}

	size := info.Size()

	w.mu.Lock()
	st, ok := w.state[path]
	if !ok {
		st = &settleState{lastSize: -1}
		w.state[path] = st
	}

	if size != st.lastSize {
		st.lastSize = size
		st.stableCount = 0
		w.armTimer(path)
		w.mu.Unlock()
		return
	}

	st.stableCount++
	if st.stableCount < stablePolls {
		w.armTimer(path)
		w.mu.Unlock()
		return
	}

	delete(w.timers, path)
	wasNew := !st.known
	st.known = true
	w.mu.Unlock()

	kind := EventChange
	if wasNew {
		kind = EventAdd
	}
	w.logger.Debug().Str("path", path).Str("kind", kind.String()).Msg("chunk file settled")
	w.onEvent(ChunkEvent{Kind: kind, Path: path})
}

func (w *Watcher) cancelSettle(path string) {
	w.mu.Lock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
	delete(w.state, path)
	w.mu.Unlock()
}
