// Package syncengine implements the continuous-sync daemon (spec
// §4.H): a filesystem watcher, a bounded retry queue, a persisted
// per-path state machine, and newest-wins conflict resolution, wired
// together by Daemon.
package syncengine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/skylock-oss/skylock/config"
	"github.com/skylock-oss/skylock/internal/logger"
)

// EventKind classifies a normalized filesystem event.
type EventKind int

const (
	Create EventKind = iota
	Modify
	Delete
	Rename
	Metadata
	Other
)

func (k EventKind) String() string {
	switch k {
	case Create:
		return "create"
	case Modify:
		return "modify"
	case Delete:
		return "delete"
	case Rename:
		return "rename"
	case Metadata:
		return "metadata"
	default:
		return "other"
	}
}

// FileEvent is one normalized, debounced change to a path.
type FileEvent struct {
	Path      string
	Kind      EventKind
	Timestamp time.Time
	NewPath   string
	IsDir     bool
}

// EventBatch is a set of events drained from the pending map by one
// debounce flush.
type EventBatch struct {
	Events        []FileEvent
	AffectedPaths []string
	CreatedAt     time.Time
	FinalizedAt   time.Time
}

const (
	pollInterval       = 100 * time.Millisecond
	defaultMaxBuffered = 1000
)

// Watcher subscribes to OS-native file events under configured roots,
// filters them by glob ignore pattern, merges rapid-fire events for
// the same path, and emits debounced EventBatches.
type Watcher struct {
	cfg config.WatcherConfig
	log logger.Logger

	fsw *fsnotify.Watcher

	mu           sync.Mutex
	pending      map[string]FileEvent
	lastActivity time.Time

	batches chan EventBatch
	closeCh chan struct{}
	doneCh  chan struct{}
}

// New creates a Watcher and begins watching cfg.Roots (and any
// subdirectory discovered afterward). Call Start to begin emitting
// batches and Stop to shut down.
func New(cfg config.WatcherConfig, log logger.Logger) (*Watcher, error) {
	if log == nil {
		log = logger.Noop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("syncengine: create watcher: %w", err)
	}

	w := &Watcher{
		cfg:     cfg,
		log:     log,
		fsw:     fsw,
		pending: make(map[string]FileEvent),
		batches: make(chan EventBatch, 16),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	for _, root := range cfg.Roots {
		if err := w.addTree(root); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// addTree registers root and every subdirectory under it with
// fsnotify, which only watches a single directory level natively.
func (w *Watcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if w.ignored(path) && path != root {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Batches returns the channel EventBatches are delivered on.
func (w *Watcher) Batches() <-chan EventBatch {
	return w.batches
}

// Start launches the debounce and fsnotify-draining loops in the
// background and returns immediately; they run until Stop is called.
func (w *Watcher) Start() {
	go w.drainEvents()
	go w.debounceLoop()
}

// Stop requests shutdown, blocks until the debounce loop has made its
// final flush attempt and exited, then closes the fsnotify watcher.
// The fsnotify-draining loop is not waited for.
func (w *Watcher) Stop() {
	close(w.closeCh)
	<-w.doneCh
	_ = w.fsw.Close()
}

func (w *Watcher) drainEvents() {
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleRaw(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", logger.Err(err))
		}
	}
}

func (w *Watcher) handleRaw(ev fsnotify.Event) {
	if w.ignored(ev.Name) {
		return
	}

	kind := classify(ev.Op)
	if kind == Other {
		return
	}

	info, statErr := os.Stat(ev.Name)
	isDir := statErr == nil && info.IsDir()

	if kind == Create && isDir {
		_ = w.fsw.Add(ev.Name)
	}

	incoming := FileEvent{
		Path:      ev.Name,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		IsDir:     isDir,
	}

	w.mu.Lock()
	if existing, ok := w.pending[incoming.Path]; ok {
		w.pending[incoming.Path] = mergeEvent(existing, incoming)
	} else {
		w.pending[incoming.Path] = incoming
	}
	w.lastActivity = time.Now()
	w.mu.Unlock()
}

// mergeEvent applies the pending-map merge table: Delete always wins;
// Create followed by Modify collapses to Create; Modify followed by
// Modify keeps Modify with the newer timestamp; anything else is
// replaced by the incoming event.
func mergeEvent(existing, incoming FileEvent) FileEvent {
	if incoming.Kind == Delete {
		return incoming
	}
	if existing.Kind == Create && incoming.Kind == Modify {
		merged := incoming
		merged.Kind = Create
		return merged
	}
	if existing.Kind == Modify && incoming.Kind == Modify {
		return incoming
	}
	return incoming
}

func classify(op fsnotify.Op) EventKind {
	switch {
	case op&fsnotify.Create != 0:
		return Create
	case op&fsnotify.Remove != 0:
		return Delete
	case op&fsnotify.Rename != 0:
		return Rename
	case op&fsnotify.Write != 0:
		return Modify
	case op&fsnotify.Chmod != 0:
		return Metadata
	default:
		return Other
	}
}

func (w *Watcher) debounceLoop() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-w.closeCh:
			w.flush()
			return
		case <-ticker.C:
			w.maybeFlush()
		}
	}
}

func (w *Watcher) maybeFlush() {
	w.mu.Lock()
	count := len(w.pending)
	idle := time.Since(w.lastActivity) >= w.cfg.Debounce
	w.mu.Unlock()

	if count == 0 {
		return
	}
	if idle || count >= defaultMaxBuffered {
		w.flush()
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := EventBatch{CreatedAt: w.lastActivity, FinalizedAt: time.Now().UTC()}
	for path, ev := range w.pending {
		if ev.Kind == Metadata {
			continue
		}
		batch.Events = append(batch.Events, ev)
		batch.AffectedPaths = append(batch.AffectedPaths, path)
	}
	w.pending = make(map[string]FileEvent)
	w.mu.Unlock()

	if len(batch.Events) == 0 {
		return
	}
	select {
	case w.batches <- batch:
	case <-w.closeCh:
	}
}

func (w *Watcher) ignored(path string) bool {
	for _, pattern := range w.cfg.IgnoreGlobs {
		if matchIgnoreGlob(pattern, path) {
			return true
		}
	}
	return false
}

// matchIgnoreGlob matches path against a shell-style glob pattern.
// Patterns without a path separator match against the base name only
// (e.g. "*.tmp"); patterns containing "/" are matched component by
// component against the full path, with "**" matching zero or more
// path components.
func matchIgnoreGlob(pattern, path string) bool {
	path = filepath.ToSlash(path)
	if !strings.Contains(pattern, "/") {
		ok, _ := filepath.Match(pattern, filepath.Base(path))
		return ok
	}
	return matchGlobParts(strings.Split(pattern, "/"), strings.Split(path, "/"))
}

func matchGlobParts(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	if pattern[0] == "**" {
		if len(pattern) == 1 {
			return true
		}
		for i := 0; i <= len(path); i++ {
			if matchGlobParts(pattern[1:], path[i:]) {
				return true
			}
		}
		return false
	}
	if len(path) == 0 {
		return false
	}
	ok, _ := filepath.Match(pattern[0], path[0])
	if !ok {
		return false
	}
	return matchGlobParts(pattern[1:], path[1:])
}
