package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/katanaquant/ragengine/internal/ignore"
)

// HybridWatcher watches a directory tree with fsnotify, recursively
// registering every subdirectory, and falls back to PollingWatcher if
// fsnotify fails to start (most commonly an exhausted inotify watch
// limit on Linux). Either backend feeds the same Debouncer, so
// consumers see one uniform batch stream regardless of which backend
// is active.
type HybridWatcher struct {
	opts    Options
	matcher *ignore.Matcher
	logger  *slog.Logger

	debounce *Debouncer
	fsw      *fsnotify.Watcher
	polling  *PollingWatcher

	mu        sync.Mutex
	rootPath  string
	mode      string // "fsnotify" or "polling"
	stopped   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	startErrs chan error
}

// NewHybridWatcher returns a watcher using opts (zero fields filled
// from DefaultOptions) and matcher for ignore filtering. A nil matcher
// is replaced with ignore.New() (default patterns only).
func NewHybridWatcher(opts Options, matcher *ignore.Matcher, logger *slog.Logger) *HybridWatcher {
	opts = opts.WithDefaults()
	if matcher == nil {
		matcher = ignore.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridWatcher{
		opts:      opts,
		matcher:   matcher,
		logger:    logger,
		debounce:  NewDebouncer(opts.DebounceWindow, opts.EventBufferSize, opts.BatchSize),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		startErrs: make(chan error, 10),
	}
}

// Start begins watching path, choosing fsnotify when it can register
// every subdirectory and falling back to polling otherwise.
func (h *HybridWatcher) Start(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	h.rootPath = absPath

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		if err := h.registerTree(fsw, absPath); err != nil {
			h.logger.Warn("fsnotify registration failed, falling back to polling", "error", err)
			_ = fsw.Close()
		} else {
			h.fsw = fsw
			h.mode = "fsnotify"
			go h.runFsnotify()
			return nil
		}
	} else {
		h.logger.Warn("fsnotify unavailable, falling back to polling", "error", err)
	}

	h.mode = "polling"
	h.polling = NewPollingWatcher(h.opts.PollInterval, h.matcher, h.debounce)
	go func() {
		if err := h.polling.Start(absPath); err != nil {
			select {
			case h.startErrs <- err:
			default:
			}
		}
	}()
	return nil
}

func (h *HybridWatcher) registerTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && rel != "." && h.matcher.Match(rel, true) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func (h *HybridWatcher) runFsnotify() {
	defer close(h.doneCh)
	for {
		select {
		case <-h.stopCh:
			return
		case ev, ok := <-h.fsw.Events:
			if !ok {
				return
			}
			h.handleFsnotifyEvent(ev)
		case err, ok := <-h.fsw.Errors:
			if !ok {
				return
			}
			select {
			case h.startErrs <- err:
			default:
			}
		}
	}
}

func (h *HybridWatcher) handleFsnotifyEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(h.rootPath, ev.Name)
	if err != nil {
		return
	}
	info, statErr := os.Stat(ev.Name)
	isDir := statErr == nil && info.IsDir()

	if h.matcher.Match(rel, isDir) {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		if isDir {
			_ = h.fsw.Add(ev.Name)
		}
		h.debounce.Add(FileEvent{Path: ev.Name, Operation: OpCreate, IsDir: isDir, Timestamp: time.Now()})
	case ev.Op&fsnotify.Write != 0:
		h.debounce.Add(FileEvent{Path: ev.Name, Operation: OpModify, IsDir: isDir, Timestamp: time.Now()})
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		h.debounce.Add(FileEvent{Path: ev.Name, Operation: OpDelete, Timestamp: time.Now()})
	}
}

// Stop halts whichever backend is active and closes the output
// channel. Idempotent.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil
	}
	h.stopped = true

	switch h.mode {
	case "fsnotify":
		close(h.stopCh)
		err := h.fsw.Close()
		<-h.doneCh
		h.debounce.Close()
		return err
	case "polling":
		err := h.polling.Stop()
		h.debounce.Close()
		return err
	default:
		h.debounce.Close()
		return nil
	}
}

// Events returns the debounced batch stream, regardless of backend.
func (h *HybridWatcher) Events() <-chan []FileEvent { return h.debounce.Output() }

// Errors returns the backend's error channel.
func (h *HybridWatcher) Errors() <-chan error { return h.startErrs }

// Mode reports which backend is active: "fsnotify" or "polling".
func (h *HybridWatcher) Mode() string { return h.mode }

// DroppedBatches reports how many coalesced batches were discarded
// because the output channel was full.
func (h *HybridWatcher) DroppedBatches() uint64 { return h.debounce.DroppedBatches() }
