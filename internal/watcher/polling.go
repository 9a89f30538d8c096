package watcher

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/katanaquant/ragengine/internal/ignore"
)

// PollingWatcher watches a directory tree by periodically re-scanning
// it and diffing against the previous scan. Used as the fallback when
// fsnotify cannot be started (e.g. inotify watch limits exhausted) and
// exercised directly in environments where fsnotify is unavailable.
type PollingWatcher struct {
	interval time.Duration
	matcher  *ignore.Matcher
	debounce *Debouncer

	mu       sync.Mutex
	state    map[string]snapshot
	rootPath string
	stopCh   chan struct{}
	stopped  bool
	errs     chan error
}

type snapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher returns a watcher that scans every interval.
func NewPollingWatcher(interval time.Duration, matcher *ignore.Matcher, debounce *Debouncer) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		matcher:  matcher,
		debounce: debounce,
		state:    make(map[string]snapshot),
		stopCh:   make(chan struct{}),
		errs:     make(chan error, 10),
	}
}

// Start scans path once to establish a baseline, then polls interval
// apart until Stop is called. It runs in the calling goroutine; the
// caller is expected to invoke it via `go`.
func (p *PollingWatcher) Start(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	p.rootPath = absPath

	if err := p.scan(); err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.detectChanges(); err != nil {
				select {
				case p.errs <- err:
				default:
				}
			}
		}
	}
}

// Stop halts the polling loop. Idempotent.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	return nil
}

// Events returns the debounced batch stream.
func (p *PollingWatcher) Events() <-chan []FileEvent { return p.debounce.Output() }

// Errors returns the scan-error channel.
func (p *PollingWatcher) Errors() <-chan error { return p.errs }

func (p *PollingWatcher) scan() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.walk(func(rel string, snap snapshot) {
		p.state[rel] = snap
	})
}

func (p *PollingWatcher) detectChanges() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[string]snapshot)
	err := p.walk(func(rel string, snap snapshot) {
		current[rel] = snap
		prev, existed := p.state[rel]
		switch {
		case !existed:
			p.debounce.Add(FileEvent{Path: filepath.Join(p.rootPath, rel), Operation: OpCreate, IsDir: snap.isDir, Timestamp: time.Now()})
		case prev.modTime != snap.modTime || prev.size != snap.size:
			p.debounce.Add(FileEvent{Path: filepath.Join(p.rootPath, rel), Operation: OpModify, IsDir: snap.isDir, Timestamp: time.Now()})
		}
	})
	if err != nil {
		return fmt.Errorf("walk directory: %w", err)
	}

	for rel, snap := range p.state {
		if _, ok := current[rel]; !ok {
			p.debounce.Add(FileEvent{Path: filepath.Join(p.rootPath, rel), Operation: OpDelete, IsDir: snap.isDir, Timestamp: time.Now()})
		}
	}

	p.state = current
	return nil
}

func (p *PollingWatcher) walk(visit func(rel string, snap snapshot)) error {
	return filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(p.rootPath, path)
		if err != nil || rel == "." {
			return nil
		}
		if p.matcher.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		visit(rel, snapshot{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()})
		return nil
	})
}
