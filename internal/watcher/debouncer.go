package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Debouncer coalesces rapid-fire events on the same path into a single
// logical change and releases them as batches once the path has been
// quiet for window. A save that touches a file twice (truncate then
// write) collapses to one OpModify; a file created and deleted before
// the window elapses never reaches the output at all.
type Debouncer struct {
	window   time.Duration
	maxBatch int
	out      chan []FileEvent

	mu      sync.Mutex
	pending map[string]FileEvent
	timer   *time.Timer

	dropped atomic.Uint64
}

// NewDebouncer returns a Debouncer that flushes coalesced batches onto
// a channel of the given buffer size. maxBatch caps how many events go
// out in one batch; a flush spanning more paths than that is split
// into consecutive batches. maxBatch <= 0 means unbounded.
func NewDebouncer(window time.Duration, bufferSize int, maxBatch int) *Debouncer {
	return &Debouncer{
		window:   window,
		maxBatch: maxBatch,
		out:      make(chan []FileEvent, bufferSize),
		pending:  make(map[string]FileEvent),
	}
}

// Output returns the channel of coalesced batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.out
}

// DroppedBatches reports how many batches were discarded because the
// output channel was full.
func (d *Debouncer) DroppedBatches() uint64 {
	return d.dropped.Load()
}

// Add folds ev into the pending state for its path and (re)arms the
// flush timer.
func (d *Debouncer) Add(ev FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[ev.Path]; ok {
		ev = coalesce(prev, ev)
		if ev.Operation == -1 {
			delete(d.pending, ev.Path)
		} else {
			d.pending[ev.Path] = ev
		}
	} else {
		d.pending[ev.Path] = ev
	}

	d.scheduleFlush()
}

func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	batch := make([]FileEvent, 0, len(d.pending))
	for _, ev := range d.pending {
		batch = append(batch, ev)
	}
	d.pending = make(map[string]FileEvent)
	d.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	for _, part := range splitBatch(batch, d.maxBatch) {
		select {
		case d.out <- part:
		default:
			d.dropped.Add(1)
			slog.Warn("watcher debouncer output full, dropping batch", slog.Int("size", len(part)))
		}
	}
}

// splitBatch divides batch into chunks of at most maxSize events.
// maxSize <= 0 returns batch as a single chunk.
func splitBatch(batch []FileEvent, maxSize int) [][]FileEvent {
	if maxSize <= 0 || len(batch) <= maxSize {
		return [][]FileEvent{batch}
	}
	var parts [][]FileEvent
	for i := 0; i < len(batch); i += maxSize {
		end := i + maxSize
		if end > len(batch) {
			end = len(batch)
		}
		parts = append(parts, batch[i:end])
	}
	return parts
}

// Close stops the flush timer and closes the output channel. No more
// events may be added afterward.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	close(d.out)
}

// coalesce folds a new event onto a pending one for the same path per
// the rules: create+modify collapses to create; create+delete cancels
// out entirely (signaled by Operation -1); modify+delete collapses to
// delete; delete+create collapses to modify (the path reappeared).
func coalesce(prev, next FileEvent) FileEvent {
	switch {
	case prev.Operation == OpCreate && next.Operation == OpModify:
		return FileEvent{Path: next.Path, Operation: OpCreate, IsDir: next.IsDir, Timestamp: next.Timestamp}
	case prev.Operation == OpCreate && next.Operation == OpDelete:
		return FileEvent{Path: next.Path, Operation: -1}
	case prev.Operation == OpModify && next.Operation == OpDelete:
		return FileEvent{Path: next.Path, Operation: OpDelete, IsDir: next.IsDir, Timestamp: next.Timestamp}
	case prev.Operation == OpDelete && next.Operation == OpCreate:
		return FileEvent{Path: next.Path, Operation: OpModify, IsDir: next.IsDir, Timestamp: next.Timestamp}
	default:
		return next
	}
}
