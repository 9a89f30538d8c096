package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/katanaquant/ragengine/internal/queue"
)

// defaultGetTimeout bounds how long IndexingWorker blocks on one
// queue.Get call, keeping shutdown responsive.
const defaultGetTimeout = time.Second

// IndexingWorker is the single background loop that pulls items off
// the admission queue and hands them to the PipelineCoordinator. It
// never terminates on a per-item error; only ctx cancellation ends
// the loop.
type IndexingWorker struct {
	queue       *queue.Queue
	coordinator *Coordinator
	logger      *slog.Logger
	getTimeout  time.Duration

	done chan struct{}
}

// NewIndexingWorker builds a worker draining q into coordinator.
func NewIndexingWorker(q *queue.Queue, coordinator *Coordinator, logger *slog.Logger) *IndexingWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexingWorker{
		queue:       q,
		coordinator: coordinator,
		logger:      logger,
		getTimeout:  defaultGetTimeout,
		done:        make(chan struct{}),
	}
}

// Run blocks, repeatedly dequeuing items and admitting them into the
// pipeline, until ctx is cancelled. Close(done) happens on return so
// Wait can join it.
func (w *IndexingWorker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		if ctx.Err() != nil {
			return
		}
		item, ok := w.queue.Get(ctx, w.getTimeout)
		if !ok {
			continue
		}
		if err := w.coordinator.AddFile(ctx, item); err != nil {
			w.logger.Warn("admission into pipeline failed", "path", item.Path, "error", err)
			w.queue.MarkComplete(item.Path)
		}
	}
}

// Wait blocks until Run has returned; the caller cancels Run's ctx
// to make it return.
func (w *IndexingWorker) Wait() {
	<-w.done
}
