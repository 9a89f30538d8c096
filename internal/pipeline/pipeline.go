// Package pipeline implements the PipelineCoordinator: a three-stage
// chunk/embed/store pipeline with bounded queues between stages so a
// slow downstream stage applies backpressure to its producer instead
// of unbounded memory growth. It is the one component in this engine
// that holds no lock of its own; the only lock taken anywhere in the
// critical path is the store's internal mutex, and only around the
// store stage's transactional replace.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/katanaquant/ragengine/internal/chunker"
	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/embed"
	"github.com/katanaquant/ragengine/internal/extract"
	"github.com/katanaquant/ragengine/internal/metrics"
	"github.com/katanaquant/ragengine/internal/progress"
	"github.com/katanaquant/ragengine/internal/queue"
	"github.com/katanaquant/ragengine/internal/store"
	"github.com/katanaquant/ragengine/internal/validate"
)

// Settings controls stage fan-out and backpressure.
type Settings struct {
	ChunkWorkers         int
	EmbedWorkers         int
	StoreWorkers         int
	MaxPendingEmbeddings int
	ChunkQueueCapacity   int
	EmbedQueueCapacity   int
	StoreQueueCapacity   int
	EmbedBatchSize       int
}

// docIdentity carries what downstream stages need to know about the
// file a job belongs to, without re-deriving it from the chunks.
type docIdentity struct {
	Path             string
	Hash             string
	ExtractionMethod string
}

type embedJob struct {
	doc    docIdentity
	chunks []domain.Chunk
}

type storeJob struct {
	doc        docIdentity
	chunks     []domain.Chunk
	embeddings [][]float32
}

// Coordinator drives each admitted file through chunk, embed, and
// store stages. It never touches the admission queue's ordering
// logic; it only calls IndexingQueue.MarkComplete at every terminal
// point (reject, skip, failure, success) to release the in-flight
// slot a path was holding.
type Coordinator struct {
	settings  Settings
	queue     *queue.Queue
	validator *validate.Validator
	tracker   *progress.Tracker
	router    *extract.Router
	chunker   *chunker.Chunker
	embedder  embed.Embedder
	backend   store.Backend
	logger    *slog.Logger
	collector *metrics.Collector
	tracer    *metrics.TracerProvider

	chunkQ chan domain.QueueItem
	embedQ chan embedJob
	storeQ chan storeJob
	sem    chan struct{}

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started atomic.Bool

	chunkActive atomic.Int64
	embedActive atomic.Int64
	storeActive atomic.Int64
}

// New builds a Coordinator. logger defaults to slog.Default() if nil;
// collector and tracer default to their no-op variants if nil.
func New(settings Settings, q *queue.Queue, validator *validate.Validator, tracker *progress.Tracker, router *extract.Router, ck *chunker.Chunker, embedder embed.Embedder, backend store.Backend, logger *slog.Logger, collector *metrics.Collector, tracer *metrics.TracerProvider) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NoopCollector()
	}
	if tracer == nil {
		tracer = metrics.NoopTracerProvider()
	}
	return &Coordinator{
		settings:  settings,
		queue:     q,
		validator: validator,
		tracker:   tracker,
		router:    router,
		chunker:   ck,
		embedder:  embedder,
		backend:   backend,
		logger:    logger,
		collector: collector,
		tracer:    tracer,
		chunkQ:    make(chan domain.QueueItem, settings.ChunkQueueCapacity),
		embedQ:    make(chan embedJob, settings.EmbedQueueCapacity),
		storeQ:    make(chan storeJob, settings.StoreQueueCapacity),
		sem:       make(chan struct{}, maxInt(settings.MaxPendingEmbeddings, 1)),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Start spins up the worker pools for every stage. Calling Start
// twice is a no-op.
func (c *Coordinator) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for i := 0; i < maxInt(c.settings.ChunkWorkers, 1); i++ {
		c.wg.Add(1)
		go c.chunkWorker(ctx)
	}
	for i := 0; i < maxInt(c.settings.EmbedWorkers, 1); i++ {
		c.wg.Add(1)
		go c.embedWorker(ctx)
	}
	for i := 0; i < maxInt(c.settings.StoreWorkers, 1); i++ {
		c.wg.Add(1)
		go c.storeWorker(ctx)
	}
}

// AddFile admits one file into the chunk stage. It blocks if chunk_q
// is full, providing the pipeline's only form of backpressure on
// admission, until space frees up or ctx is cancelled.
func (c *Coordinator) AddFile(ctx context.Context, item domain.QueueItem) error {
	select {
	case c.chunkQ <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop signals every stage to exit, waits for every stage worker to
// return, then releases the in-flight slot of each item still buffered
// between stages via MarkComplete; those items are not processed. No
// new work is admitted once Stop has been called: AddFile callers
// should stop calling it before invoking Stop. A second call is a no-op.
func (c *Coordinator) Stop() {
	if !c.started.Load() || c.cancel == nil {
		return
	}
	close(c.chunkQ)
	c.cancel()
	c.cancel = nil
	c.wg.Wait()

	for item := range c.chunkQ {
		c.queue.MarkComplete(item.Path)
	}
	for len(c.embedQ) > 0 {
		c.queue.MarkComplete((<-c.embedQ).doc.Path)
	}
	for len(c.storeQ) > 0 {
		c.queue.MarkComplete((<-c.storeQ).doc.Path)
	}
}

// Stats reports queue depths and active-worker counts for operator
// visibility.
type Stats struct {
	ChunkQueueSize int
	EmbedQueueSize int
	StoreQueueSize int
	ChunkActive    int64
	EmbedActive    int64
	StoreActive    int64
}

func (c *Coordinator) Stats() Stats {
	return Stats{
		ChunkQueueSize: len(c.chunkQ),
		EmbedQueueSize: len(c.embedQ),
		StoreQueueSize: len(c.storeQ),
		ChunkActive:    c.chunkActive.Load(),
		EmbedActive:    c.embedActive.Load(),
		StoreActive:    c.storeActive.Load(),
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("pipeline: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("pipeline: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
