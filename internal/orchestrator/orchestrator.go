// Package orchestrator wires every component into one AppState and
// drives the startup sequence: load config, open the configured
// store backend, build the pipeline and its satellite services, run
// the sanitizer, then start the worker and watcher. Grounded on the
// source system's StartupManager: one ordered initialize() pass
// building a single state value, no package-level globals.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/katanaquant/ragengine/internal/chunker"
	"github.com/katanaquant/ragengine/internal/config"
	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/embed"
	"github.com/katanaquant/ragengine/internal/extract"
	"github.com/katanaquant/ragengine/internal/ignore"
	"github.com/katanaquant/ragengine/internal/logging"
	"github.com/katanaquant/ragengine/internal/metrics"
	"github.com/katanaquant/ragengine/internal/pipeline"
	"github.com/katanaquant/ragengine/internal/progress"
	"github.com/katanaquant/ragengine/internal/query"
	"github.com/katanaquant/ragengine/internal/queue"
	"github.com/katanaquant/ragengine/internal/sanitize"
	"github.com/katanaquant/ragengine/internal/scan"
	"github.com/katanaquant/ragengine/internal/search"
	"github.com/katanaquant/ragengine/internal/store"
	"github.com/katanaquant/ragengine/internal/store/hnsw"
	"github.com/katanaquant/ragengine/internal/store/postgres"
	"github.com/katanaquant/ragengine/internal/store/sqlite"
	"github.com/katanaquant/ragengine/internal/validate"
	"github.com/katanaquant/ragengine/internal/watcher"
)

// orphanRepairEnabled gates the sanitizer's O(n) orphan scan. Not
// exposed as a config field since SPEC_FULL.md's field list is fixed;
// large knowledge bases that find the scan too slow can skip it by
// never letting processing_progress rows go stale in the first place.
const orphanRepairEnabled = true

// AppState holds every long-lived component built at startup. Built
// once by New and never replaced; components reach each other through
// AppState's fields rather than package-level singletons.
type AppState struct {
	Config config.Settings
	Logger *slog.Logger

	Backend  store.Backend
	Queue    *queue.Queue
	Embedder embed.Embedder

	Sanitizer   *sanitize.Sanitizer
	Coordinator *pipeline.Coordinator
	Worker      *pipeline.IndexingWorker
	Searcher    *search.HybridSearcher
	Query       *query.Executor
	Watcher     *watcher.HybridWatcher
	Scanner     *scan.Runner
	Metrics     *metrics.Collector
	Tracer      *metrics.TracerProvider

	lock      *flock.Flock
	logCloser func() error
	cancel    context.CancelFunc
	workerCtx context.Context
}

// New builds every component from cfg but starts nothing. Call Start
// to run the sanitizer and bring the pipeline, worker and watcher
// online.
func New(ctx context.Context, cfg config.Settings) (*AppState, error) {
	logger, logCloser, err := logging.Setup(cfg.Logging.Level, cfg.Logging.FilePath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: logging setup: %w", err)
	}

	lock, err := acquireStartupLock(cfg.Paths.DataDir)
	if err != nil {
		_ = logCloser()
		return nil, fmt.Errorf("orchestrator: acquire startup lock: %w", err)
	}

	collector := metrics.New("ragengine")
	tracer, err := metrics.NewTracerProvider(ctx, metrics.DefaultTracerConfig())
	if err != nil {
		_ = lock.Unlock()
		_ = logCloser()
		return nil, fmt.Errorf("orchestrator: build tracer: %w", err)
	}

	backend, err := openBackend(ctx, cfg, collector, tracer)
	if err != nil {
		_ = lock.Unlock()
		_ = logCloser()
		return nil, fmt.Errorf("orchestrator: open backend: %w", err)
	}

	embedder, err := embed.New(ctx, embed.Settings{
		Provider: cfg.Embedding.Provider,
		Ollama: embed.OllamaConfig{
			Host:       cfg.Embedding.Endpoint,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dim,
		},
	})
	if err != nil {
		_ = backend.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("orchestrator: build embedder: %w", err)
	}

	q := queue.New()
	tracker := progress.New(backend)
	router := extract.NewRouter(extract.Markdown{}, extract.NewCode())
	ck := chunker.New(chunker.Settings{
		TargetSize: cfg.Chunk.TargetSize,
		MinSize:    cfg.Chunk.MinSize,
		Overlap:    cfg.Chunk.Overlap,
		Semantic:   cfg.Chunk.Semantic,
	})
	validator := validate.New(validate.DefaultSettings())

	coordinator := pipeline.New(pipeline.Settings{
		ChunkWorkers:         cfg.Pipeline.ChunkWorkers,
		EmbedWorkers:         cfg.Pipeline.EmbedWorkers,
		StoreWorkers:         cfg.Pipeline.StoreWorkers,
		MaxPendingEmbeddings: cfg.Pipeline.MaxPendingEmbeddings,
		ChunkQueueCapacity:   cfg.Pipeline.ChunkQueueCapacity,
		EmbedQueueCapacity:   cfg.Pipeline.EmbedQueueCapacity,
		StoreQueueCapacity:   cfg.Pipeline.StoreQueueCapacity,
		EmbedBatchSize:       cfg.Embedding.Batch,
	}, q, validator, tracker, router, ck, embedder, backend, logging.Stage(logger, "pipeline"), collector, tracer)

	worker := pipeline.NewIndexingWorker(q, coordinator, logging.Stage(logger, "worker"))

	san := sanitize.New(backend, q, sanitize.Settings{OrphanRepairEnabled: orphanRepairEnabled}, logging.Stage(logger, "sanitize"))

	searcher := search.New(backend, cfg.Fusion.K0, collector, tracer)

	queryExec, err := query.New(embedder, searcher, cfg.Cache.MaxEntries, collector)
	if err != nil {
		_ = backend.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("orchestrator: build query executor: %w", err)
	}

	matcher := ignore.New()
	if err := matcher.AddFromFile(filepath.Join(cfg.Paths.KnowledgeBase, ".gitignore"), ""); err != nil {
		logger.Debug("no root .gitignore to load", "error", err)
	}
	w := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow: time.Duration(cfg.Watcher.DebounceMS) * time.Millisecond,
		BatchSize:      cfg.Watcher.BatchSize,
	}, matcher, logging.Stage(logger, "watcher"))

	return &AppState{
		Config:      cfg,
		Logger:      logger,
		Backend:     backend,
		Queue:       q,
		Embedder:    embedder,
		Sanitizer:   san,
		Coordinator: coordinator,
		Worker:      worker,
		Searcher:    searcher,
		Query:       queryExec,
		Watcher:     w,
		Scanner:     scan.NewRunner(backend, validator),
		Metrics:     collector,
		Tracer:      tracer,
		lock:        lock,
		logCloser:   logCloser,
	}, nil
}

// acquireStartupLock takes an exclusive, non-blocking file lock under
// dataDir so two engine instances never run against the same data
// directory at once. The OS releases the lock automatically if the
// holding process crashes, so a restart after a crash never finds a
// stale lock blocking it.
func acquireStartupLock(dataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	lock := flock.New(filepath.Join(dataDir, "ragengine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("try lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another instance already holds the lock on %s", dataDir)
	}
	return lock, nil
}

func openBackend(ctx context.Context, cfg config.Settings, collector *metrics.Collector, tracer *metrics.TracerProvider) (store.Backend, error) {
	switch cfg.Backend.Kind {
	case config.BackendPostgres:
		return postgres.Open(ctx, postgres.Settings{
			ConnString: cfg.Backend.DSN,
			Dimensions: cfg.Embedding.Dim,
			Collector:  collector,
			Tracer:     tracer,
		})
	case config.BackendEmbedded, "":
		return sqlite.Open(sqlite.Settings{
			Path:       filepath.Join(cfg.Paths.DataDir, "ragengine.db"),
			Dimensions: cfg.Embedding.Dim,
			ANN: hnsw.Settings{
				M:              cfg.ANN.M,
				EfConstruction: cfg.ANN.EfConstruction,
				EfSearch:       cfg.ANN.EfSearch,
			},
			Collector: collector,
			Tracer:    tracer,
		})
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
}

// Start runs the sanitizer, then brings the pipeline worker and
// watcher online. Must be called at most once.
func (a *AppState) Start(ctx context.Context) error {
	result, err := a.Sanitizer.Run(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: sanitize: %w", err)
	}
	a.Logger.Info("startup sanitization complete", "resumed", result.Resumed, "orphans_queued", result.OrphansQueued, "orphans_exempt", result.OrphansExempt)

	workerCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.workerCtx = workerCtx

	a.Coordinator.Start(workerCtx)
	go a.Worker.Run(workerCtx)

	if err := a.Watcher.Start(a.Config.Paths.KnowledgeBase); err != nil {
		return fmt.Errorf("orchestrator: start watcher: %w", err)
	}
	go a.pumpWatcherEvents(workerCtx)
	go a.pumpMetrics(workerCtx)

	return nil
}

// metricsPollInterval governs how often pumpMetrics refreshes the
// queue depth and corpus size gauges.
const metricsPollInterval = 15 * time.Second

// pumpMetrics periodically refreshes the gauges that have no natural
// call site of their own: queue depth per priority and corpus size.
func (a *AppState) pumpMetrics(ctx context.Context) {
	ticker := time.NewTicker(metricsPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for priority, depth := range a.Queue.SizeByPriority() {
				a.Metrics.SetQueueDepth(priority.String(), depth)
			}
			stats, err := a.Backend.GetStats(ctx)
			if err != nil {
				a.Logger.Warn("metrics: get stats failed", "error", err)
				continue
			}
			a.Metrics.SetCorpusSize(stats.IndexedDocuments, stats.TotalChunks)
		}
	}
}

// pumpWatcherEvents feeds debounced watcher batches directly into the
// admission queue; deletes are handled through DeleteDocument rather
// than re-admission.
func (a *AppState) pumpWatcherEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-a.Watcher.Events():
			if !ok {
				return
			}
			for _, ev := range batch {
				if ev.IsDir {
					continue
				}
				switch ev.Operation {
				case watcher.OpCreate, watcher.OpModify:
					a.Queue.Add(ev.Path, a.Config.Queue.DefaultPriority, false)
				case watcher.OpDelete:
					if _, err := a.Backend.DeleteDocument(ctx, ev.Path); err != nil {
						a.Logger.Warn("delete on watcher removal failed", "path", ev.Path, "error", err)
					}
					a.Query.InvalidateAll()
				}
			}
		case err, ok := <-a.Watcher.Errors():
			if !ok {
				continue
			}
			a.Logger.Warn("watcher error", "error", err)
		}
	}
}

// Stop drains the pipeline and watcher, then closes the store. Safe
// to call even if Start was never called.
func (a *AppState) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}
	if a.Worker != nil {
		a.Worker.Wait()
	}
	if a.Coordinator != nil {
		a.Coordinator.Stop()
	}
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	var closeErr error
	if a.Backend != nil {
		closeErr = a.Backend.Close()
	}
	if a.Tracer != nil {
		_ = a.Tracer.Shutdown(context.Background())
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
	if a.logCloser != nil {
		_ = a.logCloser()
	}
	return closeErr
}

// IndexPath admits one path directly, bypassing the watcher — used by
// the CLI's `index` subcommand and the HTTP/MCP ingest endpoint.
func (a *AppState) IndexPath(path string, priority domain.Priority, force bool) {
	a.Queue.Add(path, priority, force)
}
