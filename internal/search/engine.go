package search

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/metrics"
	"github.com/katanaquant/ragengine/internal/store"
)

// candidateMultiplier controls how many keyword candidates are pulled
// relative to top_k before fusion narrows the union back down.
const candidateMultiplier = 4

// HybridSearcher fuses vector similarity search with keyword (BM25 /
// tsvector) search via Reciprocal Rank Fusion. It depends only on
// store.Backend, never on a concrete backend, so it works unmodified
// against the embedded or the server store.
type HybridSearcher struct {
	backend   store.Backend
	k0        int
	collector *metrics.Collector
	tracer    *metrics.TracerProvider
}

// New builds a HybridSearcher. k0 <= 0 falls back to DefaultK0;
// collector and tracer default to their no-op variants if nil.
func New(backend store.Backend, k0 int, collector *metrics.Collector, tracer *metrics.TracerProvider) *HybridSearcher {
	if k0 <= 0 {
		k0 = DefaultK0
	}
	if collector == nil {
		collector = metrics.NoopCollector()
	}
	if tracer == nil {
		tracer = metrics.NoopTracerProvider()
	}
	return &HybridSearcher{backend: backend, k0: k0, collector: collector, tracer: tracer}
}

// Search runs vector and (optionally) keyword search concurrently,
// fuses the two ranked lists, and returns the top_k fused hits. When
// useHybrid is false the keyword leg is skipped and results are
// plain vector-similarity order. threshold, if > 0, drops vector hits
// below that raw similarity score before fusion.
func (h *HybridSearcher) Search(ctx context.Context, queryText string, embedding []float32, topK int, threshold float64, useHybrid bool) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 1
	}

	mode := "vector"
	if useHybrid {
		mode = "hybrid"
	}
	start := time.Now()
	ctx, span := h.tracer.StartSearchSpan(ctx, mode, topK)
	defer span.End()

	results, err := h.search(ctx, queryText, embedding, topK, threshold, useHybrid)

	status := "ok"
	if err != nil {
		status = "error"
		metrics.RecordSpanError(span, err)
	}
	h.collector.RecordSearch(mode, status, time.Since(start), len(results))
	return results, err
}

func (h *HybridSearcher) search(ctx context.Context, queryText string, embedding []float32, topK int, threshold float64, useHybrid bool) ([]domain.SearchResult, error) {
	var vecResults, keywordResults []domain.SearchResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results, err := h.backend.VectorSearch(gctx, embedding, topK*candidateMultiplier)
		if err != nil {
			return fmt.Errorf("search: vector search: %w", err)
		}
		if threshold > 0 {
			results = filterByThreshold(results, threshold)
		}
		vecResults = results
		return nil
	})
	if useHybrid && queryText != "" {
		g.Go(func() error {
			results, err := h.backend.LexicalSearch(gctx, queryText, topK*candidateMultiplier)
			if err != nil {
				return fmt.Errorf("search: lexical search: %w", err)
			}
			keywordResults = results
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !useHybrid {
		if len(vecResults) > topK {
			vecResults = vecResults[:topK]
		}
		return vecResults, nil
	}

	return fuse(vecResults, keywordResults, h.k0, topK), nil
}

// keywordIndexRefresher is implemented by backends that maintain a
// rebuildable lexical index (the embedded FTS5 backend); backends
// whose lexical index is server-maintained (Postgres tsvector/GIN)
// satisfy it with a no-op.
type keywordIndexRefresher interface {
	RefreshKeywordIndex(ctx context.Context) error
}

// RefreshKeywordIndex rebuilds the BM25/lexical structure from
// current chunks. Called after bulk ingestion or on demand.
func (h *HybridSearcher) RefreshKeywordIndex(ctx context.Context) error {
	refresher, ok := h.backend.(keywordIndexRefresher)
	if !ok {
		return nil
	}
	return refresher.RefreshKeywordIndex(ctx)
}

func filterByThreshold(results []domain.SearchResult, threshold float64) []domain.SearchResult {
	out := results[:0:0]
	for _, r := range results {
		if r.Score >= threshold {
			out = append(out, r)
		}
	}
	return out
}
