// Package query implements the Query executor (§4.10): embed the
// query text, run hybrid search, format results, and cache the
// outcome keyed by the exact request shape.
package query

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/embed"
	"github.com/katanaquant/ragengine/internal/metrics"
)

// Searcher is the subset of search.HybridSearcher the executor needs.
// Kept as an interface so tests can substitute a stub searcher without
// standing up a store.Backend.
type Searcher interface {
	Search(ctx context.Context, queryText string, embedding []float32, topK int, threshold float64, useHybrid bool) ([]domain.SearchResult, error)
}

// Request is one query's parameters. Two requests with the same
// Request value are cache hits of each other.
type Request struct {
	Text      string
	TopK      int
	Threshold float64
	UseHybrid bool
}

// Result is a single formatted hit returned to a caller.
type Result struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Page    *int    `json:"page,omitempty"`
	Score   float64 `json:"score"`
}

// Executor runs the embed → search → format → cache pipeline.
type Executor struct {
	embedder  embed.Embedder
	searcher  Searcher
	cache     *lru.Cache[Request, []Result]
	collector *metrics.Collector
}

// New builds an Executor with an LRU result cache bounded to
// maxCacheEntries (a non-positive value sizes the cache to a single
// entry, so only the most recent request stays cached). collector
// defaults to its no-op variant if nil.
func New(embedder embed.Embedder, searcher Searcher, maxCacheEntries int, collector *metrics.Collector) (*Executor, error) {
	if maxCacheEntries <= 0 {
		maxCacheEntries = 1
	}
	cache, err := lru.New[Request, []Result](maxCacheEntries)
	if err != nil {
		return nil, fmt.Errorf("query: build cache: %w", err)
	}
	if collector == nil {
		collector = metrics.NoopCollector()
	}
	return &Executor{embedder: embedder, searcher: searcher, cache: cache, collector: collector}, nil
}

// Run executes req, serving from cache when an identical request was
// answered before.
func (e *Executor) Run(ctx context.Context, req Request) ([]Result, error) {
	if req.TopK <= 0 {
		req.TopK = 10
	}

	if cached, ok := e.cache.Get(req); ok {
		e.collector.RecordQueryCache(true)
		return cached, nil
	}
	e.collector.RecordQueryCache(false)

	embedding, err := e.embedder.Embed(ctx, req.Text)
	if err != nil {
		return nil, fmt.Errorf("query: embed: %w", err)
	}

	hits, err := e.searcher.Search(ctx, req.Text, embedding, req.TopK, req.Threshold, req.UseHybrid)
	if err != nil {
		return nil, fmt.Errorf("query: search: %w", err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			Content: h.Content,
			Source:  h.FilePath,
			Page:    h.Page,
			Score:   h.Score,
		}
	}

	e.cache.Add(req, results)
	return results, nil
}

// InvalidateAll drops every cached entry. Called after a reindex or
// bulk delete so stale results never outlive the documents they came
// from.
func (e *Executor) InvalidateAll() {
	e.cache.Purge()
}

// CacheLen reports how many distinct requests are currently cached.
func (e *Executor) CacheLen() int {
	return e.cache.Len()
}
