// Package metrics exposes Prometheus counters and histograms around
// the pipeline stages, the hybrid searcher, and the store, plus an
// OpenTelemetry tracer for spans across the same boundaries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every Prometheus metric the engine records.
type Collector struct {
	PipelineStageDuration *prometheus.HistogramVec
	PipelineStageTotal    *prometheus.CounterVec

	QueueDepth    *prometheus.GaugeVec
	QueueInFlight prometheus.Gauge

	SearchRequests *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
	SearchResults  *prometheus.HistogramVec

	QueryCacheHits   prometheus.Counter
	QueryCacheMisses prometheus.Counter

	StoreTxDuration *prometheus.HistogramVec
	StoreTxTotal    *prometheus.CounterVec

	IndexedDocuments prometheus.Gauge
	IndexedChunks    prometheus.Gauge

	WatcherBatchesDropped prometheus.Counter
}

// New creates and registers every metric against the default
// registry.
func New(namespace string) *Collector {
	return NewWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NoopCollector returns a Collector registered against a private
// registry, for components that want a non-nil Collector to call
// without wiring up a real one (tests, one-off CLI commands).
func NoopCollector() *Collector {
	return NewWithRegistry("ragengine", prometheus.NewRegistry())
}

// NewWithRegistry is New against a caller-supplied registry, so tests
// can avoid colliding with the process-global default registry.
func NewWithRegistry(namespace string, reg prometheus.Registerer) *Collector {
	if namespace == "" {
		namespace = "ragengine"
	}

	counterVec := func(name, help string, labels []string) *prometheus.CounterVec {
		return promauto.With(reg).NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	histogramVec := func(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
		return promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}, labels)
	}
	gaugeVec := func(name, help string, labels []string) *prometheus.GaugeVec {
		return promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	counter := func(name, help string) prometheus.Counter {
		return promauto.With(reg).NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return promauto.With(reg).NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	defaultBuckets := []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

	return &Collector{
		PipelineStageDuration: histogramVec("pipeline_stage_duration_seconds", "Duration of one pipeline stage's processing of one item.", defaultBuckets, []string{"stage"}),
		PipelineStageTotal:    counterVec("pipeline_stage_total", "Count of pipeline stage outcomes by stage and outcome.", []string{"stage", "outcome"}),

		QueueDepth:    gaugeVec("queue_depth", "Number of items waiting in the indexing queue by priority.", []string{"priority"}),
		QueueInFlight: gauge("queue_in_flight", "Number of items currently admitted to the pipeline."),

		SearchRequests: counterVec("search_requests_total", "Total search requests by mode and outcome.", []string{"mode", "status"}),
		SearchDuration: histogramVec("search_duration_seconds", "Hybrid search latency.", defaultBuckets, []string{"mode"}),
		SearchResults:  histogramVec("search_results_count", "Number of fused results returned per search.", []float64{0, 1, 5, 10, 25, 50, 100}, []string{"mode"}),

		QueryCacheHits:   counter("query_cache_hits_total", "Total query executor cache hits."),
		QueryCacheMisses: counter("query_cache_misses_total", "Total query executor cache misses."),

		StoreTxDuration: histogramVec("store_transaction_duration_seconds", "Store transaction duration by operation.", defaultBuckets, []string{"operation"}),
		StoreTxTotal:    counterVec("store_transaction_total", "Store transaction count by operation and outcome.", []string{"operation", "outcome"}),

		IndexedDocuments: gauge("indexed_documents", "Number of documents currently indexed."),
		IndexedChunks:    gauge("indexed_chunks", "Number of chunks currently indexed."),

		WatcherBatchesDropped: counter("watcher_batches_dropped_total", "Total debounced event batches dropped because the output channel was full."),
	}
}

// RecordPipelineStage records one stage's outcome and duration.
func (c *Collector) RecordPipelineStage(stage, outcome string, d time.Duration) {
	c.PipelineStageTotal.WithLabelValues(stage, outcome).Inc()
	c.PipelineStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordSearch records one search request's outcome, duration, and
// result count.
func (c *Collector) RecordSearch(mode, status string, d time.Duration, resultCount int) {
	c.SearchRequests.WithLabelValues(mode, status).Inc()
	c.SearchDuration.WithLabelValues(mode).Observe(d.Seconds())
	c.SearchResults.WithLabelValues(mode).Observe(float64(resultCount))
}

// RecordQueryCache records a query executor cache hit or miss.
func (c *Collector) RecordQueryCache(hit bool) {
	if hit {
		c.QueryCacheHits.Inc()
	} else {
		c.QueryCacheMisses.Inc()
	}
}

// RecordStoreTx records one store transaction's outcome and duration.
func (c *Collector) RecordStoreTx(operation, outcome string, d time.Duration) {
	c.StoreTxTotal.WithLabelValues(operation, outcome).Inc()
	c.StoreTxDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// SetQueueDepth sets the current queue depth for a priority level.
func (c *Collector) SetQueueDepth(priority string, depth int) {
	c.QueueDepth.WithLabelValues(priority).Set(float64(depth))
}

// SetCorpusSize sets the current indexed document/chunk counts.
func (c *Collector) SetCorpusSize(documents, chunks int64) {
	c.IndexedDocuments.Set(float64(documents))
	c.IndexedChunks.Set(float64(chunks))
}
