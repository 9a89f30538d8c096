package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := <-ch
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	return pb.GetCounter().GetValue()
}

func TestRecordPipelineStageIncrementsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewWithRegistry("test", reg)

	c.RecordPipelineStage("chunk", "success", 10*time.Millisecond)

	assert.Equal(t, float64(1), counterValue(t, c.PipelineStageTotal.WithLabelValues("chunk", "success")))
}

func TestRecordQueryCacheHitAndMiss(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewWithRegistry("test", reg)

	c.RecordQueryCache(true)
	c.RecordQueryCache(true)
	c.RecordQueryCache(false)

	assert.Equal(t, float64(2), counterValue(t, c.QueryCacheHits))
	assert.Equal(t, float64(1), counterValue(t, c.QueryCacheMisses))
}

func TestSetCorpusSizeUpdatesGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewWithRegistry("test", reg)

	c.SetCorpusSize(42, 1337)

	ch := make(chan prometheus.Metric, 1)
	c.IndexedDocuments.Collect(ch)
	var pb dto.Metric
	require.NoError(t, (<-ch).Write(&pb))
	assert.Equal(t, float64(42), pb.GetGauge().GetValue())
}

func TestNewTracerProviderDisabledReturnsNoopTracer(t *testing.T) {
	cfg := DefaultTracerConfig()
	tp, err := NewTracerProvider(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, tp.Tracer())
	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestStartPipelineSpanSetsAttributes(t *testing.T) {
	cfg := DefaultTracerConfig()
	tp, err := NewTracerProvider(context.Background(), cfg)
	require.NoError(t, err)

	ctx, span := tp.StartPipelineSpan(context.Background(), "chunk", "/tmp/doc.md")
	defer span.End()
	assert.NotNil(t, ctx)
}
