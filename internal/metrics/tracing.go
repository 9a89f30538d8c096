package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerConfig configures the OTel tracer provider wrapping the
// pipeline and store.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
	SamplingRate   float64
	Enabled        bool
}

// DefaultTracerConfig returns tracing disabled by default; enabling it
// requires a reachable OTLP/HTTP collector.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		ServiceName:    "ragengine",
		ServiceVersion: "dev",
		OTLPEndpoint:   "localhost:4318",
		SamplingRate:   1.0,
		Enabled:        false,
	}
}

// TracerProvider wraps the SDK tracer provider; when tracing is
// disabled it hands out a no-op tracer so call sites never branch on
// whether tracing is active.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracerProvider builds a TracerProvider per cfg.
func NewTracerProvider(ctx context.Context, cfg TracerConfig) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{tracer: otel.Tracer(cfg.ServiceName)}, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: build otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}, nil
}

// NoopTracerProvider returns a disabled TracerProvider, for components
// that want a non-nil provider to call without wiring up real export.
// Enabled: false never touches the network, so this never errors.
func NoopTracerProvider() *TracerProvider {
	tp, _ := NewTracerProvider(context.Background(), DefaultTracerConfig())
	return tp
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer { return tp.tracer }

// Shutdown flushes and stops the tracer provider. A no-op provider
// returns nil.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// StartPipelineSpan starts a span for one pipeline stage's processing
// of one path.
func (tp *TracerProvider) StartPipelineSpan(ctx context.Context, stage, path string) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, "pipeline."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("pipeline.stage", stage),
			attribute.String("pipeline.path", path),
		),
	)
}

// StartSearchSpan starts a span for one hybrid search call.
func (tp *TracerProvider) StartSearchSpan(ctx context.Context, mode string, topK int) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, "search.query",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("search.mode", mode),
			attribute.Int("search.top_k", topK),
		),
	)
}

// StartStoreSpan starts a span for one store transaction.
func (tp *TracerProvider) StartStoreSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, "store."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("store.operation", operation)),
	)
}

// RecordSpanError records err on span and marks it failed, if err is
// non-nil.
func RecordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
