// Package trace owns the process-wide OpenTelemetry tracer.
package trace

import (
	"context"
	"io"
	"os"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "algo-trading-bot"

// Version is reported as service.version; set with -ldflags.
var Version = "dev"

type Config struct {
	Enabled     bool
	SampleRatio float64   // 1 keeps every trace
	Output      io.Writer // defaults to stderr so stdout stays usable for cycle summaries
}

var (
	mu       sync.Mutex
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	enabled  bool
)

// ConfigFromEnv reads LOG_TRACING_ENABLED and LOG_TRACE_SAMPLE_RATIO.
func ConfigFromEnv() Config {
	cfg := Config{Enabled: os.Getenv("LOG_TRACING_ENABLED") != "false", SampleRatio: 1}
	if v, err := strconv.ParseFloat(os.Getenv("LOG_TRACE_SAMPLE_RATIO"), 64); err == nil && v >= 0 && v <= 1 {
		cfg.SampleRatio = v
	}
	return cfg
}

func Init() error {
	return Setup(ConfigFromEnv())
}

// InitWithEnabled is Setup with defaults for everything but the switch.
func InitWithEnabled(on bool) error {
	cfg := ConfigFromEnv()
	cfg.Enabled = on
	return Setup(cfg)
}

// Setup installs the tracer provider once; later calls only toggle spans.
func Setup(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	enabled = cfg.Enabled
	if !enabled || provider != nil {
		return nil
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		enabled = false
		return err
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(Version),
	))
	if err != nil {
		enabled = false
		return err
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(provider)
	tracer = provider.Tracer(serviceName)
	return nil
}

// Shutdown flushes buffered spans.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	p := provider
	mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Shutdown(ctx)
}

// StartSpan returns the context's current span unchanged when tracing is off.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !Enabled() {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
}

// StartSpanWith attaches attrs to the new span.
func StartSpanWith(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError marks the span in ctx as failed.
func RecordError(ctx context.Context, err error) {
	if err == nil || !Enabled() {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled && tracer != nil
}

// GetTraceFields returns the ids of the span in ctx for log correlation.
func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !Enabled() {
		return "", "", false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}
