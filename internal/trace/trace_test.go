package trace

import (
	"bytes"
	"context"
	"testing"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_TRACING_ENABLED", "false")
	t.Setenv("LOG_TRACE_SAMPLE_RATIO", "0.25")
	cfg := ConfigFromEnv()
	if cfg.Enabled || cfg.SampleRatio != 0.25 {
		t.Errorf("Unexpected config %+v", cfg)
	}

	t.Setenv("LOG_TRACE_SAMPLE_RATIO", "7")
	if cfg := ConfigFromEnv(); cfg.SampleRatio != 1 {
		t.Errorf("Expected out-of-range ratio to fall back to 1, got %v", cfg.SampleRatio)
	}
}

func TestSpansCarryIDs(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(Config{Enabled: true, SampleRatio: 1, Output: &buf}); err != nil {
		t.Fatal(err)
	}
	defer Setup(Config{Enabled: false})

	ctx, span := StartSpan(context.Background(), "test.span")
	traceID, spanID, ok := GetTraceFields(ctx)
	span.End()
	if !ok || traceID == "" || spanID == "" {
		t.Errorf("Expected trace ids inside a span, got %q %q %v", traceID, spanID, ok)
	}
	if _, _, ok := GetTraceFields(context.Background()); ok {
		t.Error("Expected no ids outside a span")
	}
}
