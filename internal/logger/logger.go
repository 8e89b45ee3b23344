// Package logger is the process-wide structured logger. Every entry point
// takes a context so lines carry the trace_id and span_id of the active span.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"algo-trading-bot/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var (
	globalLogger    *slog.Logger
	levelVar        = new(slog.LevelVar)
	detailedLogging bool
	tracingEnabled  bool
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level           string // DEBUG, INFO, WARN, ERROR
	Format          string // json or text
	DetailedLogging bool   // debug lines with caller source
	TracingEnabled  bool
}

// Init configures logging from LOG_LEVEL, LOG_FORMAT, LOG_DETAILED and
// LOG_TRACING_ENABLED.
func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

func LoadConfigFromEnv() LogConfig {
	return LogConfig{
		Level:           getEnvOrDefault("LOG_LEVEL", "INFO"),
		Format:          getEnvOrDefault("LOG_FORMAT", "json"),
		DetailedLogging: getEnvOrDefault("LOG_DETAILED", "false") == "true",
		TracingEnabled:  getEnvOrDefault("LOG_TRACING_ENABLED", "true") == "true",
	}
}

func InitWithConfig(config LogConfig) error {
	return InitWithWriter(config, os.Stdout)
}

// InitWithWriter is InitWithConfig with an explicit output, used by tests.
func InitWithWriter(config LogConfig, w io.Writer) error {
	levelVar.Set(parseLogLevel(config.Level))
	detailedLogging = config.DetailedLogging || levelVar.Level() == slog.LevelDebug
	tracingEnabled = config.TracingEnabled

	// Source is added by logWithTrace so wrappers can report their caller.
	opts := &slog.HandlerOptions{Level: levelVar}
	var handler slog.Handler
	if strings.EqualFold(config.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	if tracingEnabled {
		if err := trace.InitWithEnabled(true); err != nil {
			globalLogger.Warn("Failed to initialize OpenTelemetry tracer, tracing disabled", "error", err)
			tracingEnabled = false
		}
	}
	return nil
}

// Shutdown flushes pending spans
func Shutdown(ctx context.Context) error {
	return trace.Shutdown(ctx)
}

// SetLevel overrides the level chosen at Init, e.g. from the config file
func SetLevel(level string) {
	levelVar.Set(parseLogLevel(level))
	detailedLogging = detailedLogging || levelVar.Level() == slog.LevelDebug
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(level)))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func StartSpan(ctx context.Context, spanName string, opts ...oteltrace.SpanStartOption) (context.Context, oteltrace.Span) {
	return trace.StartSpan(ctx, spanName, opts...)
}

func Debug(ctx context.Context, msg string, args ...any) {
	if detailedLogging {
		logWithTrace(ctx, slog.LevelDebug, msg, 2, args...)
	}
}

func Info(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, 2, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelWarn, msg, 2, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelError, msg, 2, args...)
}

// ErrorWithErr logs err and marks the active span as failed.
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	trace.RecordError(ctx, err)
	logWithTrace(ctx, slog.LevelError, msg, 2, append([]any{"error", err}, args...)...)
}

// DebugSkip is Debug for wrappers; skip is the number of extra frames
// between the caller of interest and this function.
func DebugSkip(ctx context.Context, skip int, msg string, args ...any) {
	if detailedLogging {
		logWithTrace(ctx, slog.LevelDebug, msg, 2+skip, args...)
	}
}

func InfoSkip(ctx context.Context, skip int, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, 2+skip, args...)
}

func WarnSkip(ctx context.Context, skip int, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelWarn, msg, 2+skip, args...)
}

func ErrorWithErrSkip(ctx context.Context, skip int, msg string, err error, args ...any) {
	trace.RecordError(ctx, err)
	logWithTrace(ctx, slog.LevelError, msg, 2+skip, append([]any{"error", err}, args...)...)
}

// plainErrors replaces error values with their message. Text handlers
// format errors with %+v, which prints the stack of pkg/errors values.
func plainErrors(args []any) []any {
	var out []any
	for i, a := range args {
		err, ok := a.(error)
		if !ok {
			continue
		}
		if out == nil {
			out = append([]any(nil), args...)
		}
		out[i] = err.Error()
	}
	if out == nil {
		return args
	}
	return out
}

// logWithTrace prepends trace ids and, in detailed mode, the source of the
// frame skip levels up.
func logWithTrace(ctx context.Context, level slog.Level, msg string, skip int, args ...any) {
	args = plainErrors(args)
	if tracingEnabled {
		if traceID, spanID, ok := trace.GetTraceFields(ctx); ok {
			args = append([]any{"trace_id", traceID, "span_id", spanID}, args...)
		}
	}

	if detailedLogging {
		if pc, file, line, ok := runtime.Caller(skip); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				args = append(args, "source", slog.GroupValue(
					slog.String("function", fn.Name()),
					slog.String("file", file),
					slog.Int("line", line),
				))
			}
		}
	}

	l := globalLogger
	if l == nil {
		l = slog.Default()
	}
	l.Log(ctx, level, msg, args...)
}

// attrs converts key/value pairs to span attributes, dropping values of
// types spans cannot hold.
func attrs(fields []any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case string:
			out = append(out, attribute.String(key, v))
		case int:
			out = append(out, attribute.Int(key, v))
		case int64:
			out = append(out, attribute.Int64(key, v))
		case float64:
			out = append(out, attribute.Float64(key, v))
		case bool:
			out = append(out, attribute.Bool(key, v))
		}
	}
	return out
}

// OperationTimer times an operation and closes its span.
type OperationTimer struct {
	ctx    context.Context
	span   oteltrace.Span
	start  time.Time
	fields []any
}

func StartOperation(ctx context.Context, operation string, fields ...any) *OperationTimer {
	var span oteltrace.Span
	if tracingEnabled {
		ctx, span = trace.StartSpanWith(ctx, operation, attrs(fields)...)
	}
	Debug(ctx, "Operation started", append([]any{"operation", operation}, fields...)...)
	return &OperationTimer{ctx: ctx, span: span, start: time.Now(), fields: fields}
}

func (ot *OperationTimer) finish(err error, extra []any) time.Duration {
	d := time.Since(ot.start)
	if ot.span == nil {
		return d
	}
	ot.span.SetAttributes(attribute.Int64("duration_ms", d.Milliseconds()))
	ot.span.SetAttributes(attrs(extra)...)
	if err != nil {
		ot.span.RecordError(err)
		ot.span.SetStatus(codes.Error, err.Error())
	} else {
		ot.span.SetStatus(codes.Ok, "completed")
	}
	ot.span.End()
	return d
}

func (ot *OperationTimer) End(additionalFields ...any) {
	d := ot.finish(nil, additionalFields)
	fields := append(append([]any{}, ot.fields...), "duration_ms", d.Milliseconds())
	Debug(ot.ctx, "Operation completed", append(fields, additionalFields...)...)
}

func (ot *OperationTimer) EndWithError(err error, additionalFields ...any) {
	d := ot.finish(err, additionalFields)
	fields := append(append([]any{}, ot.fields...), "duration_ms", d.Milliseconds(), "error", err)
	Error(ot.ctx, "Operation failed", append(fields, additionalFields...)...)
}

// GetContext returns the context carrying the operation's span
func (ot *OperationTimer) GetContext() context.Context {
	return ot.ctx
}

// event logs a typed domain event and mirrors it onto the active span.
func event(ctx context.Context, level slog.Level, spanEvent, msg string, fields []any) {
	if tracingEnabled {
		if span := oteltrace.SpanFromContext(ctx); span.SpanContext().IsValid() {
			span.AddEvent(spanEvent, oteltrace.WithAttributes(attrs(fields)...))
		}
	}
	logWithTrace(ctx, level, msg, 3, fields...)
}

// Decision logs an evaluated signal.
func Decision(ctx context.Context, symbol, action string, confidence float64, reason string, fields ...any) {
	event(ctx, slog.LevelInfo, "trading_decision", "Trading decision made", append([]any{
		"type", "DECISION",
		"symbol", symbol,
		"action", action,
		"confidence", confidence,
		"reason", reason,
	}, fields...))
}

// Trade logs a fill. qty is fractional for crypto venues.
func Trade(ctx context.Context, symbol, side string, qty float64, price float64, orderID string, fields ...any) {
	event(ctx, slog.LevelInfo, "trade_executed", "Trade executed", append([]any{
		"type", "TRADE",
		"symbol", symbol,
		"side", side,
		"quantity", qty,
		"price", price,
		"order_id", orderID,
	}, fields...))
}

// Risk logs a sizing rejection or other risk event.
func Risk(ctx context.Context, symbol, eventType string, fields ...any) {
	event(ctx, slog.LevelWarn, "risk_event", "Risk event", append([]any{
		"type", "RISK",
		"symbol", symbol,
		"event_type", eventType,
	}, fields...))
}

func IsDebugEnabled() bool {
	return detailedLogging
}

func IsTracingEnabled() bool {
	return tracingEnabled
}
