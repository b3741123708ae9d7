package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Logger is the structured logging interface used across the service
type Logger interface {
	Debug(ctx context.Context, message string, fields ...map[string]interface{})
	Info(ctx context.Context, message string, fields ...map[string]interface{})
	Warn(ctx context.Context, message string, fields ...map[string]interface{})
	Error(ctx context.Context, message string, err error, fields ...map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// SlogLogger implements Logger on top of log/slog with a JSON handler
type SlogLogger struct {
	logger *slog.Logger
	fields map[string]interface{}
}

// NewLogger creates a logger at the given level
func NewLogger(level string) (Logger, error) {
	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slogLevel,
	})

	return &SlogLogger{
		logger: slog.New(handler),
		fields: make(map[string]interface{}),
	}, nil
}

// NewServiceLogger creates a logger pre-tagged with service identity
func NewServiceLogger(serviceName, serviceVersion, logLevel string) (Logger, error) {
	logger, err := NewLogger(logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger.With(map[string]interface{}{
		"service":         serviceName,
		"service_version": serviceVersion,
	}), nil
}

func (l *SlogLogger) Debug(ctx context.Context, message string, fields ...map[string]interface{}) {
	l.log(ctx, slog.LevelDebug, message, nil, fields...)
}

func (l *SlogLogger) Info(ctx context.Context, message string, fields ...map[string]interface{}) {
	l.log(ctx, slog.LevelInfo, message, nil, fields...)
}

func (l *SlogLogger) Warn(ctx context.Context, message string, fields ...map[string]interface{}) {
	l.log(ctx, slog.LevelWarn, message, nil, fields...)
}

func (l *SlogLogger) Error(ctx context.Context, message string, err error, fields ...map[string]interface{}) {
	l.log(ctx, slog.LevelError, message, err, fields...)
}

// With returns a logger that carries the given fields on every record
func (l *SlogLogger) With(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &SlogLogger{logger: l.logger, fields: merged}
}

func (l *SlogLogger) log(ctx context.Context, level slog.Level, message string, err error, fields ...map[string]interface{}) {
	var attrs []slog.Attr

	for k, v := range l.fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	for _, fieldMap := range fields {
		for k, v := range fieldMap {
			attrs = append(attrs, slog.Any(k, v))
		}
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	if traceID := traceIDFromContext(ctx); traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}

	if ctx == nil {
		ctx = context.Background()
	}
	l.logger.LogAttrs(ctx, level, message, attrs...)
}

func traceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// NoOpLogger discards everything; used in tests
type NoOpLogger struct{}

// NewNoOpLogger creates a no-op logger
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Debug(ctx context.Context, message string, fields ...map[string]interface{}) {}
func (n *NoOpLogger) Info(ctx context.Context, message string, fields ...map[string]interface{})  {}
func (n *NoOpLogger) Warn(ctx context.Context, message string, fields ...map[string]interface{})  {}
func (n *NoOpLogger) Error(ctx context.Context, message string, err error, fields ...map[string]interface{}) {
}
func (n *NoOpLogger) With(fields map[string]interface{}) Logger { return n }
