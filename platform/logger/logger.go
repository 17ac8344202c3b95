// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// AccountIDKey is the context key for the account ID
	AccountIDKey contextKey = "account_id"
	// TraceIDKey is the context key for trace ID
	TraceIDKey contextKey = "trace_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops every record. Used by tests and tools
// that run without an output sink.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithContext returns a logger with context values extracted.
// Supports request_id, account_id, and trace_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if accountID, ok := ctx.Value(AccountIDKey).(string); ok && accountID != "" {
		newLogger = newLogger.WithAccountID(accountID)
	}

	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("trace_id", traceID)),
		}
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// WithAccountID returns a logger with account ID
func (l *Logger) WithAccountID(accountID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("account_id", accountID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events. key is the client IP for the
// HTTP limiter and the account ID for the assistant limiter.
func (l *Logger) RateLimitExceeded(key, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("key", key),
		slog.String("path", path),
	)
}

// SnapshotBuilt logs a completed snapshot aggregation.
func (l *Logger) SnapshotBuilt(accountID, cacheKey string, duration time.Duration, recommendations int) {
	l.Info("snapshot_built",
		slog.String("account_id", accountID),
		slog.String("cache_key", cacheKey),
		slog.Int64("duration_ms", duration.Milliseconds()),
		slog.Int("recommendations", recommendations),
	)
}

// ToolExecuted logs the outcome of a single assistant tool call.
func (l *Logger) ToolExecuted(accountID, tool string, success bool, message string) {
	if success {
		l.Info("tool_executed",
			slog.String("account_id", accountID),
			slog.String("tool", tool),
			slog.Bool("success", success),
		)
		return
	}
	l.Warn("tool_executed",
		slog.String("account_id", accountID),
		slog.String("tool", tool),
		slog.Bool("success", success),
		slog.String("message", message),
	)
}

// ModelFallback logs a conversational turn that degraded to the static reply.
func (l *Logger) ModelFallback(accountID, state string, err error) {
	attrs := []any{
		slog.String("account_id", accountID),
		slog.String("state", state),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.Warn("assistant_fallback", attrs...)
}
