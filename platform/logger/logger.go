// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// IdentityKey is the context key for the sender identity
	IdentityKey contextKey = "identity"
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

// WithContext returns a logger with context values extracted.
// Supports request_id and identity from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	result := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		result = &Logger{Logger: result.With(slog.String("request_id", requestID))}
	}

	if identity, ok := ctx.Value(IdentityKey).(string); ok && identity != "" {
		result = result.WithIdentity(identity)
	}

	return result
}

// WithIdentity returns a logger bound to a redacted sender identity.
func (l *Logger) WithIdentity(identity string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("identity", Redact(identity))),
	}
}

// Redact masks a sender identity, keeping only the last four digits.
// Full identities and free-form message content must never be logged.
func Redact(identity string) string {
	if len(identity) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(identity)-4) + identity[len(identity)-4:]
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

// MessageProcessed logs a handled inbound chat message.
func (l *Logger) MessageProcessed(identity, phase string, latencyMs float64) {
	l.Info("message_processed",
		slog.String("identity", Redact(identity)),
		slog.String("phase", phase),
		slog.Float64("latency_ms", latencyMs),
	)
}

// ExternalCallFailed logs a failed call to an external collaborator
// (classifier, calendar free/busy, event creation, notification target).
func (l *Logger) ExternalCallFailed(service string, err error) {
	l.Warn("external_call_failed",
		slog.String("service", service),
		slog.String("error", err.Error()),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(identity string) {
	l.Warn("rate_limit_exceeded",
		slog.String("identity", Redact(identity)),
	)
}
