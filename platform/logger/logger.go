// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// SenderKey is the context key for the sender identity of the event being handled
	SenderKey contextKey = "sender"
	// MessageIDKey is the context key for the channel message id
	MessageIDKey contextKey = "message_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// Options tweaks where log records go.
type Options struct {
	// File, when set, receives a rotated copy of every record.
	File string
}

// New creates a new logger based on environment
func New(env string) *Logger {
	return NewWithOptions(env, Options{})
}

// NewWithOptions creates a logger that also writes to a rotated file when configured.
func NewWithOptions(env string, opt Options) *Logger {
	var out io.Writer = os.Stdout
	if opt.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opt.File,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	}
	return NewWriter(env, out)
}

// NewWriter creates a logger writing to w.
func NewWriter(env string, w io.Writer) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithContext returns a logger with context values extracted.
// Supports request_id, sender and message_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	attrs := make([]any, 0, 3)
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	if sender, ok := ctx.Value(SenderKey).(string); ok && sender != "" {
		attrs = append(attrs, slog.String("sender", sender))
	}
	if messageID, ok := ctx.Value(MessageIDKey).(string); ok && messageID != "" {
		attrs = append(attrs, slog.String("message_id", messageID))
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{Logger: l.With(attrs...)}
}

// WithSender returns a logger bound to a sender identity
func (l *Logger) WithSender(sender string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("sender", sender)),
	}
}

// InboundEvent logs the arrival and routing decision of a channel event
func (l *Logger) InboundEvent(sender, role, route string) {
	l.Info("inbound_event",
		slog.String("sender", sender),
		slog.String("role", role),
		slog.String("route", route),
	)
}

// Transition logs a session state change
func (l *Logger) Transition(sender, from, to string) {
	l.Debug("session_transition",
		slog.String("sender", sender),
		slog.String("from", from),
		slog.String("to", to),
	)
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

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
