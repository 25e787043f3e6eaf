package loggy

import (
	"context"
	"fmt"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	sessionIDKey contextKey = "session_id"
)

// FromContext retrieves the logger from the context, falling back to the global logger
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return globalLogger
	}

	if logger, ok := ctx.Value(loggerKey).(*Logger); ok && logger != nil {
		return logger
	}

	return globalLogger
}

// WithLogger returns a new context with the logger attached
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// GetSessionID retrieves the sync session ID from the context
func GetSessionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}

	return ""
}

// WithSessionID returns a new context carrying the session ID and a logger tagged with it
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)

	if logger := FromContext(ctx); logger != nil {
		ctx = WithLogger(ctx, logger.With("session_id", sessionID))
	}
	return ctx
}

// WithError adds error details to a logger
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	return l.With(
		"error", err.Error(),
		"error_type", fmt.Sprintf("%T", err),
	)
}
