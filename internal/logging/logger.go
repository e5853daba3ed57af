// Package logging configures structured logging with log/slog.
//
// Load IDs are propagated through context so every log line emitted while a
// table load runs can be correlated with its final result.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type loadIDKey struct{}

// ContextWithLoadID returns a context carrying the load ID for log
// correlation.
func ContextWithLoadID(ctx context.Context, loadID string) context.Context {
	return context.WithValue(ctx, loadIDKey{}, loadID)
}

// FromContext returns a logger enriched with the context's load ID, when
// one is present.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if id, ok := ctx.Value(loadIDKey{}).(string); ok && id != "" {
		logger = logger.With("load_id", id)
	}
	return logger
}

// WithFields returns a context-enriched logger with additional structured
// fields, for multi-step operations that log consistently.
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
