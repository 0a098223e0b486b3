// Package ctxlog carries a slog.Logger through context.Context.
package ctxlog

import (
	"context"
	"log/slog"
)

// key is an unexported type to prevent collisions with context keys from other packages.
type key struct{}

// loggerKey is the key for the slog.Logger in a context.Context.
var loggerKey = key{}

// discard is returned when no logger was attached. Library code calls
// FromContext on contexts supplied by callers, so a missing logger cannot be fatal.
var discard = slog.New(slog.DiscardHandler)

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the slog.Logger from a context, or a logger that
// discards everything if none is attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := lookup(ctx); ok {
		return logger
	}
	return discard
}

// Ensure attaches fallback to ctx unless the context already carries a logger.
func Ensure(ctx context.Context, fallback *slog.Logger) context.Context {
	if _, ok := lookup(ctx); ok || fallback == nil {
		return ctx
	}
	return WithLogger(ctx, fallback)
}

func lookup(ctx context.Context) (*slog.Logger, bool) {
	if ctx == nil {
		return nil, false
	}
	logger, ok := ctx.Value(loggerKey).(*slog.Logger)
	return logger, ok && logger != nil
}
