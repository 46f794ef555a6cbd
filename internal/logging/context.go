package logging

import (
	"context"
	"log/slog"
	"strings"
)

type ctxKey int

const (
	dispatchIDKey ctxKey = iota
	apiKey
	pluginKey
)

// WithDispatchID returns a context with the dispatch ID set.
func WithDispatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, dispatchIDKey, id)
}

// WithAPI returns a context with the API name set.
func WithAPI(ctx context.Context, api string) context.Context {
	return context.WithValue(ctx, apiKey, api)
}

// WithPlugin returns a context with the plugin name set.
func WithPlugin(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, pluginKey, name)
}

// DispatchID extracts the dispatch ID from the context, or "" if absent.
func DispatchID(ctx context.Context) string {
	v, _ := ctx.Value(dispatchIDKey).(string)
	return v
}

// API extracts the API name from the context, or "" if absent.
func API(ctx context.Context) string {
	v, _ := ctx.Value(apiKey).(string)
	return v
}

// Plugin extracts the plugin name from the context, or "" if absent.
func Plugin(ctx context.Context) string {
	v, _ := ctx.Value(pluginKey).(string)
	return v
}

// LogWith returns a logger enriched with correlation values from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if v := DispatchID(ctx); v != "" {
		logger = logger.With(slog.String("dispatch_id", v))
	}
	if v := API(ctx); v != "" {
		logger = logger.With(slog.String("api", v))
	}
	if v := Plugin(ctx); v != "" {
		logger = logger.With(slog.String("plugin", v))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, injecting correlation values
// from the context into every log record.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with correlation injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := DispatchID(ctx); v != "" {
		r.AddAttrs(slog.String("dispatch_id", v))
	}
	if v := API(ctx); v != "" {
		r.AddAttrs(slog.String("api", v))
	}
	if v := Plugin(ctx); v != "" {
		r.AddAttrs(slog.String("plugin", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}

// ParseLevel maps a config level name to an slog.Level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
