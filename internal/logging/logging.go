// Package logging wires a structured slog.Logger whose handler redacts
// known-sensitive attribute keys before a record leaves the process.
package logging

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// sensitiveKeys are attribute names redacted regardless of nesting depth.
// Matching is case-insensitive and substring-based so "api_key",
// "apiKey", and "discord_token" are all caught.
var sensitiveKeys = []string{"token", "api_key", "apikey", "secret", "password", "authorization"}

const redacted = "[REDACTED]"

// sensitiveValue matches "name=value" / "name:value" fragments inside any
// string attribute value; the name and separator are kept, the rest of the
// fragment is replaced with redacted.
var sensitiveValue = regexp.MustCompile(`(token|key|secret|password|authorization)([:=])\S+`)

// New builds the process-wide logger at the given level ("debug", "info",
// "warn", "error"). Output is JSON on stdout, matching the teacher's
// convention of structured logs consumed by a log aggregator rather than
// a human terminal.
func New(level string) *slog.Logger {
	handler := &redactingHandler{
		inner: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)}),
	}
	return slog.New(handler)
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

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// redactingHandler wraps any slog.Handler and scrubs sensitive attribute
// values, including those nested inside slog.Group, before delegating.
type redactingHandler struct {
	inner slog.Handler
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cleaned := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		cleaned[i] = redactAttr(a)
	}
	return &redactingHandler{inner: h.inner.WithAttrs(cleaned)}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{inner: h.inner.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		cleaned := make([]slog.Attr, len(group))
		for i, nested := range group {
			cleaned[i] = redactAttr(nested)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(cleaned...)}
	}
	if a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); sensitiveValue.MatchString(s) {
			return slog.String(a.Key, sensitiveValue.ReplaceAllString(s, "${1}${2}"+redacted))
		}
	}
	return a
}
