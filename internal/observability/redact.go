package observability

import (
	"context"
	"log/slog"
	"strings"
)

// redactedValue replaces sensitive attribute values.
const redactedValue = "[REDACTED]"

// sensitiveKeyPatterns mark attribute keys whose string values are never logged.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"credential",
}

// IsSensitiveKey reports whether an attribute key suggests secret content.
// Endpoint keys such as token_url are not sensitive.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	if strings.HasSuffix(keyLower, "_url") {
		return false
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// redact replaces non-empty string values of sensitive keys and recurses into groups.
func redact(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		if a.Value.String() != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		redacted := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			redacted[i] = redact(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	case slog.KindLogValuer:
		return redact(slog.Attr{Key: a.Key, Value: a.Value.Resolve()})
	}
	return a
}

// replaceAttr adapts redact to slog.HandlerOptions.ReplaceAttr.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	return redact(a)
}

// redactingHandler applies redact to handlers that have no ReplaceAttr hook.
type redactingHandler struct {
	next slog.Handler
}

// Compile-time check to ensure redactingHandler implements slog.Handler
var _ slog.Handler = (*redactingHandler)(nil)

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	redacted := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(redact(a))
		return true
	})
	return h.next.Handle(ctx, redacted)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redact(a)
	}
	return &redactingHandler{next: h.next.WithAttrs(redacted)}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name)}
}
