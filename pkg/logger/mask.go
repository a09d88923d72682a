package logger

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// secretKeys name attributes that are dropped to the placeholder wholesale.
var secretKeys = map[string]bool{
	"access_token": true,
	"token":        true,
	"api_key":      true,
	"secret":       true,
	"secret_value": true,
}

// tokenInText matches credentials embedded in query strings or form bodies,
// which is how Graph API tokens travel.
var tokenInText = regexp.MustCompile(`(?i)(access_token|api_key|key)=[^&\s"']+`)

type runIDKey struct{}

// WithRunID returns a context whose log records carry run_id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run id stored by WithRunID, if any.
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// maskingHandler rewrites records before they reach the output handler.
type maskingHandler struct {
	next slog.Handler
}

func (h *maskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *maskingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, scrubText(record.Message), record.PC)

	stamped := false
	record.Attrs(func(attr slog.Attr) bool {
		stamped = stamped || attr.Key == "run_id"
		out.AddAttrs(mask(attr))
		return true
	})
	if id := RunID(ctx); id != "" && !stamped {
		out.AddAttrs(slog.String("run_id", id))
	}

	return h.next.Handle(ctx, out)
}

func (h *maskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		masked[i] = mask(attr)
	}
	return &maskingHandler{next: h.next.WithAttrs(masked)}
}

func (h *maskingHandler) WithGroup(name string) slog.Handler {
	return &maskingHandler{next: h.next.WithGroup(name)}
}

func mask(attr slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(attr.Key)] {
		return slog.String(attr.Key, redacted)
	}

	value := attr.Value.Resolve()
	switch value.Kind() {
	case slog.KindString:
		return slog.String(attr.Key, scrubText(value.String()))
	case slog.KindGroup:
		group := value.Group()
		masked := make([]any, len(group))
		for i, item := range group {
			masked[i] = mask(item)
		}
		return slog.Group(attr.Key, masked...)
	case slog.KindAny:
		if err, ok := value.Any().(error); ok {
			return slog.String(attr.Key, scrubText(err.Error()))
		}
	}

	return slog.Attr{Key: attr.Key, Value: value}
}

func scrubText(s string) string {
	if !strings.Contains(s, "=") {
		return s
	}
	return tokenInText.ReplaceAllStringFunc(s, func(match string) string {
		name, _, _ := strings.Cut(match, "=")
		return name + "=" + redacted
	})
}
