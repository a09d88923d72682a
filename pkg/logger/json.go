package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Entry is one JSON log line. component and run_id are lifted out of the
// attribute bag so log queries can filter on them directly.
type Entry struct {
	Time      string         `json:"time"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Msg       string         `json:"msg"`
	Attrs     map[string]any `json:"attrs,omitempty"`
	Source    string         `json:"source,omitempty"`
}

type jsonHandler struct {
	out       *lockedWriter
	level     slog.Level
	addSource bool
	preset    []slog.Attr
	prefix    string
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) writeLine(line []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.w.Write(append(line, '\n'))
	return err
}

func newJSONHandler(w io.Writer, level slog.Level, addSource bool) *jsonHandler {
	return &jsonHandler{out: &lockedWriter{w: w}, level: level, addSource: addSource}
}

func (h *jsonHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *jsonHandler) Handle(_ context.Context, record slog.Record) error {
	at := record.Time
	if at.IsZero() {
		at = time.Now()
	}

	entry := Entry{
		Time:  at.UTC().Format(time.RFC3339Nano),
		Level: strings.ToLower(record.Level.String()),
		Msg:   record.Message,
	}

	attrs := map[string]any{}
	for _, attr := range h.preset {
		collect(&entry, attrs, attr.Key, attr.Value)
	}
	record.Attrs(func(attr slog.Attr) bool {
		collect(&entry, attrs, h.prefix+attr.Key, attr.Value)
		return true
	})
	if len(attrs) > 0 {
		entry.Attrs = attrs
	}

	if h.addSource && record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		if frame.File != "" {
			entry.Source = fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return h.out.writeLine(line)
}

// collect files one attribute under its fully qualified key.
func collect(entry *Entry, attrs map[string]any, key string, value slog.Value) {
	value = value.Resolve()
	if strings.HasSuffix(key, ".") || key == "" {
		return
	}

	if value.Kind() == slog.KindString {
		switch key {
		case "component":
			entry.Component = value.String()
			return
		case "run_id":
			entry.RunID = value.String()
			return
		}
	}

	attrs[key] = plain(value)
}

func plain(value slog.Value) any {
	switch value.Kind() {
	case slog.KindDuration:
		return value.Duration().String()
	case slog.KindTime:
		return value.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindGroup:
		group := value.Group()
		out := make(map[string]any, len(group))
		for _, item := range group {
			out[item.Key] = plain(item.Value.Resolve())
		}
		return out
	case slog.KindAny:
		if err, ok := value.Any().(error); ok {
			return err.Error()
		}
		return value.Any()
	default:
		return value.Any()
	}
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = make([]slog.Attr, 0, len(h.preset)+len(attrs))
	next.preset = append(next.preset, h.preset...)
	for _, attr := range attrs {
		attr.Key = h.prefix + attr.Key
		next.preset = append(next.preset, attr)
	}
	return &next
}

func (h *jsonHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}
