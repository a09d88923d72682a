// Package logger builds the process slog.Logger: charmbracelet/log text output
// for terminals, one JSON object per line otherwise. Every handler it returns
// masks credentials and stamps the run id carried by the context.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmLog "github.com/charmbracelet/log"

	"histopost/pkg/config"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	envFormat    = "HISTOPOST_LOG_FORMAT"
	envLevel     = "HISTOPOST_LOG_LEVEL"
	envAddSource = "HISTOPOST_LOG_ADD_SOURCE"
)

// settings is LoggingConfig after environment overrides and defaults.
type settings struct {
	format    string
	level     slog.Level
	addSource bool
}

func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	s, err := resolve(cfg)
	if err != nil {
		return nil, err
	}

	var base slog.Handler
	switch s.format {
	case FormatText:
		base = charmLog.NewWithOptions(w, charmLog.Options{
			Level:           toCharmLevel(s.level),
			ReportTimestamp: true,
			ReportCaller:    s.addSource,
			Formatter:       charmLog.TextFormatter,
		})
	default:
		base = newJSONHandler(w, s.level, s.addSource)
	}

	return slog.New(&maskingHandler{next: base}), nil
}

func resolve(cfg config.LoggingConfig) (settings, error) {
	format := firstNonEmpty(os.Getenv(envFormat), cfg.Format, FormatText)
	format = strings.ToLower(format)
	if format != FormatJSON && format != FormatText {
		return settings{}, fmt.Errorf("unsupported log format %q", format)
	}

	levelText := strings.ToLower(firstNonEmpty(os.Getenv(envLevel), cfg.Level, "info"))
	level, ok := levels[levelText]
	if !ok {
		return settings{}, fmt.Errorf("unsupported log level %q", levelText)
	}

	addSource := cfg.AddSource
	if raw := strings.TrimSpace(os.Getenv(envAddSource)); raw != "" {
		addSource = truthy(raw)
	}

	return settings{format: format, level: level, addSource: addSource}, nil
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

func toCharmLevel(level slog.Level) charmLog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmLog.DebugLevel
	case level <= slog.LevelInfo:
		return charmLog.InfoLevel
	case level <= slog.LevelWarn:
		return charmLog.WarnLevel
	default:
		return charmLog.ErrorLevel
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func truthy(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
