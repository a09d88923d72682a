package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"histopost/pkg/config"
)

func clearLogEnv(t *testing.T) {
	t.Helper()
	t.Setenv(envFormat, "")
	t.Setenv(envLevel, "")
	t.Setenv(envAddSource, "")
}

func jsonLogger(t *testing.T, level string) (*bytes.Buffer, func() []Entry, *slog.Logger) {
	t.Helper()
	clearLogEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: FormatJSON, Level: level}, &out)
	require.NoError(t, err)

	entries := func() []Entry {
		var got []Entry
		for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
			if line == "" {
				continue
			}
			var e Entry
			require.NoError(t, json.Unmarshal([]byte(line), &e), line)
			got = append(got, e)
		}
		return got
	}
	return &out, entries, log
}

func TestJSONEntryLiftsComponentAndRunID(t *testing.T) {
	_, entries, h := jsonLogger(t, "info")

	h.With("component", "publisher", "run_id", "run-1").Info("Photo uploaded", "photo_id", "p-9", "attempt", 1)

	got := entries()
	require.Len(t, got, 1)
	assert.Equal(t, "info", got[0].Level)
	assert.Equal(t, "Photo uploaded", got[0].Msg)
	assert.Equal(t, "publisher", got[0].Component)
	assert.Equal(t, "run-1", got[0].RunID)
	assert.NotEmpty(t, got[0].Time)
	assert.Equal(t, "p-9", got[0].Attrs["photo_id"])
	assert.EqualValues(t, 1, got[0].Attrs["attempt"])
}

func TestMaskingHidesCredentials(t *testing.T) {
	out, entries, h := jsonLogger(t, "info")

	h.With("token", "bot-secret").Info("Posting",
		"access_token", "EAAB-secret",
		"url", "https://graph.facebook.com/v23.0/feed?access_token=EAAB-secret&x=1",
		"error", errors.New(`Post "https://example.test/?key=AIza-secret": dial tcp`),
		"page", "42",
	)

	assert.NotContains(t, out.String(), "secret")
	got := entries()
	require.Len(t, got, 1)
	assert.Equal(t, redacted, got[0].Attrs["access_token"])
	assert.Equal(t, redacted, got[0].Attrs["token"])
	assert.Equal(t, "https://graph.facebook.com/v23.0/feed?access_token=[REDACTED]&x=1", got[0].Attrs["url"])
	assert.Contains(t, got[0].Attrs["error"], "key=[REDACTED]")
	assert.Equal(t, "42", got[0].Attrs["page"])
}

func TestGroupsQualifyKeys(t *testing.T) {
	_, entries, h := jsonLogger(t, "info")

	h.WithGroup("graph").With("phase", "feed").Info("Attempt", "status", 500)

	got := entries()
	require.Len(t, got, 1)
	assert.Equal(t, "feed", got[0].Attrs["graph.phase"])
	assert.EqualValues(t, 500, got[0].Attrs["graph.status"])
}

func TestLevelFiltering(t *testing.T) {
	out, _, h := jsonLogger(t, "error")

	h.Info("Ignored")
	assert.Empty(t, strings.TrimSpace(out.String()))

	h.Error("Kept")
	assert.NotEmpty(t, strings.TrimSpace(out.String()))
}

func TestRunIDFromContext(t *testing.T) {
	_, entries, h := jsonLogger(t, "info")

	ctx := WithRunID(context.Background(), "run-42")
	h.With("component", "publisher").InfoContext(ctx, "Photo uploaded")
	h.InfoContext(ctx, "Explicit", "run_id", "other")
	h.InfoContext(context.Background(), "No run")

	got := entries()
	require.Len(t, got, 3)
	assert.Equal(t, "run-42", got[0].RunID)
	assert.Equal(t, "publisher", got[0].Component)
	assert.Equal(t, "other", got[1].RunID)
	assert.Empty(t, got[2].RunID)
	assert.Equal(t, "run-42", RunID(ctx))
	assert.Empty(t, RunID(context.Background()))
}

func TestEnvironmentOverridesConfig(t *testing.T) {
	clearLogEnv(t)
	t.Setenv(envLevel, "debug")
	t.Setenv(envFormat, "text")

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: FormatJSON, Level: "error"}, &out)
	require.NoError(t, err)

	log.Debug("Debug enabled", "component", "test")
	line := strings.TrimSpace(out.String())
	require.NotEmpty(t, line)
	assert.False(t, strings.HasPrefix(line, "{"), "expected text output, got %q", line)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		want    settings
		wantErr bool
	}{
		{name: "defaults", want: settings{format: FormatText, level: levels["info"]}},
		{name: "json warning", cfg: config.LoggingConfig{Format: "JSON", Level: "warning", AddSource: true}, want: settings{format: FormatJSON, level: levels["warn"], addSource: true}},
		{name: "unknown format", cfg: config.LoggingConfig{Format: "xml"}, wantErr: true},
		{name: "unknown level", cfg: config.LoggingConfig{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearLogEnv(t)

			got, err := resolve(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
