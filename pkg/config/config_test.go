package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func unsetConfigEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{envConfigPath, envSNSTopicARN, envTelegramBotToken, envTelegramChatID, envStopSequences} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	unsetConfigEnv(t)

	path := writeConfig(t, `{
	  "text": {"provider": "openai", "model": "openai/gpt-5.2", "temperature": 0.2},
	  "facebook": {"api_version": "v24.0", "publish_delay_ms": 250},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`)
	t.Setenv(envConfigPath, path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Text.Provider)
	assert.Equal(t, 0.2, cfg.Text.Temperature)
	assert.Equal(t, 500, cfg.Text.MaxTokens, "unset fields keep defaults")
	assert.Equal(t, "v24.0", cfg.Facebook.APIVersion)
	assert.Equal(t, 250, cfg.Facebook.PublishDelayMS)
	assert.Equal(t, "image/png", cfg.Facebook.ImageMIMEType)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Logging.AddSource)
}

func TestLoadConfigExplicitPathWins(t *testing.T) {
	unsetConfigEnv(t)

	envPath := writeConfig(t, `{"facebook": {"api_version": "v1.0"}}`)
	flagPath := writeConfig(t, `{"facebook": {"api_version": "v2.0"}}`)
	t.Setenv(envConfigPath, envPath)

	cfg, err := LoadConfig(flagPath)
	require.NoError(t, err)
	assert.Equal(t, "v2.0", cfg.Facebook.APIVersion)
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	unsetConfigEnv(t)
	t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(""); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestLoadConfigWithoutFileUsesDefaults(t *testing.T) {
	unsetConfigEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	unsetConfigEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv(envSNSTopicARN, "arn:aws:sns:us-west-2:123:topic")
	t.Setenv(envTelegramBotToken, "bot-token")
	t.Setenv(envTelegramChatID, "-100123")
	t.Setenv(envStopSequences, " END ,, STOP ")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "arn:aws:sns:us-west-2:123:topic", cfg.Notify.SNS.TopicARN)
	assert.Equal(t, "bot-token", cfg.Notify.Telegram.Token)
	assert.Equal(t, int64(-100123), cfg.Notify.Telegram.ChatID)
	assert.Equal(t, []string{"END", "STOP"}, cfg.Text.StopSequences)
}

func TestLoadConfigRejectsMalformedJSON(t *testing.T) {
	unsetConfigEnv(t)

	_, err := LoadConfig(writeConfig(t, `{"text": `))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "temperature above one", mutate: func(c *Config) { c.Text.Temperature = 1.5 }},
		{name: "negative temperature", mutate: func(c *Config) { c.Text.Temperature = -0.1 }},
		{name: "zero max tokens", mutate: func(c *Config) { c.Text.MaxTokens = 0 }},
		{name: "unknown text provider", mutate: func(c *Config) { c.Text.Provider = "mystery" }},
		{name: "unknown image provider", mutate: func(c *Config) { c.Image.Provider = "mystery" }},
		{name: "missing api version", mutate: func(c *Config) { c.Facebook.APIVersion = " " }},
		{name: "negative delay", mutate: func(c *Config) { c.Facebook.PublishDelayMS = -1 }},
		{name: "zero feed attempts", mutate: func(c *Config) { c.Facebook.FeedMaxAttempts = 0 }},
		{name: "missing secret name", mutate: func(c *Config) { c.Facebook.PageIDSecret = "" }},
		{name: "unknown secrets provider", mutate: func(c *Config) { c.Secrets.Provider = "vault" }},
		{name: "unknown notifier", mutate: func(c *Config) { c.Notify.Provider = "pager" }},
	}

	require.NoError(t, Default().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() = nil, want error")
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseCSV(" a ,, b ,"))
	assert.Empty(t, parseCSV(" , "))
}
