package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	envConfigPath       = "HISTOPOST_CONFIG"
	envSNSTopicARN      = "SNS_TOPIC_ARN"
	envTelegramBotToken = "TELEGRAM_BOT_TOKEN"
	envTelegramChatID   = "TELEGRAM_CHAT_ID"
	envStopSequences    = "HISTOPOST_STOP_SEQUENCES"
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Text      TextModelConfig  `json:"text"`
	Image     ImageModelConfig `json:"image"`
	Providers ProvidersConfig  `json:"providers"`
	Facebook  FacebookConfig   `json:"facebook"`
	Secrets   SecretsConfig    `json:"secrets"`
	Notify    NotifyConfig     `json:"notify"`
	Periods   PeriodsConfig    `json:"periods"`
	Serve     ServeConfig      `json:"serve"`
	Logging   LoggingConfig    `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// TextModelConfig describes the text-generation model and its inference parameters.
type TextModelConfig struct {
	Provider      string   `json:"provider"`
	Model         string   `json:"model"`
	Region        string   `json:"region"`
	Temperature   float64  `json:"temperature"`
	MaxTokens     int      `json:"max_tokens"`
	StopSequences []string `json:"stop_sequences"`
}

// ImageModelConfig describes the image-generation model. Its region is
// independent from the text model region.
type ImageModelConfig struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Region       string `json:"region"`
	AspectRatio  string `json:"aspect_ratio"`
	Mode         string `json:"mode"`
	OutputFormat string `json:"output_format"`
}

// ProvidersConfig stores per-provider connection settings for non-AWS backends.
type ProvidersConfig struct {
	OpenAI OpenAIProviderConfig `json:"openai"`
	Gemini GeminiProviderConfig `json:"gemini"`
}

// OpenAIProviderConfig configures the OpenAI-backed text and image clients.
type OpenAIProviderConfig struct {
	BaseURL               string `json:"base_url"`
	Organization          string `json:"organization"`
	Project               string `json:"project"`
	APIKeyEnv             string `json:"api_key_env"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// GeminiProviderConfig configures the genai-backed text and image clients.
type GeminiProviderConfig struct {
	APIKeyEnv string `json:"api_key_env"`
}

// FacebookConfig configures the Graph API publisher.
type FacebookConfig struct {
	GraphURL          string `json:"graph_url"`
	APIVersion        string `json:"api_version"`
	Published         bool   `json:"published"`
	ImageFileName     string `json:"image_file_name"`
	ImageMIMEType     string `json:"image_mime_type"`
	PublishDelayMS    int    `json:"publish_delay_ms"`
	FeedMaxAttempts   int    `json:"feed_max_attempts"`
	FeedRetryDelayMS  int    `json:"feed_retry_delay_ms"`
	PageIDSecret      string `json:"page_id_secret"`
	AccessTokenSecret string `json:"access_token_secret"`
}

// SecretsConfig selects the secret backend used for page credentials.
type SecretsConfig struct {
	Provider string `json:"provider"`
	Region   string `json:"region"`
}

// NotifyConfig selects and configures the notifier backend.
type NotifyConfig struct {
	Provider       string         `json:"provider"`
	Subject        string         `json:"subject"`
	SuccessMessage string         `json:"success_message"`
	PartialMessage string         `json:"partial_message"`
	FailurePrefix  string         `json:"failure_prefix"`
	SNS            SNSConfig      `json:"sns"`
	Telegram       TelegramConfig `json:"telegram"`
}

// SNSConfig configures the SNS notifier.
type SNSConfig struct {
	TopicARN string `json:"topic_arn"`
	Region   string `json:"region"`
}

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

// PeriodsConfig optionally replaces the built-in historical period list.
type PeriodsConfig struct {
	File string `json:"file"`
}

// ServeConfig configures the HTTP trigger surface and its optional schedule.
type ServeConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	IntervalMinutes int    `json:"interval_minutes"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Text: TextModelConfig{
			Provider:      "bedrock",
			Model:         "amazon.nova-lite-v1:0",
			Region:        "us-east-1",
			Temperature:   0.9,
			MaxTokens:     500,
			StopSequences: []string{},
		},
		Image: ImageModelConfig{
			Provider:     "bedrock",
			Model:        "stability.sd3-5-large-v1:0",
			Region:       "us-west-2",
			AspectRatio:  "16:9",
			Mode:         "text-to-image",
			OutputFormat: "png",
		},
		Facebook: FacebookConfig{
			GraphURL:          "https://graph.facebook.com",
			APIVersion:        "v23.0",
			Published:         true,
			ImageFileName:     "image.png",
			ImageMIMEType:     "image/png",
			PublishDelayMS:    1000,
			FeedMaxAttempts:   1,
			FeedRetryDelayMS:  2000,
			PageIDSecret:      "FACEBOOK_PAGE_ID",
			AccessTokenSecret: "FACEBOOK_PAGE_ACCESS_TOKEN",
		},
		Secrets: SecretsConfig{
			Provider: "env",
			Region:   "us-west-2",
		},
		Notify: NotifyConfig{
			Provider:       "log",
			Subject:        "History post pipeline",
			SuccessMessage: "Facebook post generated and published successfully.",
			PartialMessage: "Image was posted, but the feed post could not be created: ",
			FailurePrefix:  "History post pipeline failed: ",
			SNS:            SNSConfig{Region: "us-west-2"},
		},
		Serve: ServeConfig{
			Host: "0.0.0.0",
			Port: 18790,
		},
	}
}

// LoadConfig resolves the config file, overlays it on Default, applies
// environment overrides, and validates the result.
//
// An explicit path (flag or HISTOPOST_CONFIG) must exist. Without one, a
// missing cwd config file is not an error and defaults are used.
func LoadConfig(explicitPath string) (*Config, error) {
	cfg := Default()

	configPath, err := findConfigPath(explicitPath)
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks ranges and enumerations that would otherwise fail deep
// inside a pipeline run.
func (c *Config) Validate() error {
	if c.Text.Temperature < 0 || c.Text.Temperature > 1 {
		return fmt.Errorf("text.temperature must be within [0,1], got %v", c.Text.Temperature)
	}
	if c.Text.MaxTokens <= 0 {
		return errors.New("text.max_tokens must be greater than zero")
	}
	if strings.TrimSpace(c.Text.Model) == "" {
		return errors.New("text.model is required")
	}
	if !slices.Contains([]string{"bedrock", "openai", "gemini"}, c.Text.Provider) {
		return fmt.Errorf("unsupported text.provider %q", c.Text.Provider)
	}
	if strings.TrimSpace(c.Image.Model) == "" {
		return errors.New("image.model is required")
	}
	if !slices.Contains([]string{"bedrock", "openai", "imagen"}, c.Image.Provider) {
		return fmt.Errorf("unsupported image.provider %q", c.Image.Provider)
	}
	if strings.TrimSpace(c.Facebook.APIVersion) == "" {
		return errors.New("facebook.api_version is required")
	}
	if c.Facebook.PublishDelayMS < 0 {
		return errors.New("facebook.publish_delay_ms must not be negative")
	}
	if c.Facebook.FeedMaxAttempts < 1 {
		return errors.New("facebook.feed_max_attempts must be at least 1")
	}
	if strings.TrimSpace(c.Facebook.PageIDSecret) == "" || strings.TrimSpace(c.Facebook.AccessTokenSecret) == "" {
		return errors.New("facebook.page_id_secret and facebook.access_token_secret are required")
	}
	if !slices.Contains([]string{"env", "awssm"}, c.Secrets.Provider) {
		return fmt.Errorf("unsupported secrets.provider %q", c.Secrets.Provider)
	}
	if !slices.Contains([]string{"log", "sns", "telegram"}, c.Notify.Provider) {
		return fmt.Errorf("unsupported notify.provider %q", c.Notify.Provider)
	}

	return nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if arn := strings.TrimSpace(os.Getenv(envSNSTopicARN)); arn != "" {
		cfg.Notify.SNS.TopicARN = arn
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Notify.Telegram.Token = token
	}

	if rawChatID := strings.TrimSpace(os.Getenv(envTelegramChatID)); rawChatID != "" {
		var chatID int64
		if _, err := fmt.Sscan(rawChatID, &chatID); err == nil {
			cfg.Notify.Telegram.ChatID = chatID
		}
	}

	if rawStops := strings.TrimSpace(os.Getenv(envStopSequences)); rawStops != "" {
		cfg.Text.StopSequences = parseCSV(rawStops)
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is the explicit path, then HISTOPOST_CONFIG, then cwd-local
// fallback paths. An empty result means no file was found.
func findConfigPath(explicitPath string) (string, error) {
	if value := strings.TrimSpace(explicitPath); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("config path does not point to a file: %s", value)
	}

	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
