package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"histopost/pkg/config"
	"histopost/pkg/failure"
	"histopost/pkg/prompt"
	texttypes "histopost/pkg/textgen/types"
)

const (
	excerptLimit     = 80
	defaultAPIKeyEnv = "GEMINI_API_KEY"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client generates post text with a Gemini model.
type Client struct {
	models contentGenerator
	params texttypes.Params
}

func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	apiKey := ResolveAPIKey(cfg.Providers.Gemini)
	if apiKey == "" {
		return nil, failure.New(failure.Configuration, "providers.gemini.api_key_env is required or GEMINI_API_KEY must be set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return NewWithModels(client.Models, texttypes.Params{
		Model:         cfg.Text.Model,
		Temperature:   cfg.Text.Temperature,
		MaxTokens:     cfg.Text.MaxTokens,
		StopSequences: cfg.Text.StopSequences,
	}), nil
}

func NewWithModels(models contentGenerator, params texttypes.Params) *Client {
	return &Client{models: models, params: params}
}

// Generate sends prompt as a single text content and wraps the answer in the
// canonical reply shape.
func (c *Client) Generate(ctx context.Context, userPrompt string) (texttypes.Reply, error) {
	log := providerLogger().With("model", c.params.Model)

	if strings.TrimSpace(userPrompt) == "" {
		return nil, failure.New(failure.Configuration, "prompt is required")
	}

	temperature := float32(c.params.Temperature)
	genConfig := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(c.params.MaxTokens),
		StopSequences:   c.params.StopSequences,
	}

	startedAt := time.Now()
	log.InfoContext(ctx, "Invoking text model", "prompt", prompt.Excerpt(userPrompt, excerptLimit))

	resp, err := c.models.GenerateContent(ctx, c.params.Model, genai.Text(userPrompt), genConfig)
	if err != nil {
		log.ErrorContext(ctx, "Gemini request failed", "error", err, "duration_ms", time.Since(startedAt).Milliseconds())
		return nil, Classify("generate text", err)
	}

	text, err := responseText(resp)
	if err != nil {
		log.ErrorContext(ctx, "Gemini returned no usable text", "error", err, "duration_ms", time.Since(startedAt).Milliseconds())
		return nil, failure.Wrap(failure.MalformedResponse, "generate text", err)
	}

	log.InfoContext(ctx, "Text model invoked", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(text))

	reply, err := texttypes.Envelope(text)
	if err != nil {
		return nil, failure.Wrap(failure.MalformedResponse, "wrap text model reply", err)
	}
	return reply, nil
}

// Classify maps a genai error onto a failure category.
func Classify(detail string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return failure.Wrap(failure.ProviderAPI, fmt.Sprintf("%s: %d %s - %s", detail, apiErr.Code, apiErr.Status, apiErr.Message), err)
	}
	return failure.Wrap(failure.Transport, detail, err)
}

// ResolveAPIKey prefers the configured env var and falls back to GEMINI_API_KEY.
func ResolveAPIKey(cfg config.GeminiProviderConfig) string {
	if apiKeyEnv := strings.TrimSpace(cfg.APIKeyEnv); apiKeyEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv)); apiKey != "" {
			return apiKey
		}
	}

	return strings.TrimSpace(os.Getenv(defaultAPIKeyEnv))
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no candidates returned")
	}

	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", fmt.Errorf("candidate has no content (finish reason %q)", cand.FinishReason)
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", errors.New("candidate has no text")
	}
	return sb.String(), nil
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "textgen.gemini")
}

var _ texttypes.Client = (*Client)(nil)
