package fantasy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	core "charm.land/fantasy"
	provideropenai "charm.land/fantasy/providers/openai"

	"histopost/pkg/config"
	"histopost/pkg/failure"
	"histopost/pkg/prompt"
	texttypes "histopost/pkg/textgen/types"
)

const excerptLimit = 80

type languageModelProvider interface {
	LanguageModel(ctx context.Context, modelID string) (core.LanguageModel, error)
}

// Client generates post text through an OpenAI model driven by a fantasy agent.
type Client struct {
	provider        languageModelProvider
	requestTimeout  time.Duration
	modelID         string
	maxOutputTokens *int64
	temperature     *float64
	generate        func(context.Context, core.LanguageModel, core.AgentCall) (*core.AgentResult, error)
}

func New(cfg *config.Config) (*Client, error) {
	apiKey := resolveAPIKey(cfg.Providers.OpenAI)
	if apiKey == "" {
		return nil, failure.New(failure.Configuration, "providers.openai.api_key_env is required or OPENAI_API_KEY must be set")
	}

	modelID, err := normalizeModel(cfg.Text.Model)
	if err != nil {
		return nil, failure.Wrap(failure.Configuration, "text model", err)
	}

	providerOptions := []provideropenai.Option{provideropenai.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.Providers.OpenAI.BaseURL); baseURL != "" {
		providerOptions = append(providerOptions, provideropenai.WithBaseURL(baseURL))
	}
	if organization := strings.TrimSpace(cfg.Providers.OpenAI.Organization); organization != "" {
		providerOptions = append(providerOptions, provideropenai.WithOrganization(organization))
	}
	if project := strings.TrimSpace(cfg.Providers.OpenAI.Project); project != "" {
		providerOptions = append(providerOptions, provideropenai.WithProject(project))
	}

	fantasyProvider, err := provideropenai.New(providerOptions...)
	if err != nil {
		return nil, fmt.Errorf("initialize fantasy openai provider: %w", err)
	}

	client := newClient(fantasyProvider, modelID, cfg.Text)
	client.requestTimeout = time.Duration(cfg.Providers.OpenAI.RequestTimeoutSeconds) * time.Second
	if len(cfg.Text.StopSequences) > 0 {
		providerLogger().Warn("Stop sequences are not forwarded by the openai text backend", "count", len(cfg.Text.StopSequences))
	}

	return client, nil
}

func newClient(provider languageModelProvider, modelID string, text config.TextModelConfig) *Client {
	client := &Client{
		provider: provider,
		modelID:  modelID,
		generate: generateWithFantasyAgent,
	}

	if text.MaxTokens > 0 {
		maxTokens := int64(text.MaxTokens)
		client.maxOutputTokens = &maxTokens
	}
	// Zero is a valid temperature here, so it is always sent.
	temp := text.Temperature
	client.temperature = &temp

	return client
}

// Generate runs one agent turn and wraps the text in the canonical reply shape.
func (c *Client) Generate(ctx context.Context, userPrompt string) (texttypes.Reply, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := providerLogger().With("model", c.modelID)

	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return nil, failure.New(failure.Configuration, "prompt is required")
	}

	languageModel, err := c.provider.LanguageModel(ctx, c.modelID)
	if err != nil {
		return nil, failure.Wrap(failure.Configuration, "resolve language model", err)
	}

	call := core.AgentCall{
		Prompt:          userPrompt,
		MaxOutputTokens: c.maxOutputTokens,
		Temperature:     c.temperature,
	}

	startedAt := time.Now()
	log.InfoContext(ctx, "Invoking text model", "prompt", prompt.Excerpt(userPrompt, excerptLimit))

	generate := c.generate
	if generate == nil {
		generate = generateWithFantasyAgent
	}

	result, err := generate(ctx, languageModel, call)
	if err != nil {
		log.ErrorContext(ctx, "Text model request failed", "error", err, "duration_ms", time.Since(startedAt).Milliseconds())
		return nil, classify(err)
	}

	text := extractText(result.Response.Content)
	if text == "" {
		log.ErrorContext(ctx, "Text model returned no text", "duration_ms", time.Since(startedAt).Milliseconds())
		return nil, failure.New(failure.MalformedResponse, "text model returned no text")
	}

	log.InfoContext(ctx, "Text model invoked",
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"output_tokens", result.TotalUsage.OutputTokens,
	)

	reply, err := texttypes.Envelope(text)
	if err != nil {
		return nil, failure.Wrap(failure.MalformedResponse, "wrap text model reply", err)
	}
	return reply, nil
}

// classify treats anything that is not a context or network error as a
// rejection by the provider.
func classify(err error) error {
	if failure.CategoryOf(err) == failure.Transport {
		return failure.Wrap(failure.Transport, "generate text", err)
	}
	return failure.Wrap(failure.ProviderAPI, "generate text", err)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}

func resolveAPIKey(cfg config.OpenAIProviderConfig) string {
	if apiKeyEnv := strings.TrimSpace(cfg.APIKeyEnv); apiKeyEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv)); apiKey != "" {
			return apiKey
		}
	}

	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}

func normalizeModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("model is required")
	}

	providerID, modelID, found := strings.Cut(model, "/")
	if !found {
		return model, nil
	}

	providerID = strings.TrimSpace(providerID)
	modelID = strings.TrimSpace(modelID)
	if providerID == "" || modelID == "" {
		return "", errors.New("model is invalid")
	}
	if providerID != "openai" {
		return "", fmt.Errorf("model provider %q is not supported by fantasy openai provider", providerID)
	}

	return modelID, nil
}

func extractText(content core.ResponseContent) string {
	lines := make([]string, 0)
	for _, part := range content {
		if part.GetType() != core.ContentTypeText {
			continue
		}

		textPart, ok := core.AsContentType[core.TextContent](part)
		if !ok {
			continue
		}

		line := strings.TrimSpace(textPart.Text)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func generateWithFantasyAgent(ctx context.Context, model core.LanguageModel, call core.AgentCall) (*core.AgentResult, error) {
	return core.NewAgent(model).Generate(ctx, call)
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "textgen.fantasy")
}

var _ texttypes.Client = (*Client)(nil)
