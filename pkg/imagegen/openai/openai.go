package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"histopost/pkg/config"
	"histopost/pkg/failure"
	imagetypes "histopost/pkg/imagegen/types"
	"histopost/pkg/prompt"
)

const excerptLimit = 80

// Client generates images with the OpenAI Images API.
type Client struct {
	client       osdk.Client
	model        string
	aspectRatio  string
	outputFormat string
}

func New(cfg *config.Config) (*Client, error) {
	providerCfg := cfg.Providers.OpenAI
	apiKey := resolveAPIKey(providerCfg)
	if apiKey == "" {
		return nil, failure.New(failure.Configuration, "providers.openai.api_key_env is required or OPENAI_API_KEY must be set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(providerCfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if organization := strings.TrimSpace(providerCfg.Organization); organization != "" {
		opts = append(opts, option.WithOrganization(organization))
	}
	if project := strings.TrimSpace(providerCfg.Project); project != "" {
		opts = append(opts, option.WithProject(project))
	}
	if timeout := time.Duration(providerCfg.RequestTimeoutSeconds) * time.Second; timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	// One attempt only; the SDK retries by default.
	opts = append(opts, option.WithMaxRetries(0))

	return &Client{
		client:       osdk.NewClient(opts...),
		model:        strings.TrimSpace(cfg.Image.Model),
		aspectRatio:  cfg.Image.AspectRatio,
		outputFormat: cfg.Image.OutputFormat,
	}, nil
}

// Generate requests one image as base64 JSON and decodes it.
func (c *Client) Generate(ctx context.Context, imagePrompt string) (imagetypes.Image, error) {
	log := providerLogger().With("model", c.model)

	if strings.TrimSpace(imagePrompt) == "" {
		return imagetypes.Image{}, failure.New(failure.Configuration, "image prompt is required")
	}

	params := osdk.ImageGenerateParams{
		Prompt: imagePrompt,
		Model:  osdk.ImageModel(c.model),
		N:      osdk.Int(1),
		Size:   osdk.ImageGenerateParamsSize(sizeFor(c.model, c.aspectRatio)),
	}
	if isDallE(c.model) {
		params.ResponseFormat = osdk.ImageGenerateParamsResponseFormatB64JSON
	} else if c.outputFormat != "" {
		params.OutputFormat = osdk.ImageGenerateParamsOutputFormat(c.outputFormat)
	}

	startedAt := time.Now()
	log.InfoContext(ctx, "Invoking image model", "prompt", prompt.Excerpt(imagePrompt, excerptLimit), "size", params.Size)

	resp, err := c.client.Images.Generate(ctx, params)
	if err != nil {
		var apiErr *osdk.Error
		if errors.As(err, &apiErr) {
			log.ErrorContext(ctx, "OpenAI image API error", "status", apiErr.StatusCode, "error", err)
			return imagetypes.Image{}, failure.Wrap(failure.ProviderAPI, fmt.Sprintf("generate image: status %d", apiErr.StatusCode), err)
		}
		log.ErrorContext(ctx, "OpenAI image request failed", "error", err)
		return imagetypes.Image{}, failure.Wrap(failure.Transport, "generate image", err)
	}

	if resp == nil || len(resp.Data) == 0 {
		log.ErrorContext(ctx, "Image model returned no images")
		return imagetypes.Image{}, failure.New(failure.MalformedResponse, "image model returned no images")
	}

	data, err := imagetypes.DecodeBase64(resp.Data[0].B64JSON)
	if err != nil {
		log.ErrorContext(ctx, "Failed to decode image payload", "error", err)
		return imagetypes.Image{}, failure.Wrap(failure.MalformedResponse, "image payload", err)
	}

	log.InfoContext(ctx, "Image model invoked", "duration_ms", time.Since(startedAt).Milliseconds(), "bytes", len(data))

	format := c.outputFormat
	if format == "" || isDallE(c.model) {
		format = "png"
	}
	return imagetypes.Image{Data: data, Format: format}, nil
}

func isDallE(model string) bool {
	return strings.HasPrefix(model, "dall-e")
}

// sizeFor maps an aspect ratio onto the nearest size the model accepts.
func sizeFor(model string, aspectRatio string) string {
	landscape, portrait := "1536x1024", "1024x1536"
	if isDallE(model) {
		landscape, portrait = "1792x1024", "1024x1792"
	}

	switch aspectRatio {
	case "16:9", "21:9", "3:2", "5:4":
		return landscape
	case "9:16", "9:21", "2:3", "4:5":
		return portrait
	default:
		return "1024x1024"
	}
}

func resolveAPIKey(cfg config.OpenAIProviderConfig) string {
	if apiKeyEnv := strings.TrimSpace(cfg.APIKeyEnv); apiKeyEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv)); apiKey != "" {
			return apiKey
		}
	}

	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "imagegen.openai")
}

var _ imagetypes.Client = (*Client)(nil)
