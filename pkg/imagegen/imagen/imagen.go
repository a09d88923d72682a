package imagen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"histopost/pkg/config"
	"histopost/pkg/failure"
	imagetypes "histopost/pkg/imagegen/types"
	"histopost/pkg/prompt"
	"histopost/pkg/textgen/gemini"
)

const excerptLimit = 80

type imageGenerator interface {
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// Client generates images with an Imagen model through the genai SDK.
type Client struct {
	models       imageGenerator
	model        string
	aspectRatio  string
	outputFormat string
}

func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	apiKey := gemini.ResolveAPIKey(cfg.Providers.Gemini)
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

	return NewWithModels(client.Models, cfg.Image), nil
}

func NewWithModels(models imageGenerator, cfg config.ImageModelConfig) *Client {
	return &Client{
		models:       models,
		model:        cfg.Model,
		aspectRatio:  cfg.AspectRatio,
		outputFormat: cfg.OutputFormat,
	}
}

func (c *Client) Generate(ctx context.Context, imagePrompt string) (imagetypes.Image, error) {
	log := providerLogger().With("model", c.model)

	if strings.TrimSpace(imagePrompt) == "" {
		return imagetypes.Image{}, failure.New(failure.Configuration, "image prompt is required")
	}

	genConfig := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    c.aspectRatio,
		OutputMIMEType: "image/" + c.outputFormat,
	}

	startedAt := time.Now()
	log.InfoContext(ctx, "Invoking image model", "prompt", prompt.Excerpt(imagePrompt, excerptLimit))

	resp, err := c.models.GenerateImages(ctx, c.model, imagePrompt, genConfig)
	if err != nil {
		log.ErrorContext(ctx, "Imagen request failed", "error", err)
		return imagetypes.Image{}, gemini.Classify("generate image", err)
	}

	if resp == nil || len(resp.GeneratedImages) == 0 {
		log.ErrorContext(ctx, "Image model returned no images")
		return imagetypes.Image{}, failure.New(failure.MalformedResponse, "image model returned no images")
	}

	generated := resp.GeneratedImages[0]
	if generated == nil || generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		reason := ""
		if generated != nil {
			reason = generated.RAIFilteredReason
		}
		log.ErrorContext(ctx, "Image model returned an empty image", "filtered_reason", reason)
		return imagetypes.Image{}, failure.New(failure.MalformedResponse, "image model returned an empty image")
	}

	log.InfoContext(ctx, "Image model invoked", "duration_ms", time.Since(startedAt).Milliseconds(), "bytes", len(generated.Image.ImageBytes))

	return imagetypes.Image{Data: generated.Image.ImageBytes, Format: c.outputFormat}, nil
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "imagegen.imagen")
}

var _ imagetypes.Client = (*Client)(nil)
