package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"histopost/pkg/awsutil"
	"histopost/pkg/config"
	"histopost/pkg/failure"
	imagetypes "histopost/pkg/imagegen/types"
	"histopost/pkg/prompt"
)

const (
	contentTypeJSON = "application/json"
	excerptLimit    = 80
)

type invokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client invokes a Stability image model hosted on Bedrock.
type Client struct {
	api          invokeModelAPI
	model        string
	aspectRatio  string
	mode         string
	outputFormat string
}

type request struct {
	Prompt       string `json:"prompt"`
	AspectRatio  string `json:"aspect_ratio"`
	Mode         string `json:"mode"`
	OutputFormat string `json:"output_format"`
}

type response struct {
	Images        []string  `json:"images"`
	FinishReasons []*string `json:"finish_reasons"`
}

// New builds a Bedrock runtime client in the image model's region.
func New(ctx context.Context, cfg config.ImageModelConfig) (*Client, error) {
	awsCfg, err := awsutil.LoadConfig(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}

	return NewWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

func NewWithAPI(api invokeModelAPI, cfg config.ImageModelConfig) *Client {
	return &Client{
		api:          api,
		model:        cfg.Model,
		aspectRatio:  cfg.AspectRatio,
		mode:         cfg.Mode,
		outputFormat: cfg.OutputFormat,
	}
}

// Generate requests a single image and decodes the first one returned.
func (c *Client) Generate(ctx context.Context, imagePrompt string) (imagetypes.Image, error) {
	log := providerLogger().With("model", c.model)

	if strings.TrimSpace(imagePrompt) == "" {
		return imagetypes.Image{}, failure.New(failure.Configuration, "image prompt is required")
	}

	body, err := json.Marshal(request{
		Prompt:       imagePrompt,
		AspectRatio:  c.aspectRatio,
		Mode:         c.mode,
		OutputFormat: c.outputFormat,
	})
	if err != nil {
		return imagetypes.Image{}, fmt.Errorf("encode image request: %w", err)
	}

	startedAt := time.Now()
	log.InfoContext(ctx, "Invoking image model", "prompt", prompt.Excerpt(imagePrompt, excerptLimit))

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.model),
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
		Body:        body,
	})
	if err != nil {
		if code, msg, ok := awsutil.APIError(err); ok {
			log.ErrorContext(ctx, "Bedrock image API error", "code", code, "message", msg)
		} else {
			log.ErrorContext(ctx, "Bedrock image request failed", "error", err)
		}
		return imagetypes.Image{}, awsutil.Classify("invoke image model", err)
	}

	var decoded response
	if out == nil || json.Unmarshal(out.Body, &decoded) != nil {
		log.ErrorContext(ctx, "Failed to parse JSON response from image model")
		return imagetypes.Image{}, failure.New(failure.MalformedResponse, "image model response is not valid JSON")
	}

	if len(decoded.Images) == 0 {
		log.ErrorContext(ctx, "Image model returned no images", "finish_reasons", finishReasons(decoded.FinishReasons))
		return imagetypes.Image{}, failure.New(failure.MalformedResponse, "image model returned no images")
	}

	data, err := imagetypes.DecodeBase64(decoded.Images[0])
	if err != nil {
		log.ErrorContext(ctx, "Failed to decode image payload", "error", err)
		return imagetypes.Image{}, failure.Wrap(failure.MalformedResponse, "image payload", err)
	}

	log.InfoContext(ctx, "Image model invoked", "duration_ms", time.Since(startedAt).Milliseconds(), "bytes", len(data))

	return imagetypes.Image{Data: data, Format: c.outputFormat}, nil
}

func finishReasons(reasons []*string) []string {
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "imagegen.bedrock")
}

var _ imagetypes.Client = (*Client)(nil)
