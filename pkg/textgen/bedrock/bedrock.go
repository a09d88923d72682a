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
	"histopost/pkg/prompt"
	texttypes "histopost/pkg/textgen/types"
)

const (
	contentTypeJSON = "application/json"
	excerptLimit    = 80
)

type invokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client invokes a Bedrock messages-style text model (Amazon Nova wire format).
type Client struct {
	api    invokeModelAPI
	params texttypes.Params
}

type request struct {
	Messages        []message       `json:"messages"`
	InferenceConfig inferenceConfig `json:"inferenceConfig"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Text string `json:"text"`
}

type inferenceConfig struct {
	Temperature   float64  `json:"temperature"`
	MaxTokens     int      `json:"maxTokens"`
	StopSequences []string `json:"stopSequences"`
}

// New builds a Bedrock runtime client in the text model's region.
func New(ctx context.Context, cfg config.TextModelConfig) (*Client, error) {
	awsCfg, err := awsutil.LoadConfig(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}

	return NewWithAPI(bedrockruntime.NewFromConfig(awsCfg), texttypes.Params{
		Model:         cfg.Model,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		StopSequences: cfg.StopSequences,
	}), nil
}

// NewWithAPI wires an existing InvokeModel implementation.
func NewWithAPI(api invokeModelAPI, params texttypes.Params) *Client {
	return &Client{api: api, params: params}
}

// Generate sends prompt as a single user turn. There is no retry.
func (c *Client) Generate(ctx context.Context, userPrompt string) (texttypes.Reply, error) {
	log := providerLogger().With("model", c.params.Model)

	if strings.TrimSpace(userPrompt) == "" {
		return nil, failure.New(failure.Configuration, "prompt is required")
	}

	body, err := c.encodeRequest(userPrompt)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()
	log.InfoContext(ctx, "Invoking text model", "prompt", prompt.Excerpt(userPrompt, excerptLimit))

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.params.Model),
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
		Body:        body,
	})
	if err != nil {
		if code, msg, ok := awsutil.APIError(err); ok {
			log.ErrorContext(ctx, "Bedrock API error", "code", code, "message", msg, "duration_ms", time.Since(startedAt).Milliseconds())
		} else {
			log.ErrorContext(ctx, "Bedrock request failed", "error", err, "duration_ms", time.Since(startedAt).Milliseconds())
		}
		return nil, awsutil.Classify("invoke text model", err)
	}
	if out == nil || !json.Valid(out.Body) {
		log.ErrorContext(ctx, "Failed to parse JSON response from Bedrock", "duration_ms", time.Since(startedAt).Milliseconds())
		return nil, failure.New(failure.MalformedResponse, "text model response is not valid JSON")
	}

	log.InfoContext(ctx, "Text model invoked", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(out.Body))

	return texttypes.Reply(out.Body), nil
}

func (c *Client) encodeRequest(userPrompt string) ([]byte, error) {
	stops := c.params.StopSequences
	if stops == nil {
		stops = []string{}
	}

	body, err := json.Marshal(request{
		Messages: []message{{
			Role:    "user",
			Content: []contentPart{{Text: userPrompt}},
		}},
		InferenceConfig: inferenceConfig{
			Temperature:   c.params.Temperature,
			MaxTokens:     c.params.MaxTokens,
			StopSequences: stops,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode text model request: %w", err)
	}

	return body, nil
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "textgen.bedrock")
}

var _ texttypes.Client = (*Client)(nil)
