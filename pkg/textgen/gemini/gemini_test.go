package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"google.golang.org/genai"

	"histopost/pkg/config"
	"histopost/pkg/failure"
	texttypes "histopost/pkg/textgen/types"
)

type fakeModels struct {
	model  string
	config *genai.GenerateContentConfig
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = cfg
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func params() texttypes.Params {
	return texttypes.Params{Model: "gemini-2.5-flash", Temperature: 0.9, MaxTokens: 500, StopSequences: []string{"END"}}
}

func TestGenerateSendsParamsAndWrapsText(t *testing.T) {
	fake := &fakeModels{resp: textResponse(`{"generated_post":"x",`, `"image_generation_prompt":"y"}`)}

	reply, err := NewWithModels(fake, params()).Generate(context.Background(), "Write")
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", fake.model)
	require.NotNil(t, fake.config.Temperature)
	assert.InDelta(t, 0.9, *fake.config.Temperature, 1e-6)
	assert.Equal(t, int32(500), fake.config.MaxOutputTokens)
	assert.Equal(t, []string{"END"}, fake.config.StopSequences)
	assert.Equal(t, `{"generated_post":"x","image_generation_prompt":"y"}`, gjson.GetBytes(reply, texttypes.TextPath).String())
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name     string
		fake     *fakeModels
		prompt   string
		category string
	}{
		{name: "empty prompt", fake: &fakeModels{}, prompt: "", category: failure.Configuration},
		{name: "api error", fake: &fakeModels{err: genai.APIError{Code: 403, Status: "PERMISSION_DENIED", Message: "denied"}}, prompt: "p", category: failure.ProviderAPI},
		{name: "transport", fake: &fakeModels{err: errors.New("connection refused")}, prompt: "p", category: failure.Transport},
		{name: "no candidates", fake: &fakeModels{resp: &genai.GenerateContentResponse{}}, prompt: "p", category: failure.MalformedResponse},
		{name: "blocked", fake: &fakeModels{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}}}, prompt: "p", category: failure.MalformedResponse},
		{name: "blank text", fake: &fakeModels{resp: textResponse("  ")}, prompt: "p", category: failure.MalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := NewWithModels(tt.fake, params()).Generate(context.Background(), tt.prompt)
			require.Error(t, err)
			assert.Nil(t, reply)
			assert.Equal(t, tt.category, failure.CategoryOf(err))
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "default-key")
	t.Setenv("CUSTOM_GEMINI_KEY", "")

	assert.Equal(t, "default-key", ResolveAPIKey(config.GeminiProviderConfig{APIKeyEnv: "CUSTOM_GEMINI_KEY"}))

	t.Setenv("CUSTOM_GEMINI_KEY", "custom-key")
	assert.Equal(t, "custom-key", ResolveAPIKey(config.GeminiProviderConfig{APIKeyEnv: "CUSTOM_GEMINI_KEY"}))
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := config.Default()
	cfg.Text.Provider = "gemini"
	cfg.Text.Model = "gemini-2.5-flash"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, failure.Configuration, failure.CategoryOf(err))
}
