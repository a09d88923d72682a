package bedrock

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"histopost/pkg/config"
	"histopost/pkg/failure"
)

type fakeInvoker struct {
	calls int
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.calls++
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func imageConfig() config.ImageModelConfig {
	return config.Default().Image
}

func TestGenerateDecodesFirstImage(t *testing.T) {
	first := base64.StdEncoding.EncodeToString([]byte("first-png"))
	second := base64.StdEncoding.EncodeToString([]byte("second-png"))
	fake := &fakeInvoker{body: `{"seeds":[1,2],"finish_reasons":[null,null],"images":["` + first + `","` + second + `"]}`}

	img, err := NewWithAPI(fake, imageConfig()).Generate(context.Background(), "an oil painting of a harbour")
	require.NoError(t, err)
	assert.Equal(t, []byte("first-png"), img.Data)
	assert.Equal(t, "png", img.Format)

	assert.Equal(t, "stability.sd3-5-large-v1:0", aws.ToString(fake.input.ModelId))
	assert.JSONEq(t, `{
		"prompt": "an oil painting of a harbour",
		"aspect_ratio": "16:9",
		"mode": "text-to-image",
		"output_format": "png"
	}`, string(fake.input.Body))
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name     string
		fake     *fakeInvoker
		prompt   string
		category string
	}{
		{name: "empty prompt", fake: &fakeInvoker{}, prompt: " ", category: failure.Configuration},
		{name: "api error", fake: &fakeInvoker{err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}}, prompt: "p", category: failure.ProviderAPI},
		{name: "transport", fake: &fakeInvoker{err: errors.New("EOF")}, prompt: "p", category: failure.Transport},
		{name: "malformed json", fake: &fakeInvoker{body: "images:"}, prompt: "p", category: failure.MalformedResponse},
		{name: "empty image list", fake: &fakeInvoker{body: `{"images":[]}`}, prompt: "p", category: failure.MalformedResponse},
		{name: "missing image list", fake: &fakeInvoker{body: `{"finish_reasons":["Filter reason: prompt"]}`}, prompt: "p", category: failure.MalformedResponse},
		{name: "bad base64", fake: &fakeInvoker{body: `{"images":["%%%"]}`}, prompt: "p", category: failure.MalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := NewWithAPI(tt.fake, imageConfig()).Generate(context.Background(), tt.prompt)
			require.Error(t, err)
			assert.Nil(t, img.Data)
			assert.Equal(t, tt.category, failure.CategoryOf(err))
			assert.LessOrEqual(t, tt.fake.calls, 1, "no retry")
		})
	}
}
