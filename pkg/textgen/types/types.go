package types

import (
	"context"

	"github.com/tidwall/sjson"
)

// TextPath is where the generated text lives inside every Reply, in gjson
// path syntax. It mirrors the Bedrock Nova response shape.
const TextPath = "output.message.content.0.text"

// Reply is the raw, provider-shaped JSON returned by a text model.
type Reply []byte

// Client generates one reply for one prompt.
type Client interface {
	Generate(ctx context.Context, prompt string) (Reply, error)
}

// Params are the inference parameters attached verbatim to each request.
type Params struct {
	Model         string
	Temperature   float64
	MaxTokens     int
	StopSequences []string
}

// Envelope wraps plain model text in the canonical reply shape so backends
// that do not speak the Nova wire format still satisfy the extractor.
func Envelope(text string) (Reply, error) {
	body, err := sjson.SetBytes([]byte(`{}`), TextPath, text)
	if err != nil {
		return nil, err
	}

	return Reply(body), nil
}
