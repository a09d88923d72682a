// Package extract turns a raw text-model reply into a typed post.
package extract

import (
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"histopost/pkg/failure"
	texttypes "histopost/pkg/textgen/types"
)

const (
	KeyPostText    = "generated_post"
	KeyImagePrompt = "image_generation_prompt"

	jsonFence = "```json"
	fence     = "```"

	previewLimit = 120
)

// Post is the structured content extracted from one reply. It is only ever
// returned with both fields set.
type Post struct {
	PostText    string `json:"generated_post"`
	ImagePrompt string `json:"image_generation_prompt"`
}

// Extract navigates the reply to its text blob, strips an optional code
// fence, parses the remainder as a JSON object, and copies the two required
// string fields.
func Extract(reply texttypes.Reply) (Post, error) {
	log := extractLogger()

	if !gjson.ValidBytes(reply) {
		log.Error("Reply is not valid JSON", "category", failure.Structural, "reply_length", len(reply))
		return Post{}, failure.New(failure.Structural, "reply is not valid JSON")
	}

	text := gjson.GetBytes(reply, texttypes.TextPath)
	if !text.Exists() || text.Type != gjson.String {
		log.Error("Reply text not found", "category", failure.Structural, "path", texttypes.TextPath)
		return Post{}, failure.New(failure.Structural, "no text at "+texttypes.TextPath)
	}

	body := StripFence(text.String())
	if !gjson.Valid(body) {
		log.Error("Reply text is not valid JSON", "category", failure.Parse, "text", preview(body))
		return Post{}, failure.New(failure.Parse, "reply text is not valid JSON")
	}

	parsed := gjson.Parse(body)
	if !parsed.IsObject() {
		log.Error("Reply text is not a JSON object", "category", failure.Parse, "text", preview(body))
		return Post{}, failure.New(failure.Parse, "reply text is not a JSON object")
	}

	postText, err := requiredString(parsed, KeyPostText)
	if err != nil {
		log.Error("Reply is missing a required field", "category", failure.Schema, "field", KeyPostText)
		return Post{}, err
	}

	imagePrompt, err := requiredString(parsed, KeyImagePrompt)
	if err != nil {
		log.Error("Reply is missing a required field", "category", failure.Schema, "field", KeyImagePrompt)
		return Post{}, err
	}

	log.Info("Extracted post", "post", preview(postText), "image_prompt", preview(imagePrompt))

	return Post{PostText: postText, ImagePrompt: imagePrompt}, nil
}

// StripFence removes an exact leading "```json" (or bare "```") marker and an
// exact trailing "```" marker. Text without markers is only whitespace-trimmed,
// so StripFence(StripFence(x)) == StripFence(x).
func StripFence(text string) string {
	current := strings.TrimSpace(text)
	for {
		next := stripFenceOnce(current)
		if next == current {
			return current
		}
		current = next
	}
}

func stripFenceOnce(text string) string {
	if rest, ok := strings.CutPrefix(text, jsonFence); ok {
		text = rest
	} else if rest, ok := strings.CutPrefix(text, fence); ok {
		text = rest
	}

	if rest, ok := strings.CutSuffix(text, fence); ok {
		text = rest
	}

	return strings.TrimSpace(text)
}

func requiredString(obj gjson.Result, key string) (string, error) {
	value := obj.Get(gjson.Escape(key))
	if !value.Exists() {
		return "", failure.New(failure.Schema, "missing field "+key)
	}
	if value.Type != gjson.String {
		return "", failure.New(failure.Schema, "field "+key+" is not a string")
	}
	if strings.TrimSpace(value.String()) == "" {
		return "", failure.New(failure.Schema, "field "+key+" is empty")
	}

	return value.String(), nil
}

func preview(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= previewLimit {
		return string(runes)
	}

	return string(runes[:previewLimit]) + "..."
}

func extractLogger() *slog.Logger {
	return slog.Default().With("component", "extract")
}
