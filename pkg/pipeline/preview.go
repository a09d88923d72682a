package pipeline

import (
	"context"
	"fmt"

	"histopost/pkg/extract"
	"histopost/pkg/prompt"
	texttypes "histopost/pkg/textgen/types"
)

// Preview is the text half of a run, produced without generating an image,
// publishing, or notifying.
type Preview struct {
	Period string
	Prompt string
	Post   extract.Post
}

func GeneratePreview(ctx context.Context, text texttypes.Client, period string) (Preview, error) {
	preview := Preview{Period: period}

	userPrompt, err := prompt.Build(period)
	if err != nil {
		return preview, fmt.Errorf("%s: %w", StagePreparePrompt, err)
	}
	preview.Prompt = userPrompt

	reply, err := text.Generate(ctx, userPrompt)
	if err != nil {
		return preview, fmt.Errorf("%s: %w", StageGenerateText, err)
	}

	post, err := extract.Extract(reply)
	if err != nil {
		return preview, fmt.Errorf("%s: %w", StageExtract, err)
	}
	preview.Post = post

	return preview, nil
}
