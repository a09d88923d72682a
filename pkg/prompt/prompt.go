package prompt

import (
	"fmt"
	"strings"

	"histopost/pkg/extract"
	"histopost/pkg/failure"
)

const (
	role = "You are a Social Media Historian."

	audience = `
Your audience is a general Facebook audience interested in surprising or significant moments from history, presented
in an accessible and engaging way. The post needs to be concise (under 300 words) and end with five relevant hashtags.
It should include some emojis.
`

	periodInstruction = "1. Choose a historical event from "

	instructions = `
2.  Briefly explain what happened, when, and where. Focus on the most compelling details.
3.  Highlight why is this event interesting or noteworthy.
4.  Include 5 relevant hashtags that summarize the content and encourage discoverability.
`
)

var outputFormat = fmt.Sprintf(`
Output Format: Your response MUST be a valid JSON object with the following keys:
{
  "%s": "Your engaging Facebook post text goes here (max 300 words).",
  "%s": "A detailed prompt for image generation AI related to the event."
}
`, extract.KeyPostText, extract.KeyImagePrompt)

// Build assembles the text-generation prompt for one historical period.
func Build(period string) (string, error) {
	period = strings.TrimSpace(period)
	if period == "" {
		return "", failure.New(failure.Configuration, "historical period is required")
	}

	var sb strings.Builder
	sb.WriteString(role)
	sb.WriteString(audience)
	sb.WriteString(periodInstruction)
	sb.WriteString(period)
	sb.WriteString(instructions)
	sb.WriteString(outputFormat)

	return sb.String(), nil
}

// Excerpt returns a bounded log-safe preview of a prompt.
func Excerpt(prompt string, limit int) string {
	trimmed := strings.TrimSpace(prompt)
	runes := []rune(trimmed)
	if limit <= 0 || len(runes) <= limit {
		return trimmed
	}

	return string(runes[:limit]) + "..."
}
