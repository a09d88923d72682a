package cmd

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"histopost/pkg/pipeline"
)

// previewTheme groups the styles used to print a generated preview.
type previewTheme struct {
	header     lipgloss.Style
	label      lipgloss.Style
	postBox    lipgloss.Style
	postTitle  lipgloss.Style
	imageBox   lipgloss.Style
	imageTitle lipgloss.Style
	errorBox   lipgloss.Style
	errorTitle lipgloss.Style
	hint       lipgloss.Style
}

func defaultPreviewTheme() previewTheme {
	return previewTheme{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("88")),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("223")),
		postBox: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("44")).
			Padding(0, 1),
		postTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("44")).
			Padding(0, 1),
		imageBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("109")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		imageTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("109")).
			Padding(0, 1),
		errorBox: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("203")).
			Foreground(lipgloss.Color("203")).
			Padding(0, 1),
		errorTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("160")).
			Padding(0, 1),
		hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
	}
}

// renderPreview lays out a preview for the terminal. width <= 0 leaves boxes
// sized to their content.
func renderPreview(t previewTheme, preview pipeline.Preview, previewErr error, width int) string {
	var b strings.Builder

	b.WriteString(t.header.Render("histopost preview"))
	b.WriteString("\n")
	b.WriteString(t.label.Render("period: " + preview.Period))
	b.WriteString("\n\n")

	if previewErr != nil {
		b.WriteString(t.errorTitle.Render("error"))
		b.WriteString("\n")
		b.WriteString(boxed(t.errorBox, width).Render(previewErr.Error()))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(t.postTitle.Render("post"))
	b.WriteString("\n")
	b.WriteString(boxed(t.postBox, width).Render(preview.Post.PostText))
	b.WriteString("\n\n")
	b.WriteString(t.imageTitle.Render("image prompt"))
	b.WriteString("\n")
	b.WriteString(boxed(t.imageBox, width).Render(preview.Post.ImagePrompt))
	b.WriteString("\n")
	b.WriteString(t.hint.Render("nothing was published"))
	b.WriteString("\n")

	return b.String()
}

func boxed(style lipgloss.Style, width int) lipgloss.Style {
	if width <= 0 {
		return style
	}
	return style.Width(width)
}
