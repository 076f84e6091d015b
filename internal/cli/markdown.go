package cli

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders a markdown report for the terminal. The light theme is
// used when light is set, otherwise the style follows the terminal background.
func RenderMarkdown(md string, width int, light bool) (string, error) {
	if width <= 0 {
		width = 100
	}

	style := glamour.WithAutoStyle()
	if light {
		style = glamour.WithStylePath("light")
	}

	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}

	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return out, nil
}
