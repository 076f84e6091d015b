package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/ocburn/internal/tui/theme"
)

// RenderStatusBar renders the bottom status bar with left and right aligned text.
func RenderStatusBar(width int, left, right string) string {
	t := theme.Active

	style := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Width(width)

	left = " " + left
	if right != "" {
		right += " "
	}

	padding := max(0, width-lipgloss.Width(left)-lipgloss.Width(right))
	return style.Render(left + strings.Repeat(" ", padding) + right)
}
