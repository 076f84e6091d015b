package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/ocburn/internal/tui/theme"
)

// Tab represents a single tab in the tab bar.
type Tab struct {
	Name   string
	Key    rune
	KeyPos int // position of the shortcut letter in the name
}

// Tabs defines all available tabs.
var Tabs = []Tab{
	{Name: "History", Key: 'h', KeyPos: 0},
	{Name: "Budget", Key: 'b', KeyPos: 0},
	{Name: "Quota", Key: 'u', KeyPos: 1},
}

const tabGap = "  "

// tabLabel returns the unstyled label of tab as shown when inactive.
func tabLabel(tab Tab) string {
	return tab.Name[:tab.KeyPos] + "[" + string(tab.Name[tab.KeyPos]) + "]" + tab.Name[tab.KeyPos+1:]
}

// RenderTabBar renders the tab bar with the given active index.
func RenderTabBar(activeIdx int, width int) string {
	t := theme.Active

	activeStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true).Underline(true)
	inactiveStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	dimKeyStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	parts := make([]string, len(Tabs))
	for i, tab := range Tabs {
		if i == activeIdx {
			// Pad to the inactive width so tab positions stay fixed.
			pad := len(tabLabel(tab)) - len(tab.Name)
			parts[i] = activeStyle.Render(tab.Name) + strings.Repeat(" ", pad)
			continue
		}
		before := tab.Name[:tab.KeyPos]
		key := string(tab.Name[tab.KeyPos])
		after := tab.Name[tab.KeyPos+1:]
		parts[i] = inactiveStyle.Render(before) +
			dimKeyStyle.Render("[") + keyStyle.Render(key) + dimKeyStyle.Render("]") +
			inactiveStyle.Render(after)
	}

	row := " " + strings.Join(parts, tabGap)
	return lipgloss.NewStyle().MaxWidth(width).Render(row)
}

// TabIdxByKey returns the tab index for a given key press, or -1.
func TabIdxByKey(key rune) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}

// TabAtX returns the index of the tab drawn at column x of the tab bar, or -1.
func TabAtX(x int) int {
	pos := 1
	for i, tab := range Tabs {
		w := len(tabLabel(tab))
		if x >= pos && x < pos+w {
			return i
		}
		pos += w + len(tabGap)
	}
	return -1
}
