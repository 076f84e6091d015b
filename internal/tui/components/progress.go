package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/ocburn/internal/model"
	"github.com/theirongolddev/ocburn/internal/tui/theme"
)

func clamp01(f float64) float64 {
	return min(1, max(0, f))
}

// UsageBar renders a labeled progress bar colored by severity, followed by
// the percentage and an optional note.
func UsageBar(label string, fraction float64, sev model.Severity, note string, labelW, barWidth int) string {
	t := theme.Active
	fraction = clamp01(fraction)
	color := t.ForSeverity(sev)

	bar := progress.New(
		progress.WithSolidFill(string(color)),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	pctStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	noteStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	out := labelStyle.Render(fmt.Sprintf("%-*s", labelW, label)) + " " +
		bar.ViewAs(fraction) + " " +
		pctStyle.Render(fmt.Sprintf("%3.0f%%", fraction*100))
	if note != "" {
		out += "  " + noteStyle.Render(note)
	}
	return out
}

// BudgetBar renders one budget window as a usage bar.
func BudgetBar(label string, s model.BudgetStatus, labelW, barWidth int) string {
	fraction := 0.0
	if s.Limit > 0 {
		fraction = s.Spent / s.Limit
	}
	note := fmt.Sprintf("$%.2f / $%.2f", s.Spent, s.Limit)
	return UsageBar(label, fraction, s.Severity, note, labelW, barWidth)
}

// QuotaBar renders one quota as a bar of the remaining share. A parseable
// reset time is shown as a countdown from now.
func QuotaBar(q model.QuotaStatus, now time.Time, labelW, barWidth int) string {
	note := ""
	if q.ResetsAt != "" {
		note = "resets " + q.ResetsAt
		if at, err := time.Parse(time.RFC3339, q.ResetsAt); err == nil {
			if d := at.Sub(now); d > 0 {
				note = "resets in " + formatCountdown(d)
			} else {
				note = "resets now"
			}
		}
	}
	return UsageBar(q.Key(), q.RemainingFraction, q.Severity, note, labelW, barWidth)
}

func formatCountdown(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h >= 24 {
		return fmt.Sprintf("%dd %dh", h/24, h%24)
	}
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
