package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/ocburn/internal/cli"
	"github.com/theirongolddev/ocburn/internal/model"
	"github.com/theirongolddev/ocburn/internal/tui/theme"
)

// Sparkline renders values as a colored unicode sparkline of at most width points.
func Sparkline(values []float64, color lipgloss.Color, width int) string {
	line := cli.Sparkline(values, cli.ChartOptions{MaxPoints: width})
	if line == "" {
		return ""
	}
	return lipgloss.NewStyle().Foreground(color).Render(line)
}

// CostSparkline renders the daily cost of buckets in the accent color.
func CostSparkline(buckets []model.DailyBucket, width int) string {
	values := make([]float64, len(buckets))
	for i, b := range buckets {
		values[i] = b.Cost
	}
	return Sparkline(values, theme.Active.Accent, width)
}
