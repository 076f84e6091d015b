package components

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/ocburn/internal/model"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

func TestLayoutRow(t *testing.T) {
	widths := LayoutRow(10, 3)
	assert.Equal(t, []int{4, 3, 3}, widths)
	assert.Nil(t, LayoutRow(10, 0))
}

func TestMetricCardRow_Width(t *testing.T) {
	row := MetricCardRow([]Metric{
		{Label: "Cost", Value: "$1.00"},
		{Label: "Tokens", Value: "1.2k", Delta: "+5%"},
	}, 60)

	require.NotEmpty(t, row)
	assert.Equal(t, 60, lipgloss.Width(row))
	assert.Contains(t, row, "Tokens")
	assert.Contains(t, row, "+5%")
	assert.Empty(t, MetricCardRow(nil, 60))
}

func TestTabs(t *testing.T) {
	assert.Equal(t, 0, TabIdxByKey('h'))
	assert.Equal(t, 2, TabIdxByKey('u'))
	assert.Equal(t, -1, TabIdxByKey('z'))

	// " [H]istory  [B]udget  Q[u]ota"
	assert.Equal(t, -1, TabAtX(0))
	assert.Equal(t, 0, TabAtX(1))
	assert.Equal(t, 0, TabAtX(9))
	assert.Equal(t, -1, TabAtX(10))
	assert.Equal(t, 1, TabAtX(12))
	assert.Equal(t, 2, TabAtX(22))
	assert.Equal(t, -1, TabAtX(200))

	bar := RenderTabBar(1, 80)
	assert.Contains(t, bar, "[H]istory")
	assert.Contains(t, bar, "Budget")
	assert.NotContains(t, bar, "[B]udget")
	assert.Equal(t, lipgloss.Width(RenderTabBar(0, 80)), lipgloss.Width(RenderTabBar(2, 80)))
}

func TestStatusBar(t *testing.T) {
	bar := RenderStatusBar(40, "[q]uit", "Data: 5s ago")
	assert.Equal(t, 40, lipgloss.Width(bar))
	assert.True(t, strings.HasPrefix(bar, " [q]uit"))
	assert.True(t, strings.HasSuffix(bar, "Data: 5s ago "))
}

func TestUsageBars(t *testing.T) {
	b := BudgetBar("Daily", model.BudgetStatus{Limit: 10, Spent: 5, Severity: model.SeverityInfo}, 8, 20)
	assert.Contains(t, b, "Daily")
	assert.Contains(t, b, " 50%")
	assert.Contains(t, b, "$5.00 / $10.00")

	over := BudgetBar("Weekly", model.BudgetStatus{Limit: 10, Spent: 25, Severity: model.SeverityError}, 8, 20)
	assert.Contains(t, over, "100%")

	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	q := model.QuotaStatus{Source: "codex", Scope: "primary", RemainingFraction: 0.25, ResetsAt: "2026-03-01T12:30:00Z"}
	got := QuotaBar(q, now, 16, 20)
	assert.Contains(t, got, "codex/primary")
	assert.Contains(t, got, " 25%")
	assert.Contains(t, got, "resets in 2h 30m")

	q.ResetsAt = "1767225600"
	assert.Contains(t, QuotaBar(q, now, 16, 20), "resets 1767225600")

	q.ResetsAt = "2026-02-01T00:00:00Z"
	assert.Contains(t, QuotaBar(q, now, 16, 20), "resets now")
}

func TestFormatCountdown(t *testing.T) {
	assert.Equal(t, "45m", formatCountdown(45*time.Minute))
	assert.Equal(t, "3h 5m", formatCountdown(3*time.Hour+5*time.Minute))
	assert.Equal(t, "2d 1h", formatCountdown(49*time.Hour))
}

func TestCostSparkline(t *testing.T) {
	assert.Empty(t, CostSparkline(nil, 10))
	line := CostSparkline([]model.DailyBucket{{Cost: 1}, {Cost: 3}, {Cost: 2}}, 10)
	assert.Equal(t, 3, lipgloss.Width(line))
}
