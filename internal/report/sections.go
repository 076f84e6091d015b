package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/theirongolddev/ocburn/internal/analysis"
	"github.com/theirongolddev/ocburn/internal/cli"
	"github.com/theirongolddev/ocburn/internal/model"
	"github.com/theirongolddev/ocburn/internal/pipeline"
	"github.com/theirongolddev/ocburn/internal/stability"
)

// Placeholders written in place of an optional section that failed.
const (
	QuotaUnavailable        = "_[Quota status unavailable]_"
	BudgetUnavailable       = "_[Budget status unavailable]_"
	TrendUnavailable        = "_[Trend analysis unavailable]_"
	OptimizationUnavailable = "_[Optimization suggestions unavailable]_"
	ChildrenUnavailable     = "_[Child sessions unavailable]_"
)

const childIDLen = 12

// Builder accumulates report output and remembers which parts were sections.
type Builder struct {
	b        strings.Builder
	sections []string
}

// Write appends s without recording it as a section.
func (r *Builder) Write(s string) {
	r.b.WriteString(s)
}

// Section appends s and records it for debug output. Empty strings are ignored.
func (r *Builder) Section(s string) {
	if s == "" {
		return
	}
	r.b.WriteString(s)
	r.sections = append(r.sections, s)
}

// Optional runs fn and appends its section. When fn fails the placeholder is
// written instead and the error is dropped.
func (r *Builder) Optional(placeholder string, fn func() (string, error)) {
	s, err := fn()
	if err != nil {
		r.b.WriteString("\n" + placeholder + "\n")
		return
	}
	r.Section(s)
}

// Sections returns the recorded sections in order.
func (r *Builder) Sections() []string {
	return r.sections
}

// String returns the report so far.
func (r *Builder) String() string {
	return r.b.String()
}

func roundPct(f float64) int {
	return int(math.Floor(f*100 + 0.5))
}

// QuotaSection renders quota statuses, or nothing when there are none.
func QuotaSection(quotas []model.QuotaStatus) string {
	if len(quotas) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n## Quota Status\n\n")
	for _, q := range quotas {
		fmt.Fprintf(&b, "- %s %s/%s: %d%% remaining", q.Severity.Icon(), q.Source, q.Scope, roundPct(q.RemainingFraction))
		if q.ResetsAt != "" {
			fmt.Fprintf(&b, " (resets: %s)", q.ResetsAt)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// BudgetSection renders budget statuses, or nothing when no limit is configured.
func BudgetSection(statuses []model.BudgetStatus) string {
	if len(statuses) == 0 {
		return ""
	}
	return "\n## Budget Status\n\n" + analysis.FormatBudgetSection(statuses) + "\n"
}

// OptimizationSection renders suggestions, or nothing when there are none.
func OptimizationSection(suggestions []analysis.Suggestion) string {
	s := analysis.FormatOptimizationSection(suggestions)
	if s == "" {
		return ""
	}
	return "\n" + s + "\n"
}

func costChart(buckets []model.DailyBucket, cfg stability.Config) string {
	values := make([]float64, len(buckets))
	labels := make([]string, len(buckets))
	for i, b := range buckets {
		values[i] = b.Cost
		labels[i] = b.Date[min(5, len(b.Date)):]
	}
	chart := cli.BarChart(values, labels, cli.ChartOptions{MaxPoints: cfg.Resolved().MaxChartPoints})
	if chart == "" {
		return ""
	}
	return "### Daily Cost Trend\n```\n" + chart + "\n```\n\n"
}

func weekOverWeek(delta float64) string {
	direction := "increased"
	if delta < 0 {
		direction = "decreased"
	}
	return fmt.Sprintf("**Week-over-week:** %s by %.1f%%", direction, math.Abs(delta*100))
}

// TrendSection renders the stats report trend block for the last days.
func TrendSection(trends analysis.TrendStats, days int, cfg stability.Config) string {
	if len(trends.Buckets) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n## Trend Analysis (%d days)\n\n", days)
	b.WriteString(costChart(trends.Buckets, cfg))

	b.WriteString("| Date | Cost | Tokens | Sessions |\n")
	b.WriteString("|------|------|--------|----------|\n")
	limited := stability.LimitTableRows(trends.Buckets, cfg)
	for _, d := range limited.Rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %d |\n", d.Date, cli.FormatUSD(d.Cost), cli.FormatNumber(d.Tokens), d.Sessions)
	}
	if limited.Truncated {
		b.WriteString(stability.MoreRowsNote(limited.Omitted()))
	}

	if trends.WeekOverWeek != 0 {
		b.WriteString("\n" + weekOverWeek(trends.WeekOverWeek) + "\n")
	}
	if len(trends.Spikes) > 0 {
		fmt.Fprintf(&b, "**Cost spikes detected:** %s\n", strings.Join(trends.Spikes, ", "))
	}
	return b.String()
}

// ChildSection renders child session totals. Compact output lists only the sums.
func ChildSection(children []pipeline.ChildSummary, compact bool, cfg stability.Config) string {
	if len(children) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n## Child Sessions\n\n")

	if compact {
		var tokens int64
		var cost float64
		for _, c := range children {
			tokens += c.Tokens.Total
			cost += c.Cost
		}
		fmt.Fprintf(&b, "- Sessions: %d\n", len(children))
		fmt.Fprintf(&b, "- Tokens: %s\n", cli.FormatNumber(tokens))
		fmt.Fprintf(&b, "- Cost: %s\n", cli.FormatUSD(cost))
		return b.String()
	}

	b.WriteString("| Session ID | Tokens | Cost |\n")
	b.WriteString("|------------|--------|------|\n")
	limited := stability.LimitTableRows(children, cfg)
	for _, c := range limited.Rows {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", cli.ShortID(c.SessionID, childIDLen), cli.FormatNumber(c.Tokens.Total), cli.FormatUSD(c.Cost))
	}
	if limited.Truncated {
		b.WriteString(stability.MoreRowsNote(limited.Omitted()))
	}
	return b.String()
}

// DebugSection renders section sizes.
func DebugSection(sections []string) string {
	return "\n## Debug Info\n\n" + stability.DebugInfo(sections) + "\n"
}

// NoMessages is the stats report for a session without assistant replies.
const NoMessages = "# Token Usage Statistics\n\nNo assistant messages found in this session."

// HistoryRange is the resolved query window of a history report.
type HistoryRange struct {
	From, To time.Time
	// Scope is the label shown after **Scope:**.
	Scope string
}

func isoDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// HistoryEmpty renders the history report when no records matched.
func HistoryEmpty(r HistoryRange) string {
	return fmt.Sprintf("# Token Usage History\n\n**Scope:** %s\n\nNo session records found between %s and %s.",
		r.Scope, isoDate(r.From), isoDate(r.To))
}

// RenderHistory renders the history report for records sorted by timestamp.
func RenderHistory(records []model.SessionRecord, trends analysis.TrendStats, r HistoryRange, cfg stability.Config) string {
	if len(records) == 0 {
		return HistoryEmpty(r)
	}

	var totalCost float64
	var totalTokens int64
	for _, rec := range records {
		totalCost += rec.Cost
		totalTokens += rec.Totals.Total
	}

	var b strings.Builder
	b.WriteString("# Token Usage History\n\n")
	fmt.Fprintf(&b, "**Period:** %s to %s\n", isoDate(r.From), isoDate(r.To))
	fmt.Fprintf(&b, "**Scope:** %s\n", r.Scope)
	fmt.Fprintf(&b, "**Sessions:** %d\n\n", len(records))

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Total Cost: %s\n", cli.FormatUSD(totalCost))
	fmt.Fprintf(&b, "- Total Tokens: %s\n\n", cli.FormatNumber(totalTokens))

	b.WriteString("## Sessions\n")
	b.WriteString("| Date | Session ID | Tokens | Cost |\n")
	b.WriteString("|------|------------|--------|------|\n")
	limited := stability.LimitTableRows(records, cfg)
	for _, rec := range limited.Rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			isoDate(rec.Time()), cli.ShortID(rec.SessionID, childIDLen), cli.FormatNumber(rec.Totals.Total), cli.FormatUSD(rec.Cost))
	}
	if limited.Truncated {
		b.WriteString(stability.MoreRowsNote(limited.Omitted()))
	}

	if len(trends.Buckets) > 0 {
		b.WriteString("\n## Trend Analysis\n\n")
		b.WriteString(costChart(trends.Buckets, cfg))
		if trends.WeekOverWeek != 0 {
			b.WriteString(weekOverWeek(trends.WeekOverWeek) + "\n\n")
		}
		if len(trends.Spikes) > 0 {
			fmt.Fprintf(&b, "**Cost spikes detected:** %s\n\n", strings.Join(trends.Spikes, ", "))
		}
	}
	return b.String()
}
