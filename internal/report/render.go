// Package report renders usage statistics as bounded markdown.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/theirongolddev/ocburn/internal/cli"
	"github.com/theirongolddev/ocburn/internal/model"
	"github.com/theirongolddev/ocburn/internal/pipeline"
	"github.com/theirongolddev/ocburn/internal/stability"
)

const (
	maxHeaderModels = 5
	toolChartRows   = 20
	toolChartWidth  = 20
)

// CompactNotice is shown when compact mode was applied without being requested.
const CompactNotice = "_ℹ️ Compact mode auto-applied for Antigravity provider._\n\n"

// RenderHeader renders the report title, session and model list.
func RenderHeader(sessionID string, models []string, autoCompact, userCompact bool) string {
	var b strings.Builder
	b.WriteString("# Token Usage Statistics\n\n")
	fmt.Fprintf(&b, "**Session:** %s\n", sessionID)

	label := strings.Join(models, ", ")
	if len(models) > maxHeaderModels {
		label = fmt.Sprintf("%s ... (+%d more)", strings.Join(models[:maxHeaderModels], ", "), len(models)-maxHeaderModels)
	}
	fmt.Fprintf(&b, "**Models:** %s\n\n", label)

	if autoCompact && !userCompact {
		b.WriteString(CompactNotice)
	}
	return b.String()
}

// CacheHitRate returns read/(read+input) as a one-decimal percentage, or "N/A".
func CacheHitRate(s model.TokenStats) string {
	denom := s.Cache.Read + s.Input
	if denom <= 0 {
		return "N/A"
	}
	return cli.FormatPercent(float64(s.Cache.Read) / float64(denom))
}

// RenderTotals renders the token totals section.
func RenderTotals(s model.TokenStats) string {
	n := cli.FormatNumber
	var b strings.Builder
	b.WriteString("## Totals\n")
	fmt.Fprintf(&b, "- Input: %s tokens\n", n(s.Input))
	fmt.Fprintf(&b, "- Output: %s tokens\n", n(s.Output))
	fmt.Fprintf(&b, "- Total: %s tokens\n", n(s.Total))
	fmt.Fprintf(&b, "- Reasoning: %s tokens\n", n(s.Reasoning))
	fmt.Fprintf(&b, "- Cache (read/write): %s/%s tokens\n", n(s.Cache.Read), n(s.Cache.Write))
	fmt.Fprintf(&b, "- Cache hit rate: %s\n\n", CacheHitRate(s))
	return b.String()
}

// RenderEstimatedCost renders the total cost section.
func RenderEstimatedCost(total float64) string {
	return fmt.Sprintf("## Estimated Cost\n- Total: %s\n\n", cli.FormatUSD(total))
}

// RenderModelTable renders per-model tokens and cost, in model key order.
func RenderModelTable(byModel model.TokenStatsByModel, costs map[string]float64, cfg stability.Config) string {
	var b strings.Builder
	b.WriteString("## Per-Model Breakdown\n")
	b.WriteString("| Model | Input | Output | Total | Cost |\n")
	b.WriteString("|-------|-------|--------|-------|------|\n")

	limited := stability.LimitTableRows(pipeline.ModelKeys(byModel), cfg)
	for _, key := range limited.Rows {
		s := byModel[key]
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			key, cli.FormatNumber(s.Input), cli.FormatNumber(s.Output), cli.FormatNumber(s.Total), cli.FormatUSD(costs[key]))
	}
	if limited.Truncated {
		b.WriteString(stability.MoreRowsNote(limited.Omitted()))
	}
	return b.String()
}

func agentLine(b *strings.Builder, label string, s model.AgentTokenStats, cost, total float64) {
	fmt.Fprintf(b, "| %s | %s | %s | %s | %d | %s | %s |\n",
		label, cli.FormatNumber(s.Input), cli.FormatNumber(s.Output), cli.FormatNumber(s.Total),
		s.MessageCount, cli.FormatUSD(cost), cli.FormatShare(cost, total))
}

// RenderAgentTable renders an agent breakdown with an optional Others row.
func RenderAgentTable(title string, rows pipeline.TopNResult, totalCost float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n## %s\n", title)
	b.WriteString("| Agent | Input | Output | Total | Msgs | Cost | %Cost |\n")
	b.WriteString("|-------|-------|--------|-------|------|------|-------|\n")

	for _, r := range rows.Rows {
		agentLine(&b, r.Agent, r.Stats, r.Cost, totalCost)
	}
	if o := rows.Others; o != nil {
		agentLine(&b, fmt.Sprintf("Others (%d)", o.Count), o.Stats, o.Cost, totalCost)
	}
	return b.String()
}

// RenderAgentModelTable renders agent×model rows sorted by cost desc, then agent, then model.
// costs is keyed like stats.
func RenderAgentModelTable(stats model.TokenStatsByAgentModel, costs map[string]float64, totalCost float64, cfg stability.Config) string {
	type row struct {
		model.AgentModelTokenStats
		cost float64
	}
	rows := make([]row, 0, len(stats))
	for k, s := range stats {
		rows = append(rows, row{AgentModelTokenStats: s, cost: costs[k]})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.cost != b.cost {
			return a.cost > b.cost
		}
		if a.Agent != b.Agent {
			return a.Agent < b.Agent
		}
		return a.Model < b.Model
	})

	var b strings.Builder
	b.WriteString("\n## Agent × Model\n")
	b.WriteString("| Agent | Model | Msgs | Input | Output | Total | Cost | %Cost |\n")
	b.WriteString("|-------|-------|------|-------|--------|-------|------|-------|\n")

	limited := stability.LimitTableRows(rows, cfg)
	for _, r := range limited.Rows {
		fmt.Fprintf(&b, "| %s | %s | %d | %s | %s | %s | %s | %s |\n",
			r.Agent, r.Model, r.MessageCount,
			cli.FormatNumber(r.Input), cli.FormatNumber(r.Output), cli.FormatNumber(r.Total),
			cli.FormatUSD(r.cost), cli.FormatShare(r.cost, totalCost))
	}
	if limited.Truncated {
		b.WriteString(stability.MoreRowsNote(limited.Omitted()))
	}
	return b.String()
}

func toolRows(byTool map[string]*pipeline.ToolCallSummary) []*pipeline.ToolCallSummary {
	rows := make([]*pipeline.ToolCallSummary, 0, len(byTool))
	for _, r := range byTool {
		rows = append(rows, r)
	}
	return rows
}

// RenderToolCommandTable renders tool call attribution sorted by cost desc, then tool.
// It is empty when no completed tool calls exist.
func RenderToolCommandTable(byTool map[string]*pipeline.ToolCallSummary, totalCost float64, cfg stability.Config) string {
	if len(byTool) == 0 {
		return ""
	}
	rows := toolRows(byTool)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Cost != rows[j].Cost {
			return rows[i].Cost > rows[j].Cost
		}
		return rows[i].Tool < rows[j].Tool
	})

	var b strings.Builder
	b.WriteString("\n## Tool × Command\n")
	b.WriteString("| Tool | Summary | Calls | Input | Output | Total | Cost | %Cost |\n")
	b.WriteString("|------|---------|-------|-------|--------|-------|------|-------|\n")

	limited := stability.LimitTableRows(rows, cfg)
	for _, r := range limited.Rows {
		fmt.Fprintf(&b, "| %s | %s | %d | %s | %s | %s | %s | %s |\n",
			r.Tool, r.Title, r.CallCount,
			cli.FormatNumber(r.Tokens.Input), cli.FormatNumber(r.Tokens.Output), cli.FormatNumber(r.Tokens.Total),
			cli.FormatUSD(r.Cost), cli.FormatShare(r.Cost, totalCost))
	}
	if limited.Truncated {
		b.WriteString(stability.MoreRowsNote(limited.Omitted()))
	}
	return b.String()
}

// RenderToolUsageChart renders call counts as 20-wide bars, at most 20 tools.
func RenderToolUsageChart(byTool map[string]*pipeline.ToolCallSummary) string {
	if len(byTool) == 0 {
		return ""
	}
	rows := toolRows(byTool)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CallCount != rows[j].CallCount {
			return rows[i].CallCount > rows[j].CallCount
		}
		return rows[i].Tool < rows[j].Tool
	})

	totalCalls := 0
	for _, r := range rows {
		totalCalls += r.CallCount
	}

	limited := stability.LimitTableRows(rows, stability.Config{MaxTableRows: toolChartRows})
	maxCalls, nameWidth := 0, 0
	for _, r := range limited.Rows {
		maxCalls = max(maxCalls, r.CallCount)
		nameWidth = max(nameWidth, len([]rune(r.Tool)))
	}

	var b strings.Builder
	b.WriteString("\n## Tool Usage\n")
	for _, r := range limited.Rows {
		bar := 0
		if maxCalls > 0 && r.CallCount > 0 {
			bar = max(1, int(float64(r.CallCount)/float64(maxCalls)*toolChartWidth+0.5))
		}
		pct := "0.0%"
		if totalCalls > 0 {
			pct = cli.FormatPercent(float64(r.CallCount) / float64(totalCalls))
		}
		fmt.Fprintf(&b, "%s %s %s (%5s)\n",
			padRight(r.Tool, nameWidth),
			padRight(strings.Repeat("█", bar), toolChartWidth),
			cli.FormatNumber(int64(r.CallCount)), pct)
	}
	if limited.Truncated {
		fmt.Fprintf(&b, "\n_...and %d more tools._\n", limited.Omitted())
	}
	return b.String()
}

func padRight(s string, w int) string {
	return s + strings.Repeat(" ", max(0, w-len([]rune(s))))
}

// RenderWarnings renders pricing warnings, or nothing when there are none.
func RenderWarnings(warnings []string) string {
	if len(warnings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n## Warnings\n")
	for _, w := range warnings {
		fmt.Fprintf(&b, "- %s\n", w)
	}
	return b.String()
}
