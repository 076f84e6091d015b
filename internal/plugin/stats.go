package plugin

import (
	"context"
	"errors"
	"time"

	"github.com/theirongolddev/ocburn/internal/analysis"
	"github.com/theirongolddev/ocburn/internal/metrics"
	"github.com/theirongolddev/ocburn/internal/model"
	"github.com/theirongolddev/ocburn/internal/pipeline"
	"github.com/theirongolddev/ocburn/internal/report"
	"github.com/theirongolddev/ocburn/internal/stability"
)

// Scopes of history queries.
const (
	ScopeAll     = "all"
	ScopeProject = "project"
)

// Agent table views.
const (
	ViewBoth      = "both"
	ViewExecution = "execution"
	ViewInitiator = "initiator"
)

// Stats defaults.
const (
	DefaultTrendDays = 7
	DefaultAgentTopN = 10
	budgetDays       = 7
	day              = 24 * time.Hour
)

var errSessionRequired = errors.New("session_id is required")

// StatsArgs are the token_stats arguments. Nil pointers take their defaults.
type StatsArgs struct {
	SessionID       string
	IncludeChildren bool
	TrendDays       *int
	Compact         bool
	Debug           bool
	AgentView       string
	AgentSort       string
	// AgentTopN limits agent tables: 0 lists every agent cut by the row limit,
	// negative lists every agent without the row limit.
	AgentTopN *int
	Scope     string
}

func (a StatsArgs) trendDays() int {
	if a.TrendDays == nil {
		return DefaultTrendDays
	}
	return *a.TrendDays
}

func (a StatsArgs) agentTopN() int {
	if a.AgentTopN == nil {
		return DefaultAgentTopN
	}
	return *a.AgentTopN
}

func (a StatsArgs) view() string {
	switch a.AgentView {
	case ViewExecution, ViewInitiator:
		return a.AgentView
	}
	return ViewBoth
}

func (a StatsArgs) sortBy() pipeline.SortBy {
	if a.AgentSort == string(pipeline.SortByTokens) {
		return pipeline.SortByTokens
	}
	return pipeline.SortByCost
}

// TokenStats renders the usage report of one session. Failures are returned
// as a one-paragraph message, never as an error.
func (p *Plugin) TokenStats(ctx context.Context, args StatsArgs) string {
	start := time.Now()
	defer func() { metrics.ObserveReport("token_stats", time.Since(start)) }()

	out, err := p.tokenStats(ctx, args)
	if err != nil {
		return "Error calculating token statistics: " + err.Error()
	}
	return out
}

func (p *Plugin) tokenStats(ctx context.Context, args StatsArgs) (string, error) {
	if args.SessionID == "" {
		return "", errSessionRequired
	}
	sessionID := args.SessionID

	raw, err := p.source.Messages(ctx, sessionID)
	if err != nil {
		return "Error fetching session messages: " + err.Error(), nil
	}

	prepared := pipeline.PrepareMessages(raw)
	var tree *pipeline.SessionNode
	if args.IncludeChildren {
		tree, err = pipeline.ListSessionTree(ctx, sessionID, p.source, pipeline.WithRootMessages(raw))
		if err != nil {
			return "", err
		}
		prepared = pipeline.PrepareMessages(pipeline.Flatten(tree))
	}

	assistant := prepared.Infos()
	autoCompact := false
	for _, m := range assistant {
		if p.compact.Matches(m.ProviderID, m.ModelID) {
			autoCompact = true
			break
		}
	}
	compact := args.Compact || autoCompact

	if len(assistant) == 0 {
		return report.NoMessages, nil
	}

	pricing := p.Pricing()
	cfg := p.output
	totals := pipeline.AggregateTokens(assistant)
	byModel := pipeline.AggregateByModel(assistant)
	costs := pipeline.CalculateCost(byModel, pricing)

	var b report.Builder
	b.Write(report.RenderHeader(sessionID, pipeline.ModelKeys(byModel), autoCompact, args.Compact))
	b.Write(report.RenderTotals(totals))
	b.Write(report.RenderEstimatedCost(costs.TotalCost))
	b.Write(report.RenderModelTable(byModel, costs.ByModel, cfg))
	b.Write(report.RenderWarnings(costs.Warnings))

	topN, sortBy := args.agentTopN(), args.sortBy()
	agentTable := func(title string, stats model.TokenStatsByAgent, agentCosts map[string]float64) {
		if topN == 0 {
			limited := stability.LimitTableRows(pipeline.AllAgents(stats, agentCosts), cfg)
			b.Write(report.RenderAgentTable(title, pipeline.TopNResult{Rows: limited.Rows}, costs.TotalCost))
			if limited.Truncated {
				b.Write(stability.MoreRowsNote(limited.Omitted()))
			}
			return
		}
		b.Write(report.RenderAgentTable(title, pipeline.TopNAgents(stats, agentCosts, max(topN, 0), sortBy), costs.TotalCost))
	}

	view := args.view()
	if view == ViewBoth || view == ViewExecution {
		agentTable("By Execution Agent", pipeline.AggregateByAgent(assistant), pipeline.AgentCosts(assistant, pricing))
	}
	if view == ViewBoth || view == ViewInitiator {
		agentTable("By Initiator Agent",
			pipeline.AggregateByInitiator(assistant, prepared.User),
			pipeline.InitiatorCosts(assistant, prepared.User, pricing))
	}

	if !compact {
		agentModel := pipeline.AggregateByAgentModel(assistant)
		b.Write(report.RenderAgentModelTable(agentModel, pipeline.AgentModelRowCosts(agentModel, pricing), costs.TotalCost, cfg))

		if tools := pipeline.AggregateToolAttribution(prepared.Parts()); len(tools) > 0 {
			b.Write(report.RenderToolCommandTable(tools, costs.TotalCost, cfg))
			b.Write(report.RenderToolUsageChart(tools))
		}
	}

	b.Optional(report.QuotaUnavailable, func() (string, error) {
		return report.QuotaSection(p.quotas.LoadAll()), nil
	})

	if !compact {
		now := p.now()
		b.Optional(report.BudgetUnavailable, func() (string, error) {
			records, err := p.history.LoadRange(now.Add(-budgetDays*day), now, p.historyOpts(args.Scope)...)
			if err != nil {
				return "", err
			}
			return report.BudgetSection(analysis.BudgetStatuses(records, p.Budget(), now)), nil
		})

		b.Optional(report.TrendUnavailable, func() (string, error) {
			days := args.trendDays()
			records, err := p.history.LoadRange(now.Add(-time.Duration(days)*day), now, p.historyOpts(args.Scope)...)
			if err != nil || len(records) == 0 {
				return "", err
			}
			return report.TrendSection(analysis.AnalyzeTrends(records), days, cfg), nil
		})

		b.Optional(report.OptimizationUnavailable, func() (string, error) {
			return report.OptimizationSection(analysis.Suggestions(totals, byModel, pricing)), nil
		})
	}

	if args.IncludeChildren {
		b.Optional(report.ChildrenUnavailable, func() (string, error) {
			if tree == nil || len(tree.Children) == 0 {
				return "", nil
			}
			stats := pipeline.AggregateSessionTree(tree, pricing)
			return report.ChildSection(stats.ChildSummaries, compact, cfg), nil
		})
	}

	if args.Debug {
		b.Write(report.DebugSection(b.Sections()))
	}

	limits := cfg
	if autoCompact {
		limits = p.compact.Apply(limits)
	}
	return stability.TruncateOutput(b.String(), limits).Content, nil
}
