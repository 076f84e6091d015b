// Package pipeline aggregates opencode message telemetry into token and cost breakdowns.
package pipeline

import (
	"sort"
	"strings"

	"github.com/theirongolddev/ocburn/internal/model"
)

const (
	maxToolTitle   = 60
	toolTitleKeep  = 57
	othersRowLabel = "Others"
)

// AggregateTokens sums token usage across all messages.
func AggregateTokens(msgs []model.AssistantMessage) model.TokenStats {
	var stats model.TokenStats
	for _, m := range msgs {
		stats.Add(m.Tokens)
	}
	return stats
}

// AggregateByModel groups token usage by "provider/model".
func AggregateByModel(msgs []model.AssistantMessage) model.TokenStatsByModel {
	byModel := make(model.TokenStatsByModel)
	for _, m := range msgs {
		key := m.ModelKey()
		s := byModel[key]
		s.Add(m.Tokens)
		byModel[key] = s
	}
	return byModel
}

// AggregateByAgent groups token usage by execution agent (the message mode).
func AggregateByAgent(msgs []model.AssistantMessage) model.TokenStatsByAgent {
	byAgent := make(model.TokenStatsByAgent)
	for _, m := range msgs {
		addAgent(byAgent, m.Agent(), m.Tokens)
	}
	return byAgent
}

// AggregateByAgentModel groups token usage by execution agent and model.
func AggregateByAgentModel(msgs []model.AssistantMessage) model.TokenStatsByAgentModel {
	return aggregateAgentModel(msgs, func(m model.AssistantMessage) string { return m.Agent() })
}

// AggregateByInitiator groups token usage by the agent of the user message that
// triggered each reply (matched through parentID).
func AggregateByInitiator(msgs []model.AssistantMessage, users []model.UserMessage) model.TokenStatsByAgent {
	initiator := initiatorLookup(users)
	byInitiator := make(model.TokenStatsByAgent)
	for _, m := range msgs {
		addAgent(byInitiator, initiator(m), m.Tokens)
	}
	return byInitiator
}

// AggregateByInitiatorModel groups token usage by initiator agent and model.
func AggregateByInitiatorModel(msgs []model.AssistantMessage, users []model.UserMessage) model.TokenStatsByAgentModel {
	return aggregateAgentModel(msgs, initiatorLookup(users))
}

func aggregateAgentModel(msgs []model.AssistantMessage, agentOf func(model.AssistantMessage) string) model.TokenStatsByAgentModel {
	out := make(model.TokenStatsByAgentModel)
	for _, m := range msgs {
		agent := agentOf(m)
		modelKey := m.ModelKey()
		key := model.AgentModelKey(agent, modelKey)

		s, ok := out[key]
		if !ok {
			s = model.AgentModelTokenStats{Agent: agent, Model: modelKey}
		}
		s.Add(m.Tokens)
		s.MessageCount++
		out[key] = s
	}
	return out
}

func initiatorLookup(users []model.UserMessage) func(model.AssistantMessage) string {
	agentByID := make(map[string]string, len(users))
	for _, u := range users {
		agentByID[u.ID] = u.Agent
	}
	return func(m model.AssistantMessage) string {
		return model.AgentOrUnknown(agentByID[m.ParentID])
	}
}

func addAgent(byAgent model.TokenStatsByAgent, agent string, t model.Tokens) {
	s := byAgent[agent]
	s.Add(t)
	s.MessageCount++
	byAgent[agent] = s
}

// ToolCallSummary aggregates completed calls of one tool.
type ToolCallSummary struct {
	Tool      string           `json:"tool"`
	Title     string           `json:"title"`
	CallCount int              `json:"callCount"`
	Tokens    model.TokenStats `json:"tokens"`
	Cost      float64          `json:"cost"`
}

// AggregateToolAttribution credits each completed tool call with the tokens and
// cost of its adjacent step-finish part: the next part first, then the previous.
// Pending, running and failed calls are skipped. Only the completed-state title is
// surfaced, never tool input or output.
func AggregateToolAttribution(parts []model.Part) map[string]*ToolCallSummary {
	byTool := make(map[string]*ToolCallSummary)

	for i, p := range parts {
		if p.Type != model.PartTool || p.Status != model.ToolCompleted {
			continue
		}

		name := p.Tool
		if strings.TrimSpace(name) == "" {
			name = model.UnknownAgent
		}

		summary, ok := byTool[name]
		if !ok {
			title := name
			if p.HasTitle {
				title = p.Title
			}
			summary = &ToolCallSummary{Tool: name, Title: truncateTitle(title)}
			byTool[name] = summary
		}

		summary.CallCount++
		if step, ok := adjacentStepFinish(parts, i); ok {
			summary.Tokens.Add(step.Tokens)
			summary.Cost += step.Cost
		}
	}

	return byTool
}

func adjacentStepFinish(parts []model.Part, i int) (model.Part, bool) {
	if i+1 < len(parts) && parts[i+1].Type == model.PartStepFinish {
		return parts[i+1], true
	}
	if i > 0 && parts[i-1].Type == model.PartStepFinish {
		return parts[i-1], true
	}
	return model.Part{}, false
}

func truncateTitle(title string) string {
	r := []rune(title)
	if len(r) <= maxToolTitle {
		return title
	}
	return string(r[:toolTitleKeep]) + "..."
}

// SortBy selects the Top-N ranking metric.
type SortBy string

// Top-N ranking metrics.
const (
	SortByCost   SortBy = "cost"
	SortByTokens SortBy = "tokens"
)

// AgentRow is one row of an agent breakdown table.
type AgentRow struct {
	Agent string
	Stats model.AgentTokenStats
	Cost  float64
}

// OthersRow folds every agent beyond the Top-N cutoff.
type OthersRow struct {
	AgentRow
	Count int
}

// TopNResult holds ranked agent rows plus an optional Others aggregate.
type TopNResult struct {
	Rows   []AgentRow
	Others *OthersRow
}

// TopNAgents ranks agents descending by cost (or total tokens), breaking ties by
// ascending name. When 0 < n < len(stats) the tail is folded into one Others row
// whose stats and cost are the element-wise sum of the folded rows.
func TopNAgents(stats model.TokenStatsByAgent, costs map[string]float64, n int, sortBy SortBy) TopNResult {
	if len(stats) == 0 {
		return TopNResult{Rows: []AgentRow{}}
	}

	rows := make([]AgentRow, 0, len(stats))
	for agent, s := range stats {
		rows = append(rows, AgentRow{Agent: agent, Stats: s, Cost: costs[agent]})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if sortBy == SortByTokens {
			if a.Stats.Total != b.Stats.Total {
				return a.Stats.Total > b.Stats.Total
			}
		} else if a.Cost != b.Cost {
			return a.Cost > b.Cost
		}
		return a.Agent < b.Agent
	})

	if n <= 0 || n >= len(rows) {
		return TopNResult{Rows: rows}
	}

	others := &OthersRow{AgentRow: AgentRow{Agent: othersRowLabel}}
	for _, r := range rows[n:] {
		others.Stats.Merge(r.Stats.TokenStats)
		others.Stats.MessageCount += r.Stats.MessageCount
		others.Cost += r.Cost
		others.Count++
	}

	return TopNResult{Rows: rows[:n], Others: others}
}

// AllAgents returns every agent row sorted by name with no ranking or folding.
// Callers apply the table row limit themselves.
func AllAgents(stats model.TokenStatsByAgent, costs map[string]float64) []AgentRow {
	names := make([]string, 0, len(stats))
	for agent := range stats {
		names = append(names, agent)
	}
	sort.Strings(names)

	rows := make([]AgentRow, 0, len(names))
	for _, agent := range names {
		rows = append(rows, AgentRow{Agent: agent, Stats: stats[agent], Cost: costs[agent]})
	}
	return rows
}

// ModelKeys returns the keys of byModel sorted ascending.
func ModelKeys(byModel model.TokenStatsByModel) []string {
	keys := make([]string, 0, len(byModel))
	for k := range byModel {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
