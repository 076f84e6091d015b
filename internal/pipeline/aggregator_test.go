package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/ocburn/internal/model"
)

func msg(id, parent, provider, modelID, mode string, in, out, reasoning, cr, cw int64) model.AssistantMessage {
	return model.AssistantMessage{
		ID:         id,
		SessionID:  "ses_1",
		ParentID:   parent,
		ProviderID: provider,
		ModelID:    modelID,
		Mode:       mode,
		Tokens: model.Tokens{
			Input:     in,
			Output:    out,
			Reasoning: reasoning,
			Cache:     model.CacheStats{Read: cr, Write: cw},
		},
	}
}

func sampleMessages() []model.AssistantMessage {
	return []model.AssistantMessage{
		msg("a1", "u1", "anthropic", "claude-sonnet-4", "build", 1000, 200, 50, 300, 10),
		msg("a2", "u1", "openai", "gpt-4o", "plan", 500, 100, 0, 0, 0),
		msg("a3", "u2", "anthropic", "claude-sonnet-4", "", 250, 50, 10, 0, 5),
		msg("a4", "u9", "openai", "gpt-4o", "  ", 10, 1, 0, 0, 0),
	}
}

func sampleUsers() []model.UserMessage {
	return []model.UserMessage{
		{ID: "u1", Agent: "build"},
		{ID: "u2", Agent: " "},
	}
}

func TestAggregateTokens_SumInvariant(t *testing.T) {
	got := AggregateTokens(sampleMessages())

	want := model.TokenStats{
		Input:     1760,
		Output:    351,
		Total:     2111,
		Reasoning: 60,
		Cache:     model.CacheStats{Read: 300, Write: 15},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("AggregateTokens mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, got.Input+got.Output, got.Total)
}

func TestAggregateTokens_Empty(t *testing.T) {
	assert.Equal(t, model.TokenStats{}, AggregateTokens(nil))
}

func sumStats[T any](groups map[string]T, stats func(T) model.TokenStats) model.TokenStats {
	var total model.TokenStats
	for _, g := range groups {
		total.Merge(stats(g))
	}
	return total
}

func TestGroupings_PartitionFlatAggregate(t *testing.T) {
	msgs := sampleMessages()
	flat := AggregateTokens(msgs)

	byModel := AggregateByModel(msgs)
	assert.Equal(t, flat, sumStats(byModel, func(s model.TokenStats) model.TokenStats { return s }))

	byAgent := AggregateByAgent(msgs)
	assert.Equal(t, flat, sumStats(byAgent, func(s model.AgentTokenStats) model.TokenStats { return s.TokenStats }))

	byAgentModel := AggregateByAgentModel(msgs)
	assert.Equal(t, flat, sumStats(byAgentModel, func(s model.AgentModelTokenStats) model.TokenStats { return s.TokenStats }))

	byInitiator := AggregateByInitiator(msgs, sampleUsers())
	assert.Equal(t, flat, sumStats(byInitiator, func(s model.AgentTokenStats) model.TokenStats { return s.TokenStats }))

	count := 0
	for _, s := range byAgent {
		count += s.MessageCount
	}
	assert.Equal(t, len(msgs), count)
}

func TestAggregateByAgent_UnknownForBlankMode(t *testing.T) {
	byAgent := AggregateByAgent(sampleMessages())

	require.Contains(t, byAgent, model.UnknownAgent)
	assert.Equal(t, 2, byAgent[model.UnknownAgent].MessageCount)
	assert.Equal(t, int64(260), byAgent[model.UnknownAgent].Input)
	assert.Len(t, byAgent, 3)
}

func TestAggregateByAgentModel_Keys(t *testing.T) {
	got := AggregateByAgentModel(sampleMessages())

	entry, ok := got["build|anthropic/claude-sonnet-4"]
	require.True(t, ok)
	assert.Equal(t, "build", entry.Agent)
	assert.Equal(t, "anthropic/claude-sonnet-4", entry.Model)
	assert.Equal(t, 1, entry.MessageCount)

	_, ok = got["unknown|openai/gpt-4o"]
	assert.True(t, ok)
}

func TestAggregateByInitiator(t *testing.T) {
	got := AggregateByInitiator(sampleMessages(), sampleUsers())

	// u1 is build; u2 has a blank agent and u9 has no user message.
	assert.Equal(t, 2, got["build"].MessageCount)
	assert.Equal(t, int64(1500), got["build"].Input)
	assert.Equal(t, 2, got[model.UnknownAgent].MessageCount)
	assert.Len(t, got, 2)
}

func TestAggregateToolAttribution(t *testing.T) {
	long := "this title is definitely going to be longer than sixty characters in total"
	parts := []model.Part{
		{Type: model.PartStepFinish, Tokens: model.Tokens{Input: 7, Output: 3}, Cost: 0.5},
		{Type: model.PartTool, Tool: "bash", Status: model.ToolCompleted, Title: "ls -la", HasTitle: true},
		{Type: model.PartStepFinish, Tokens: model.Tokens{Input: 100, Output: 20}, Cost: 0.25},
		{Type: model.PartTool, Tool: "bash", Status: model.ToolCompleted, Title: "second title", HasTitle: true},
		{Type: model.PartTool, Tool: "read", Status: "running"},
		{Type: model.PartTool, Tool: "edit", Status: "error"},
		{Type: "text"},
		{Type: model.PartTool, Tool: "grep", Status: model.ToolCompleted, Title: long, HasTitle: true},
		{Type: model.PartTool, Tool: "", Status: model.ToolCompleted},
	}

	got := AggregateToolAttribution(parts)

	require.Len(t, got, 3)

	bash := got["bash"]
	assert.Equal(t, "ls -la", bash.Title)
	assert.Equal(t, 2, bash.CallCount)
	// First call takes the following step; the second falls back to the preceding one.
	assert.Equal(t, int64(200), bash.Tokens.Input)
	assert.Equal(t, int64(40), bash.Tokens.Output)
	assert.InDelta(t, 0.5, bash.Cost, 1e-12)

	grep := got["grep"]
	assert.Len(t, []rune(grep.Title), 60)
	assert.Equal(t, long[:57]+"...", grep.Title)
	assert.Zero(t, grep.Tokens.Total)

	unknown := got[model.UnknownAgent]
	require.NotNil(t, unknown)
	assert.Equal(t, model.UnknownAgent, unknown.Title)
}

func TestAggregateToolAttribution_TitleAtLimitKept(t *testing.T) {
	title := "123456789012345678901234567890123456789012345678901234567890"
	got := AggregateToolAttribution([]model.Part{
		{Type: model.PartTool, Tool: "t", Status: model.ToolCompleted, Title: title, HasTitle: true},
	})
	assert.Equal(t, title, got["t"].Title)
}

func agentStats(total int64, count int) model.AgentTokenStats {
	return model.AgentTokenStats{
		TokenStats:   model.TokenStats{Input: total, Total: total},
		MessageCount: count,
	}
}

func TestTopNAgents_Conservation(t *testing.T) {
	stats := model.TokenStatsByAgent{
		"alpha": agentStats(100, 1),
		"beta":  agentStats(300, 2),
		"gamma": agentStats(200, 3),
		"delta": agentStats(50, 4),
	}
	costs := map[string]float64{"alpha": 1, "beta": 3, "gamma": 2, "delta": 0.5}

	res := TopNAgents(stats, costs, 2, SortByCost)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "beta", res.Rows[0].Agent)
	assert.Equal(t, "gamma", res.Rows[1].Agent)
	require.NotNil(t, res.Others)
	assert.Equal(t, 2, res.Others.Count)
	assert.Equal(t, int64(150), res.Others.Stats.Total)
	assert.Equal(t, 5, res.Others.Stats.MessageCount)
	assert.InDelta(t, 1.5, res.Others.Cost, 1e-12)

	var total float64
	var tokens int64
	for _, r := range res.Rows {
		total += r.Cost
		tokens += r.Stats.Total
	}
	assert.InDelta(t, 6.5, total+res.Others.Cost, 1e-12)
	assert.Equal(t, int64(650), tokens+res.Others.Stats.Total)
}

func TestTopNAgents_TiesAndTokens(t *testing.T) {
	stats := model.TokenStatsByAgent{
		"b": agentStats(10, 1),
		"a": agentStats(10, 1),
		"c": agentStats(20, 1),
	}

	res := TopNAgents(stats, map[string]float64{}, 0, SortByTokens)

	names := make([]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		names = append(names, r.Agent)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
	assert.Nil(t, res.Others)
}

func TestTopNAgents_Bounds(t *testing.T) {
	stats := model.TokenStatsByAgent{"a": agentStats(1, 1), "b": agentStats(2, 1)}

	for _, n := range []int{-1, 0, 2, 5} {
		res := TopNAgents(stats, nil, n, SortByCost)
		assert.Len(t, res.Rows, 2, "n=%d", n)
		assert.Nil(t, res.Others, "n=%d", n)
	}

	empty := TopNAgents(model.TokenStatsByAgent{}, nil, 3, SortByCost)
	assert.Empty(t, empty.Rows)
	assert.Nil(t, empty.Others)
}
