package mcpserver

import (
	"context"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/theirongolddev/ocburn/internal/plugin"
)

type fakeReporter struct {
	stats   []plugin.StatsArgs
	history []plugin.HistoryArgs
	exports []plugin.ExportArgs
}

func (f *fakeReporter) TokenStats(_ context.Context, a plugin.StatsArgs) string {
	f.stats = append(f.stats, a)
	return "stats for " + a.SessionID
}

func (f *fakeReporter) TokenHistory(_ context.Context, a plugin.HistoryArgs) string {
	f.history = append(f.history, a)
	return "history " + a.From + ".." + a.To
}

func (f *fakeReporter) TokenExport(_ context.Context, a plugin.ExportArgs) string {
	f.exports = append(f.exports, a)
	return "export " + a.Format
}

func call(t *testing.T, s *Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tool, ok := s.MCPServer().ListTools()[name]
	require.True(t, ok, "tool %s not registered", name)

	result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	return result
}

func text(t *testing.T, r *mcplib.CallToolResult) string {
	t.Helper()
	tc, ok := r.Content[0].(mcplib.TextContent)
	require.True(t, ok, "expected TextContent, got %T", r.Content[0])
	return tc.Text
}

func TestToolRegistration(t *testing.T) {
	s := New(&fakeReporter{}, "test", zap.NewNop())

	tools := s.MCPServer().ListTools()
	require.Len(t, tools, 3)
	for _, name := range []string{ToolStats, ToolHistory, ToolExport} {
		assert.Contains(t, tools, name)
	}

	stats := tools[ToolStats].Tool.InputSchema
	assert.Equal(t, []string{"session_id"}, stats.Required)
	for _, prop := range []string{"include_children", "trend_days", "compact", "debug", "agent_view", "agent_sort", "agent_top_n", "scope"} {
		assert.Contains(t, stats.Properties, prop)
	}
	assert.Equal(t, []string{"format"}, tools[ToolExport].Tool.InputSchema.Required)
}

func TestHandleStats(t *testing.T) {
	rep := &fakeReporter{}
	s := New(rep, "test", nil)

	r := call(t, s, ToolStats, map[string]any{
		"session_id":  "ses_1",
		"compact":     true,
		"trend_days":  float64(14),
		"agent_top_n": float64(-1),
		"agent_view":  "execution",
	})

	assert.False(t, r.IsError)
	assert.Equal(t, "stats for ses_1", text(t, r))
	require.Len(t, rep.stats, 1)
	got := rep.stats[0]
	assert.True(t, got.Compact)
	assert.False(t, got.Debug)
	require.NotNil(t, got.TrendDays)
	assert.Equal(t, 14, *got.TrendDays)
	require.NotNil(t, got.AgentTopN)
	assert.Equal(t, -1, *got.AgentTopN)
	assert.Equal(t, plugin.ViewExecution, got.AgentView)
}

func TestHandleStats_DefaultsLeftNil(t *testing.T) {
	rep := &fakeReporter{}
	s := New(rep, "test", nil)

	call(t, s, ToolStats, map[string]any{"session_id": "ses_1"})

	require.Len(t, rep.stats, 1)
	assert.Nil(t, rep.stats[0].TrendDays)
	assert.Nil(t, rep.stats[0].AgentTopN)
}

func TestHandleStats_TypeErrors(t *testing.T) {
	rep := &fakeReporter{}
	s := New(rep, "test", nil)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"string as bool", map[string]any{"session_id": "s", "compact": "yes"}, "argument compact: expected boolean, got string"},
		{"fractional int", map[string]any{"session_id": "s", "trend_days": 1.5}, "argument trend_days: expected integer, got float64"},
		{"number as string", map[string]any{"session_id": float64(3)}, "argument session_id: expected string, got float64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := call(t, s, ToolStats, tt.args)
			assert.True(t, r.IsError)
			assert.Equal(t, tt.want, text(t, r))
		})
	}
	assert.Empty(t, rep.stats)
}

func TestHandleHistory(t *testing.T) {
	rep := &fakeReporter{}
	s := New(rep, "test", nil)

	r := call(t, s, ToolHistory, map[string]any{"from": "2026-01-01", "to": "2026-01-31", "scope": "project"})

	assert.Equal(t, "history 2026-01-01..2026-01-31", text(t, r))
	assert.Equal(t, []plugin.HistoryArgs{{From: "2026-01-01", To: "2026-01-31", Scope: "project"}}, rep.history)
}

func TestHandleExport(t *testing.T) {
	rep := &fakeReporter{}
	s := New(rep, "test", nil)

	r := call(t, s, ToolExport, map[string]any{
		"format":           "csv",
		"scope":            "session",
		"session_id":       "ses_9",
		"include_children": true,
		"file_path":        "/tmp/out.csv",
	})

	assert.Equal(t, "export csv", text(t, r))
	assert.Equal(t, []plugin.ExportArgs{{
		Format:          "csv",
		Scope:           "session",
		SessionID:       "ses_9",
		IncludeChildren: true,
		FilePath:        "/tmp/out.csv",
	}}, rep.exports)
}
