package mcpserver

import (
	"context"
	"fmt"
	"math"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/theirongolddev/ocburn/internal/export"
	"github.com/theirongolddev/ocburn/internal/plugin"
)

// Tool names.
const (
	ToolStats   = "token_stats"
	ToolHistory = "token_history"
	ToolExport  = "token_export"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.statsTool(),
		s.historyTool(),
		s.exportTool(),
	)
}

func (s *Server) statsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(ToolStats,
		mcplib.WithDescription("Show token usage, estimated cost and agent breakdown for an opencode session"),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("Session to report on"),
		),
		mcplib.WithBoolean("include_children",
			mcplib.Description("Include child sessions spawned by subagents"),
		),
		mcplib.WithNumber("trend_days",
			mcplib.Description("Days of history for the trend section"),
			mcplib.DefaultNumber(plugin.DefaultTrendDays),
		),
		mcplib.WithBoolean("compact",
			mcplib.Description("Skip the detailed tables"),
		),
		mcplib.WithBoolean("debug",
			mcplib.Description("Append section sizes"),
		),
		mcplib.WithString("agent_view",
			mcplib.Description("Agent tables to show"),
			mcplib.Enum(plugin.ViewBoth, plugin.ViewExecution, plugin.ViewInitiator),
		),
		mcplib.WithString("agent_sort",
			mcplib.Description("Agent table order"),
			mcplib.Enum("cost", "tokens"),
		),
		mcplib.WithNumber("agent_top_n",
			mcplib.Description("Agents listed before an Others row; 0 lists all within the row limit, negative lists all"),
			mcplib.DefaultNumber(plugin.DefaultAgentTopN),
		),
		mcplib.WithString("scope",
			mcplib.Description("History scope for budget and trends"),
			mcplib.Enum(plugin.ScopeAll, plugin.ScopeProject),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleStats}
}

func (s *Server) historyTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(ToolHistory,
		mcplib.WithDescription("Show saved session costs between two dates with trends"),
		mcplib.WithString("from",
			mcplib.Description("Start date, ISO format (default 30 days ago)"),
		),
		mcplib.WithString("to",
			mcplib.Description("End date, ISO format (default now)"),
		),
		mcplib.WithString("scope",
			mcplib.Description("Limit to the current project or show all"),
			mcplib.Enum(plugin.ScopeAll, plugin.ScopeProject),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleHistory}
}

func (s *Server) exportTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(ToolExport,
		mcplib.WithDescription("Export usage of a session or a date range as JSON, CSV or Markdown"),
		mcplib.WithString("format",
			mcplib.Required(),
			mcplib.Description("Output format"),
			mcplib.Enum(string(export.JSON), string(export.CSV), string(export.Markdown)),
		),
		mcplib.WithString("scope",
			mcplib.Description("Export one session or saved history"),
			mcplib.Enum(plugin.ExportSession, plugin.ExportRange),
		),
		mcplib.WithString("session_id",
			mcplib.Description("Session to export when scope is session"),
		),
		mcplib.WithString("from",
			mcplib.Description("Start date when scope is range"),
		),
		mcplib.WithString("to",
			mcplib.Description("End date when scope is range"),
		),
		mcplib.WithBoolean("include_children",
			mcplib.Description("Include child sessions when scope is session"),
		),
		mcplib.WithString("file_path",
			mcplib.Description("Write the export to this file instead of returning it"),
		),
		mcplib.WithString("history_scope",
			mcplib.Description("History scope when scope is range"),
			mcplib.Enum(plugin.ScopeAll, plugin.ScopeProject),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleExport}
}

func (s *Server) handleStats(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	a := arguments(req.GetArguments())
	args := plugin.StatsArgs{
		SessionID:       a.str("session_id"),
		IncludeChildren: a.boolean("include_children"),
		TrendDays:       a.optInt("trend_days"),
		Compact:         a.boolean("compact"),
		Debug:           a.boolean("debug"),
		AgentView:       a.str("agent_view"),
		AgentSort:       a.str("agent_sort"),
		AgentTopN:       a.optInt("agent_top_n"),
		Scope:           a.str("scope"),
	}
	if a.err != nil {
		return mcplib.NewToolResultError(a.err.Error()), nil
	}
	return s.result(ToolStats, s.reports.TokenStats(ctx, args)), nil
}

func (s *Server) handleHistory(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	a := arguments(req.GetArguments())
	args := plugin.HistoryArgs{
		From:  a.str("from"),
		To:    a.str("to"),
		Scope: a.str("scope"),
	}
	if a.err != nil {
		return mcplib.NewToolResultError(a.err.Error()), nil
	}
	return s.result(ToolHistory, s.reports.TokenHistory(ctx, args)), nil
}

func (s *Server) handleExport(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	a := arguments(req.GetArguments())
	args := plugin.ExportArgs{
		Format:          a.str("format"),
		Scope:           a.str("scope"),
		SessionID:       a.str("session_id"),
		From:            a.str("from"),
		To:              a.str("to"),
		IncludeChildren: a.boolean("include_children"),
		FilePath:        a.str("file_path"),
		HistoryScope:    a.str("history_scope"),
	}
	if a.err != nil {
		return mcplib.NewToolResultError(a.err.Error()), nil
	}
	return s.result(ToolExport, s.reports.TokenExport(ctx, args)), nil
}

func (s *Server) result(tool, text string) *mcplib.CallToolResult {
	s.log.Debug("tool call served", zap.String("tool", tool), zap.Int("chars", len(text)))
	return mcplib.NewToolResultText(text)
}

// argReader pulls typed values from tool arguments, keeping the first type error.
type argReader struct {
	args map[string]any
	err  error
}

func arguments(args map[string]any) *argReader {
	return &argReader{args: args}
}

func (r *argReader) fail(key, want string, v any) {
	if r.err == nil {
		r.err = fmt.Errorf("argument %s: expected %s, got %T", key, want, v)
	}
}

func (r *argReader) str(key string) string {
	v, ok := r.args[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(key, "string", v)
	}
	return s
}

func (r *argReader) boolean(key string) bool {
	v, ok := r.args[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(key, "boolean", v)
	}
	return b
}

// optInt returns nil when key is absent so the report applies its default.
func (r *argReader) optInt(key string) *int {
	v, ok := r.args[key]
	if !ok || v == nil {
		return nil
	}
	var n int
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			r.fail(key, "integer", v)
			return nil
		}
		n = int(x)
	case int:
		n = x
	case int64:
		n = int(x)
	default:
		r.fail(key, "integer", v)
		return nil
	}
	return &n
}
