// Package mcpserver exposes the usage reports as MCP tools over stdio.
package mcpserver

import (
	"context"
	"io"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/theirongolddev/ocburn/internal/plugin"
)

// Name is the MCP implementation name.
const Name = "ocburn"

// Reporter renders the three usage reports. *plugin.Plugin implements it.
type Reporter interface {
	TokenStats(ctx context.Context, args plugin.StatsArgs) string
	TokenHistory(ctx context.Context, args plugin.HistoryArgs) string
	TokenExport(ctx context.Context, args plugin.ExportArgs) string
}

// Server wraps an MCP server with the ocburn tools registered.
type Server struct {
	mcpServer *mcpserver.MCPServer
	reports   Reporter
	log       *zap.Logger
}

// New returns a server answering tool calls from reports.
func New(reports Reporter, version string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		mcpServer: mcpserver.NewMCPServer(Name, version, mcpserver.WithToolCapabilities(true)),
		reports:   reports,
		log:       log,
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Serve speaks MCP on in and out until ctx is cancelled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.log.Info("mcp server listening on stdio", zap.Int("tools", len(s.mcpServer.ListTools())))
	return mcpserver.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
}
