// Package mcpserver exposes the gateway operations as MCP tools and prompts
// over stdio.
package mcpserver

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/simon/opsgate/internal/gateway"
)

// Name is the server name reported to MCP clients.
const Name = "Local Server Monitor"

// Server wires a Gateway into an MCP server.
type Server struct {
	gw        *gateway.Gateway
	mcpServer *server.MCPServer
	log       *slog.Logger
}

// New registers every tool and prompt and returns the server.
func New(gw *gateway.Gateway, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		gw:  gw,
		log: logger,
		mcpServer: server.NewMCPServer(Name, version,
			server.WithToolCapabilities(false),
			server.WithPromptCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Serve speaks MCP over in/out until ctx is cancelled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelError))
	s.log.Info("serving MCP over stdio", "name", Name)
	return stdio.Listen(ctx, in, out)
}
