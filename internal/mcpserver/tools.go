package mcpserver

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(pingServerTool(), s.handlePingServer)
	s.mcpServer.AddTool(connectSSHTool(), s.handleConnectSSH)
	s.mcpServer.AddTool(disconnectSSHTool(), s.handleDisconnectSSH)
	s.mcpServer.AddTool(runRemoteCommandTool(), s.handleRunRemoteCommand)
	s.mcpServer.AddTool(listServicesTool(), s.handleListServices)
	s.mcpServer.AddTool(filesystemCommandTool(), s.handleFilesystemCommand)
}

// Tool definitions

func pingServerTool() mcp.Tool {
	return mcp.NewTool("ping_server",
		mcp.WithDescription("Ping a server and return the response"),
		mcp.WithString("address",
			mcp.Required(),
			mcp.Description("Hostname or IP address to probe"),
		),
	)
}

func connectSSHTool() mcp.Tool {
	return mcp.NewTool("connect_ssh",
		mcp.WithDescription("Connect to a server via SSH using the configured credentials; replaces any existing session"),
		mcp.WithString("host",
			mcp.Required(),
			mcp.Description("SSH host, optionally host:port"),
		),
	)
}

func disconnectSSHTool() mcp.Tool {
	return mcp.NewTool("disconnect_ssh",
		mcp.WithDescription("Close the active SSH session, if any"),
	)
}

func runRemoteCommandTool() mcp.Tool {
	return mcp.NewTool("run_remote_command",
		mcp.WithDescription("Run a command on the connected SSH host"),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("The command line to execute remotely"),
		),
	)
}

func listServicesTool() mcp.Tool {
	return mcp.NewTool("list_services",
		mcp.WithDescription("List all running services on the server"),
	)
}

func filesystemCommandTool() mcp.Tool {
	return mcp.NewTool("filesystem_command",
		mcp.WithDescription("Run safe filesystem commands (ls, du, stat, cat, find)"),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("Command and flags, e.g. 'du -sh'; the verb must be allowlisted"),
		),
		mcp.WithString("path",
			mcp.Description("Target path"),
			mcp.DefaultString("."),
		),
	)
}

// Tool handlers. Every handler answers with text, including on failure.

func (s *Server) handlePingServer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address := mcp.ParseString(req, "address", "")
	if address == "" {
		return mcp.NewToolResultText("address is required"), nil
	}
	return mcp.NewToolResultText(s.gw.Ping(ctx, address).Text), nil
}

func (s *Server) handleConnectSSH(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	host := mcp.ParseString(req, "host", "")
	if host == "" {
		return mcp.NewToolResultText("host is required"), nil
	}
	s.log.Info("connecting", slog.String("host", host))
	return mcp.NewToolResultText(s.gw.Connect(ctx, host).Text), nil
}

func (s *Server) handleDisconnectSSH(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.gw.Disconnect(ctx).Text), nil
}

func (s *Server) handleRunRemoteCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command := mcp.ParseString(req, "command", "")
	if command == "" {
		return mcp.NewToolResultText("command is required"), nil
	}
	return mcp.NewToolResultText(s.gw.RunRemote(ctx, command).Text), nil
}

func (s *Server) handleListServices(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.gw.ListServices(ctx).Text), nil
}

func (s *Server) handleFilesystemCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command := mcp.ParseString(req, "command", "")
	path := mcp.ParseString(req, "path", ".")
	return mcp.NewToolResultText(s.gw.Filesystem(ctx, command, path).Text), nil
}
