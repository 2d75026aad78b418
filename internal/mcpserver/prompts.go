package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt("list_services_prompt",
		mcp.WithPromptDescription("Ask for the running services on the server"),
	), textPrompt(func(map[string]string) string {
		return "List all running services on the server."
	}))

	s.mcpServer.AddPrompt(mcp.NewPrompt("disk_usage_prompt",
		mcp.WithPromptDescription("Summarize disk usage under a directory"),
		mcp.WithArgument("path", mcp.ArgumentDescription("Directory to inspect (default /)")),
	), textPrompt(func(args map[string]string) string {
		return fmt.Sprintf("Check the disk usage of the directory %s and summarize the largest files or folders.", argOr(args, "path", "/"))
	}))

	s.mcpServer.AddPrompt(mcp.NewPrompt("list_directory_prompt",
		mcp.WithPromptDescription("List a directory including hidden entries"),
		mcp.WithArgument("path", mcp.ArgumentDescription("Directory to list (default .)")),
	), textPrompt(func(args map[string]string) string {
		return fmt.Sprintf("List all files and directories inside %s, including hidden ones.", argOr(args, "path", "."))
	}))

	s.mcpServer.AddPrompt(mcp.NewPrompt("find_file_prompt",
		mcp.WithPromptDescription("Find files by name from the root directory"),
		mcp.WithArgument("filename", mcp.RequiredArgument(), mcp.ArgumentDescription("File name to search for")),
	), textPrompt(func(args map[string]string) string {
		return fmt.Sprintf("Find all files named %s starting from the root directory.", args["filename"])
	}))
}

func textPrompt(render func(args map[string]string) string) func(context.Context, mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return func(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		text := render(req.Params.Arguments)
		return mcp.NewGetPromptResult("", []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		}), nil
	}
}

func argOr(args map[string]string, key, def string) string {
	if v := args[key]; v != "" {
		return v
	}
	return def
}
