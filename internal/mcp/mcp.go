// Package mcp provides the cronwatch MCP server, registering the run
// and inspect tools and publishing model instructions.
package mcp

import (
	_ "embed"

	"github.com/deixis/cronwatch"
	"github.com/deixis/cronwatch/internal/report"
	"github.com/deixis/cronwatch/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	engine *workflow.Engine
	store  report.Store
}

// NewServer creates an MCP server with all cronwatch tools registered.
// store is where cron_inspect looks runs up; the engine should record
// into the same store.
func NewServer(engine *workflow.Engine, store report.Store) *mcp.Server {
	h := &handler{engine: engine, store: store}

	s := mcp.NewServer(&mcp.Implementation{Name: "cronwatch", Version: cronwatch.Version}, &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	})

	mcp.AddTool(s, &mcp.Tool{
		Name: "cron_run",
		Description: `Run a command and, if it prints anything, email its output and file an issue.

Stdout and stderr are captured together. Quiet commands notify nobody.
The result carries a run ID for cron_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "cron_inspect",
		Description: "Show a recorded run: command, exit code, step outcomes and captured output.",
	}, h.inspectHandler)

	return s
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
