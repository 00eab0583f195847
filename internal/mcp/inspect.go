package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/cronwatch/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from a cron_run result"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	result, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	var b strings.Builder
	if err := report.Format(&b, result); err != nil {
		return errorResult(fmt.Sprintf("Failed to format run %s: %v", params.RunID, err))
	}
	return textResult(b.String())
}
