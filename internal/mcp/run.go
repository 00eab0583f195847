package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/cronwatch/internal/mail"
	"github.com/deixis/cronwatch/internal/report"
	"github.com/deixis/cronwatch/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type runParams struct {
	MailTo  string   `json:"mailto" jsonschema:"comma-separated recipient addresses"`
	Subject string   `json:"subject" jsonschema:"mail subject, also used as the issue title"`
	Command []string `json:"command" jsonschema:"command and arguments, one element per argument"`
	Dir     string   `json:"dir,omitempty" jsonschema:"working directory relative to the server workspace"`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	to, err := mail.ParseRecipients(params.MailTo)
	if err != nil {
		return errorResult(err.Error())
	}

	result, err := h.engine.Notify(ctx, workflow.Request{
		MailTo:  to,
		Subject: params.Subject,
		Argv:    params.Command,
		Dir:     params.Dir,
	})
	if result == nil {
		return errorResult(fmt.Sprintf("run failed: %v", err))
	}

	text := formatRun(result, err)
	if err != nil {
		return errorResult(text)
	}
	return textResult(text)
}

func formatRun(result *workflow.NotifyResult, notifyErr error) string {
	rr := result.RunResult
	var b strings.Builder

	status := "QUIET"
	switch {
	case notifyErr != nil:
		status = "FAILED"
	case result.Notified:
		status = "NOTIFIED"
	}
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Run: %s\n", rr.ID)
	fmt.Fprintf(&b, "Exit code: %d\n", rr.ExitCode)
	fmt.Fprintf(&b, "Output: %d bytes\n", len(rr.Output))
	if s, ok := rr.Step(workflow.StepIssue); ok && s.Status == report.StatusPass && s.Detail != "" {
		fmt.Fprintf(&b, "Issue: %s\n", s.Detail)
	}
	fmt.Fprintln(&b)

	for _, s := range rr.Steps {
		line := fmt.Sprintf("%s: %s", s.Name, s.Status)
		if s.Detail != "" {
			line += " (" + s.Detail + ")"
		}
		fmt.Fprintln(&b, line)
	}

	if notifyErr != nil {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "Error: %v\n", notifyErr)
	}
	if rr.Kind == report.Notified || notifyErr != nil {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "Inspect with cron_inspect(run_id=%q).\n", rr.ID)
	}
	return b.String()
}
