// Package workflow provides the output-gated notifier: it runs a
// command, decides from the captured output whether anyone needs to
// hear about it, and if so mails the output and files an issue. It is
// consumed by both the CLI and the MCP server.
package workflow

import (
	"context"

	"github.com/deixis/cronwatch/internal/config"
	"github.com/deixis/cronwatch/internal/issue"
	"github.com/deixis/cronwatch/internal/mail"
	"github.com/deixis/cronwatch/internal/report"
	"github.com/deixis/cronwatch/internal/runner"
	"go.uber.org/zap"
)

// CommandRunner executes commands within a workspace.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error)
}

// Mailer delivers a notification email.
// Implemented by mail.CommandMailer and mail.LogMailer.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// IssueFiler files a tracking issue and returns a reference to it.
// Implemented by issue.ScriptFiler, issue.GitHubFiler and issue.LogFiler.
type IssueFiler interface {
	File(ctx context.Context, is issue.Issue) (string, error)
}

// Engine holds shared dependencies for notifier runs.
type Engine struct {
	Config *config.Config
	Runner CommandRunner
	Mailer Mailer       // nil skips mail
	Filer  IssueFiler   // nil skips issue filing
	Store  report.Store // nil skips recording
	Logger *zap.Logger  // nil means no logging
}

// Step names, in execution order.
const (
	StepRun   = "run"
	StepMail  = "mail"
	StepIssue = "issue"
)

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Engine) config() *config.Config {
	if e.Config == nil {
		return &config.Config{}
	}
	return e.Config
}
