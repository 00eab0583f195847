package main

import (
	"context"
	"fmt"
	"os"

	"github.com/deixis/cronwatch"
	"github.com/deixis/cronwatch/internal/config"
	"github.com/deixis/cronwatch/internal/issue"
	"github.com/deixis/cronwatch/internal/mail"
	"github.com/deixis/cronwatch/internal/report"
	"github.com/deixis/cronwatch/internal/runner"
	"github.com/deixis/cronwatch/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// globals holds flags and state shared by every subcommand.
type globals struct {
	cfgFile string
	verbose bool
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "cronwatch",
		Short: "Run a command and report its output by mail and issue",
		Long: `cronwatch runs a command, captures stdout and stderr together, and if the
command printed anything, mails the output and files a tracking issue.
A command that prints nothing is quiet: cronwatch prints nothing either,
so cron has nothing to mail.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(g.verbose)
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			g.logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = g.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&g.cfgFile, "config", "", "config file (default: .cronwatch in the working directory or a parent, then $HOME/.cronwatch)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(
		newRunCmd(g),
		newInspectCmd(g),
		newMCPCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), cronwatch.Version)
			},
		},
	)
	return root
}

// newLogger logs to stderr. Only warnings and errors are shown unless
// verbose is set: cron mails anything a job writes.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// loadConfig reads the environment and the config file and validates
// the result.
func (g *globals) loadConfig() (*config.Config, string, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, "", err
	}
	workspace, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("determining workspace: %w", err)
	}
	loaded, err := config.Load(workspace, g.cfgFile, env)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	if err := loaded.Config.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	if loaded.Path != "" {
		g.logger.Debug("config loaded", zap.String("path", loaded.Path))
	}
	return loaded.Config, workspace, nil
}

// newEngine wires the notifier from config. With dryRun, mail and
// issues are logged instead of delivered.
func (g *globals) newEngine(ctx context.Context, cfg *config.Config, workspace string, dryRun bool) *workflow.Engine {
	r := &runner.Runner{
		Workspace: workspace,
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
	}

	e := &workflow.Engine{
		Config: cfg,
		Runner: r,
		Logger: g.logger,
	}
	if dir := cfg.StateDirectory(); dir != "" {
		e.Store = report.NewDiskStore(dir)
	}

	if dryRun {
		e.Mailer = &mail.LogMailer{Logger: g.logger}
		e.Filer = &issue.LogFiler{Logger: g.logger}
		return e
	}

	// Collaborators get their own runner: no timeout inherited from the
	// job, and their output is only kept for error messages.
	helper := &runner.Runner{Workspace: workspace, MaxOutput: 64 << 10}
	e.Mailer = &mail.CommandMailer{Runner: helper, Command: cfg.MailCommand(), Logger: g.logger}

	switch cfg.IssueBackend() {
	case config.BackendGitHub:
		e.Filer = issue.NewGitHubFiler(ctx, cfg.Env.GitHubToken, cfg.GitHubAPI(), cfg.IssueOrg(), cfg.IssueRepo(), g.logger)
	case config.BackendScript:
		e.Filer = &issue.ScriptFiler{
			Runner: helper,
			Script: cfg.IssueScript(),
			Org:    cfg.IssueOrg(),
			Repo:   cfg.IssueRepo(),
			Logger: g.logger,
		}
	}
	return e
}
