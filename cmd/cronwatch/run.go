package main

import (
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/deixis/cronwatch/internal/mail"
	"github.com/deixis/cronwatch/internal/report"
	"github.com/deixis/cronwatch/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runFlags struct {
	mailTo     string
	subject    string
	shell      bool
	dir        string
	dryRun     bool
	jsonOutput bool
}

func newRunCmd(g *globals) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run --mailto <addr> --subject <text> [flags] -- <command> [args...]",
		Short: "Run a command and report any output",
		Long: `Run executes the command with stdout and stderr merged. If it printed
anything, the output is mailed to the recipients with the given subject and
an issue is filed with the same subject as title and the output as body.

The recipient and subject may also be given positionally, ahead of the
command, the way the shell helper is called:

  cronwatch run ops@example.org "nightly import" -- /usr/local/bin/import --nightly

Examples:
  cronwatch run --mailto ops@example.org --subject "backup" -- /usr/local/bin/backup
  cronwatch run --mailto ops@example.org --subject "cleanup" --shell -- 'find /tmp -mtime +7 -delete -print'
  cronwatch run --dry-run -v --mailto me@example.org --subject test -- echo hello`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(cmd, g, f, args)
		},
	}

	cmd.Flags().StringVar(&f.mailTo, "mailto", "", "comma-separated recipients")
	cmd.Flags().StringVar(&f.subject, "subject", "", "mail subject and issue title")
	cmd.Flags().BoolVar(&f.shell, "shell", false, "run the arguments as one shell command line")
	cmd.Flags().StringVar(&f.dir, "dir", "", "working directory, relative to the current one")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "log mail and issues instead of sending them")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "print the run record as JSON")
	return cmd
}

func runNotify(cmd *cobra.Command, g *globals, f runFlags, args []string) error {
	mailTo, subject, argv := f.mailTo, f.subject, args
	if mailTo == "" && subject == "" {
		if len(args) < 3 {
			return errors.New("need --mailto and --subject, or <mailto> <subject> <command>")
		}
		mailTo, subject, argv = args[0], args[1], args[2:]
	}

	to, err := mail.ParseRecipients(mailTo)
	if err != nil {
		return err
	}

	cfg, workspace, err := g.loadConfig()
	if err != nil {
		return err
	}
	if f.shell {
		argv = []string{cfg.ShellPath(), "-c", strings.Join(argv, " ")}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := g.newEngine(ctx, cfg, workspace, f.dryRun)
	result, notifyErr := engine.Notify(ctx, workflow.Request{
		MailTo:  to,
		Subject: subject,
		Argv:    argv,
		Dir:     f.dir,
	})
	if result == nil {
		return notifyErr
	}

	rr := result.RunResult
	g.logger.Debug("run complete",
		zap.String("run_id", rr.ID),
		zap.String("kind", string(rr.Kind)),
		zap.Int("exit_code", rr.ExitCode))
	if s, ok := rr.Step(workflow.StepIssue); ok && s.Status == report.StatusPass {
		g.logger.Info("issue filed", zap.String("run_id", rr.ID), zap.String("ref", s.Detail))
	}

	if f.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(rr); err != nil {
			return err
		}
	}

	if notifyErr != nil {
		for _, s := range rr.Failed() {
			if s.Name == workflow.StepRun {
				continue
			}
			g.logger.Error("notification step failed",
				zap.String("run_id", rr.ID),
				zap.String("step", s.Name),
				zap.String("detail", s.Detail))
		}
		return notifyErr
	}
	return nil
}
