package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deixis/cronwatch/internal/issue"
	"github.com/deixis/cronwatch/internal/mail"
	"github.com/deixis/cronwatch/internal/report"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// exitNotStarted mirrors the shell's status for a command it could not run.
const exitNotStarted = 127

// Request describes one notifier invocation.
type Request struct {
	MailTo  []string // recipients
	Subject string   // mail subject and issue title
	Argv    []string // command and arguments
	Dir     string   // working directory, relative to the runner workspace
}

// Validate reports missing fields.
func (r Request) Validate() error {
	var errs []error
	if len(r.MailTo) == 0 {
		errs = append(errs, errors.New("no recipient"))
	}
	if strings.TrimSpace(r.Subject) == "" {
		errs = append(errs, errors.New("no subject"))
	}
	if len(r.Argv) == 0 {
		errs = append(errs, errors.New("no command"))
	}
	return errors.Join(errs...)
}

// NotifyResult holds the full outcome of a notifier run.
type NotifyResult struct {
	RunResult *report.RunResult
	Notified  bool // true if mail and issue filing were attempted
}

// Notify runs the command and, when its outcome trips the configured
// trigger (by default: any output at all), mails the captured output to
// the recipients and files an issue with the same subject and body.
//
// The command's own exit status is data, not an error. The returned
// error joins every mail and issue failure; both collaborators are
// attempted even if the first one fails.
func (e *Engine) Notify(ctx context.Context, req Request) (*NotifyResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	cfg := e.config()
	log := e.logger().With(zap.String("subject", req.Subject))

	rr := &report.RunResult{
		Kind:    report.Quiet,
		Command: req.Argv,
		Subject: req.Subject,
		MailTo:  req.MailTo,
	}

	// --- Run ---
	log.Debug("running command", zap.Strings("argv", req.Argv))
	output := e.runCommand(ctx, req, rr)
	log.Debug("command finished",
		zap.String("run_id", rr.ID),
		zap.Int("exit_code", rr.ExitCode),
		zap.Int("output_bytes", len(output)))

	// --- Gate ---
	if !shouldNotify(cfg.Trigger(), output, rr.ExitCode) {
		rr.Steps = append(rr.Steps,
			report.Step{Name: StepMail, Status: report.StatusSkipped},
			report.Step{Name: StepIssue, Status: report.StatusSkipped},
		)
		e.record(rr)
		return &NotifyResult{RunResult: rr}, nil
	}
	rr.Kind = report.Notified

	body := output
	if rr.Truncated {
		body = append(append([]byte{}, output...),
			fmt.Sprintf("\n[cronwatch: output truncated at %d bytes]\n", cfg.MaxOutputBytes())...)
	}

	var errs []error

	// --- Mail ---
	if e.Mailer == nil {
		rr.Steps = append(rr.Steps, report.Step{Name: StepMail, Status: report.StatusSkipped, Detail: "mail disabled"})
	} else {
		err := e.Mailer.Send(ctx, mail.Message{
			From:    cfg.MailFrom(),
			To:      req.MailTo,
			Subject: req.Subject,
			Body:    body,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("sending mail: %w", err))
			rr.Steps = append(rr.Steps, report.Step{Name: StepMail, Status: report.StatusFail, Detail: err.Error()})
		} else {
			rr.Steps = append(rr.Steps, report.Step{Name: StepMail, Status: report.StatusPass})
		}
	}

	// --- Issue ---
	if e.Filer == nil {
		rr.Steps = append(rr.Steps, report.Step{Name: StepIssue, Status: report.StatusSkipped, Detail: "issue filing disabled"})
	} else {
		ref, err := e.Filer.File(ctx, issue.Issue{
			Title:  req.Subject,
			Body:   body,
			Labels: cfg.Issue.Labels,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("filing issue: %w", err))
			rr.Steps = append(rr.Steps, report.Step{Name: StepIssue, Status: report.StatusFail, Detail: err.Error()})
		} else {
			rr.Steps = append(rr.Steps, report.Step{Name: StepIssue, Status: report.StatusPass, Detail: ref})
		}
	}

	e.record(rr)
	return &NotifyResult{RunResult: rr, Notified: true}, errors.Join(errs...)
}

// runCommand executes the request and fills the run fields of rr. A
// command that cannot be started yields its start error as output, the
// way a shell reports "command not found" on stderr.
func (e *Engine) runCommand(ctx context.Context, req Request, rr *report.RunResult) []byte {
	res, err := e.Runner.Run(ctx, req.Argv, req.Dir)
	if err != nil {
		rr.ID = uuid.New().String()
		rr.Started = time.Now()
		rr.ExitCode = exitNotStarted
		msg := fmt.Sprintf("cronwatch: %v\n", err)
		rr.Output = []byte(msg)
		rr.Steps = append(rr.Steps, report.Step{Name: StepRun, Status: report.StatusFail, Detail: err.Error()})
		return []byte(msg)
	}

	rr.ID = res.RunID
	rr.ExitCode = res.ExitCode
	rr.Output = res.Output
	rr.Truncated = res.Truncated
	rr.Started = res.Started
	rr.Duration = res.Duration

	step := report.Step{Name: StepRun, Status: report.StatusPass}
	if res.ExitCode != 0 {
		step.Status = report.StatusFail
		step.Detail = fmt.Sprintf("exit code %d", res.ExitCode)
	}
	rr.Steps = append(rr.Steps, step)
	return res.Output
}

// record saves the run. A failing store is logged, never fatal.
func (e *Engine) record(rr *report.RunResult) {
	if e.Store == nil {
		return
	}
	if err := e.Store.Save(rr); err != nil {
		e.logger().Warn("recording run failed", zap.String("run_id", rr.ID), zap.Error(err))
	}
}
