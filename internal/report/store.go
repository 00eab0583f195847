// Package report persists and retrieves the record of each cronwatch
// invocation so a notification can be traced back to the run behind it.
package report

import "time"

// Kind classifies a run by whether it notified anyone.
type Kind string

const (
	// Quiet is a run whose outcome did not trigger a notification.
	Quiet Kind = "quiet"
	// Notified is a run that attempted mail and issue filing.
	Notified Kind = "notified"
)

// Step statuses.
const (
	StatusPass    = "pass"
	StatusFail    = "fail"
	StatusSkipped = "skipped"
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult is the record of one invocation.
type RunResult struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"kind"`
	Command   []string      `json:"command"`
	Subject   string        `json:"subject"`
	MailTo    []string      `json:"mail_to"`
	ExitCode  int           `json:"exit_code"`
	Output    []byte        `json:"output,omitempty"` // raw bytes, base64 in JSON
	Truncated bool          `json:"truncated,omitempty"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
	Steps     []Step        `json:"steps"`
}

// Step is the outcome of one stage of a run (run, mail, issue).
type Step struct {
	Name   string `json:"name"`
	Status string `json:"status"`           // pass, fail, skipped
	Detail string `json:"detail,omitempty"` // error text or issue reference
}

// Step returns the named step, or false if the run has none.
func (r *RunResult) Step(name string) (Step, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

// Failed returns the steps that did not pass or skip.
func (r *RunResult) Failed() []Step {
	var out []Step
	for _, s := range r.Steps {
		if s.Status == StatusFail {
			out = append(out, s)
		}
	}
	return out
}
