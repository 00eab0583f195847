package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Format writes a human-readable rendering of a run to w.
func Format(w io.Writer, r *RunResult) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s)\n", r.ID, r.Kind)
	fmt.Fprintf(&b, "Command: %s\n", strings.Join(r.Command, " "))
	fmt.Fprintf(&b, "Subject: %s\n", r.Subject)
	fmt.Fprintf(&b, "Mail to: %s\n", strings.Join(r.MailTo, ", "))
	if !r.Started.IsZero() {
		fmt.Fprintf(&b, "Started: %s (%s)\n", r.Started.Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "Exit code: %d\n", r.ExitCode)
	fmt.Fprintln(&b)

	for _, s := range r.Steps {
		if s.Detail != "" {
			fmt.Fprintf(&b, "  %-6s %s (%s)\n", s.Name, s.Status, s.Detail)
		} else {
			fmt.Fprintf(&b, "  %-6s %s\n", s.Name, s.Status)
		}
	}

	if len(r.Output) > 0 {
		fmt.Fprintln(&b)
		if r.Truncated {
			fmt.Fprintln(&b, "Output (truncated):")
		} else {
			fmt.Fprintln(&b, "Output:")
		}
		for _, line := range strings.Split(strings.TrimRight(string(r.Output), "\n"), "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
