package runner

import "time"

// Result holds the outcome of a command execution.
type Result struct {
	RunID     string        // unique identifier for this run
	ExitCode  int           // process exit code
	Output    []byte        // merged stdout and stderr (may be truncated)
	Truncated bool          // true if output exceeded the size cap
	Started   time.Time     // when the process was started
	Duration  time.Duration // wall time until the process exited
}
