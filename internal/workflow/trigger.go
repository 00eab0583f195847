package workflow

import "github.com/deixis/cronwatch/internal/config"

// shouldNotify applies the configured trigger to a finished command.
// Unknown triggers fall back to the output rule.
func shouldNotify(t config.Trigger, output []byte, exitCode int) bool {
	hasOutput := len(output) > 0
	failed := exitCode != 0
	switch t {
	case config.TriggerFailure:
		return failed
	case config.TriggerOutputOrFailure:
		return hasOutput || failed
	default:
		return hasOutput
	}
}
