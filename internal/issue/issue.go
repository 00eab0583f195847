// Package issue files tracking issues for noisy command runs.
package issue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/deixis/cronwatch/internal/runner"
	"go.uber.org/zap"
)

// Issue is a ticket to be filed.
type Issue struct {
	Title  string
	Body   []byte
	Labels []string
}

// CommandRunner executes commands.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error)
}

// ScriptFiler hands issues to an external issue-filing script:
//
//	<script...> --org <org> --repo <repo> --title <title> --body <file> [--label <l>]...
//
// The body is written to a scratch file that is removed before File
// returns, whatever the outcome.
type ScriptFiler struct {
	Runner  CommandRunner
	Script  []string
	Org     string
	Repo    string
	TempDir string // scratch location; empty means os.TempDir()
	Logger  *zap.Logger
}

// File runs the script once and returns whatever it printed, trimmed.
func (f *ScriptFiler) File(ctx context.Context, is Issue) (string, error) {
	if len(f.Script) == 0 {
		return "", errors.New("no issue script configured")
	}

	bodyFile, err := writeScratch(f.TempDir, is.Body)
	if err != nil {
		return "", err
	}
	defer os.Remove(bodyFile)

	argv := append([]string{}, f.Script...)
	argv = append(argv,
		"--org", f.Org,
		"--repo", f.Repo,
		"--title", is.Title,
		"--body", bodyFile,
	)
	for _, l := range is.Labels {
		argv = append(argv, "--label", l)
	}

	res, err := f.Runner.Run(ctx, argv, "")
	if err != nil {
		return "", fmt.Errorf("running issue script: %w", err)
	}
	out := strings.TrimSpace(string(res.Output))
	if res.ExitCode != 0 {
		return "", fmt.Errorf("issue script exited with code %d: %s", res.ExitCode, out)
	}

	logger(f.Logger).Debug("issue filed",
		zap.String("org", f.Org),
		zap.String("repo", f.Repo),
		zap.String("title", is.Title),
		zap.String("ref", out))
	return out, nil
}

// writeScratch stores body in a new uniquely named file and returns its path.
func writeScratch(dir string, body []byte) (string, error) {
	fh, err := os.CreateTemp(dir, "cronwatch-issue-*.txt")
	if err != nil {
		return "", fmt.Errorf("creating scratch file: %w", err)
	}
	name := fh.Name()
	if _, err := fh.Write(body); err != nil {
		fh.Close()
		os.Remove(name)
		return "", fmt.Errorf("writing scratch file: %w", err)
	}
	if err := fh.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("closing scratch file: %w", err)
	}
	return name, nil
}

// LogFiler only logs what would have been filed.
type LogFiler struct {
	Logger *zap.Logger
}

// File logs the issue and returns an empty reference.
func (f *LogFiler) File(_ context.Context, is Issue) (string, error) {
	logger(f.Logger).Info("dry run: issue not filed",
		zap.String("title", is.Title),
		zap.Strings("labels", is.Labels),
		zap.ByteString("body", is.Body))
	return "", nil
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
