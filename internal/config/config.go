// Package config loads and validates the optional .cronwatch YAML file
// and the environment it is interpreted against.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the config file searched for on disk.
const FileName = ".cronwatch"

// Default values for runner and collaborator configuration.
const (
	DefaultTimeout   = time.Duration(0) // no timeout
	DefaultMaxOutput = 1 << 20          // 1 MB
	DefaultShell     = "/bin/sh"
	DefaultIssueOrg  = "sibis-platform"
	DefaultIssueRepo = "ncanda-operations"
	DefaultGitHubAPI = "https://api.github.com"
)

// Trigger decides which command outcomes produce a notification.
type Trigger string

const (
	// TriggerOutput notifies whenever the command printed anything.
	TriggerOutput Trigger = "output"
	// TriggerFailure notifies only when the command exited non-zero.
	TriggerFailure Trigger = "failure"
	// TriggerOutputOrFailure notifies on either condition.
	TriggerOutputOrFailure Trigger = "output_or_failure"
)

// Issue backends.
const (
	BackendScript = "script"
	BackendGitHub = "github"
	BackendNone   = "none"
)

// Config holds the parsed .cronwatch configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int         `yaml:"version"`
	RawTimeout   string      `yaml:"timeout"`    // e.g. "30m"; empty or "0" disables
	RawMaxOutput int         `yaml:"max_output"` // bytes
	Shell        string      `yaml:"shell"`      // used by run --shell
	RawTrigger   string      `yaml:"trigger"`
	StateDir     string      `yaml:"state_dir"` // where run reports are kept
	Mail         MailConfig  `yaml:"mail"`
	Issue        IssueConfig `yaml:"issue"`

	// Env is the process environment the file is interpreted against.
	Env Env `yaml:"-"`
}

// MailConfig controls how notification mail is sent.
type MailConfig struct {
	Command []string `yaml:"command"` // default: [mail]
	From    string   `yaml:"from"`    // passed as -r when set
}

// IssueConfig controls how tracking issues are filed.
type IssueConfig struct {
	Backend string   `yaml:"backend"` // script (default), github, none
	Script  []string `yaml:"script"`  // argv prefix of the issue-filing script
	Org     string   `yaml:"org"`
	Repo    string   `yaml:"repo"`
	Labels  []string `yaml:"labels"`
	APIURL  string   `yaml:"api_url"` // github backend only
}

// Timeout returns the configured command timeout. Zero means none.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// ShellPath returns the shell used to interpret single-string commands.
func (c *Config) ShellPath() string {
	if c.Shell != "" {
		return c.Shell
	}
	return DefaultShell
}

// Trigger returns the configured notification trigger, defaulting to
// TriggerOutput.
func (c *Config) Trigger() Trigger {
	if c.RawTrigger == "" {
		return TriggerOutput
	}
	return Trigger(c.RawTrigger)
}

// MailCommand returns the argv prefix of the mail command.
func (c *Config) MailCommand() []string {
	if len(c.Mail.Command) > 0 {
		return c.Mail.Command
	}
	return []string{"mail"}
}

// MailFrom returns the sender address. The environment wins over the
// file; without either, mail comes from cronwatch@<hostname>.
func (c *Config) MailFrom() string {
	if c.Env.MailFrom != "" {
		return c.Env.MailFrom
	}
	if c.Mail.From != "" {
		return c.Mail.From
	}
	if c.Env.Hostname != "" {
		return "cronwatch@" + c.Env.Hostname
	}
	return ""
}

// IssueBackend returns the configured issue backend, defaulting to the
// external script.
func (c *Config) IssueBackend() string {
	if c.Issue.Backend != "" {
		return c.Issue.Backend
	}
	return BackendScript
}

// IssueScript returns the argv prefix of the issue-filing script. The
// default lives in the data-integration checkout pointed to by SIBIS.
func (c *Config) IssueScript() []string {
	if len(c.Issue.Script) > 0 {
		return c.Issue.Script
	}
	return []string{filepath.Join(c.Env.SIBIS, "scripts", "utils", "post_github_issue.py")}
}

// IssueOrg returns the organisation issues are filed under.
func (c *Config) IssueOrg() string {
	if c.Issue.Org != "" {
		return c.Issue.Org
	}
	return DefaultIssueOrg
}

// IssueRepo returns the repository issues are filed in.
func (c *Config) IssueRepo() string {
	if c.Issue.Repo != "" {
		return c.Issue.Repo
	}
	return DefaultIssueRepo
}

// GitHubAPI returns the base URL of the GitHub REST API.
func (c *Config) GitHubAPI() string {
	if c.Issue.APIURL != "" {
		return strings.TrimRight(c.Issue.APIURL, "/")
	}
	return DefaultGitHubAPI
}

// StateDirectory returns where run reports are written. The environment
// wins over the file. Recording is opt-in: an empty result means runs
// are not kept.
func (c *Config) StateDirectory() string {
	if c.Env.StateDir != "" {
		return c.Env.StateDir
	}
	return c.expandHome(c.StateDir)
}

func (c *Config) expandHome(p string) string {
	if c.Env.Home == "" {
		return p
	}
	if p == "~" {
		return c.Env.Home
	}
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		return filepath.Join(c.Env.Home, rest)
	}
	return p
}

// Validate reports values that cannot be interpreted.
func (c *Config) Validate() error {
	var errs []error
	switch c.Trigger() {
	case TriggerOutput, TriggerFailure, TriggerOutputOrFailure:
	default:
		errs = append(errs, fmt.Errorf("unknown trigger %q", c.RawTrigger))
	}
	switch c.IssueBackend() {
	case BackendScript, BackendGitHub, BackendNone:
	default:
		errs = append(errs, fmt.Errorf("unknown issue backend %q", c.Issue.Backend))
	}
	if c.RawTimeout != "" {
		if _, err := time.ParseDuration(c.RawTimeout); err != nil {
			errs = append(errs, fmt.Errorf("invalid timeout %q: %w", c.RawTimeout, err))
		}
	}
	if c.IssueBackend() == BackendGitHub && c.Env.GitHubToken == "" {
		errs = append(errs, errors.New("issue backend github requires GITHUB_TOKEN"))
	}
	return errors.Join(errs...)
}

// LoadResult holds the parsed config and where it came from.
type LoadResult struct {
	Config *Config
	Path   string // empty when no file was found
}

// Load reads the configuration. An explicit path must exist. Otherwise
// the .cronwatch file is discovered by walking upward from workspace,
// then in $HOME. If no file exists, a default Config is returned.
func Load(workspace, explicit string, env Env) (*LoadResult, error) {
	path := explicit
	if path == "" {
		path = findConfig(workspace, env.Home)
	}
	if path == "" {
		return &LoadResult{Config: &Config{Env: env}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Env = env
	return &LoadResult{Config: cfg, Path: path}, nil
}

// findConfig walks upward from dir looking for FileName, then tries home.
func findConfig(dir, home string) string {
	if abs, err := filepath.Abs(dir); err == nil && dir != "" {
		for d := abs; ; {
			candidate := filepath.Join(d, FileName)
			if isFile(candidate) {
				return candidate
			}
			parent := filepath.Dir(d)
			if parent == d {
				break
			}
			d = parent
		}
	}
	if home != "" {
		if candidate := filepath.Join(home, FileName); isFile(candidate) {
			return candidate
		}
	}
	return ""
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
