package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Env is the subset of the process environment cronwatch reads.
type Env struct {
	Home        string `env:"HOME"`
	SIBIS       string `env:"SIBIS"` // data-integration checkout
	MailFrom    string `env:"CRONWATCH_MAIL_FROM"`
	StateDir    string `env:"CRONWATCH_STATE_DIR"`
	GitHubToken string `env:"GITHUB_TOKEN"`
	Hostname    string `env:"HOSTNAME"` // falls back to os.Hostname
}

// LoadEnv parses the process environment. SIBIS defaults to the
// ncanda-data-integration checkout next to the user's home, and the
// hostname to the kernel's when the shell did not export it.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	if e.SIBIS == "" && e.Home != "" {
		e.SIBIS = filepath.Join(e.Home, "ncanda-data-integration")
	}
	if e.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			e.Hostname = h
		}
	}
	return e, nil
}
