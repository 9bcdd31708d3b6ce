// Package cli formats terminal output for schemadiff: styled labels,
// coded error reports and aligned tables.
package cli

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// OutputMode determines how output is formatted.
type OutputMode int

const (
	// ModeTTY enables colors.
	ModeTTY OutputMode = iota
	// ModePlain writes plain text for pipes and CI logs.
	ModePlain
)

// Config holds output configuration. It is detected, not configured.
type Config struct {
	Mode   OutputMode
	Writer io.Writer
}

// DefaultConfig detects the mode from stdout:
//   - a terminal without NO_COLOR or TERM=dumb gets ModeTTY
//   - everything else gets ModePlain
func DefaultConfig() *Config {
	mode := ModePlain
	if IsTerminal(os.Stdout) {
		mode = ModeTTY
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		mode = ModePlain
	}
	return &Config{Mode: mode, Writer: os.Stdout}
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsTTY returns true in ModeTTY.
func (c *Config) IsTTY() bool {
	return c.Mode == ModeTTY
}

var defaultCfg *Config

// Default returns the process-wide configuration.
func Default() *Config {
	if defaultCfg == nil {
		defaultCfg = DefaultConfig()
	}
	return defaultCfg
}

// SetDefault replaces the process-wide configuration. Tests use it to
// force plain output.
func SetDefault(cfg *Config) {
	defaultCfg = cfg
}

// EnableColors returns true if colors should be used.
func EnableColors() bool {
	return Default().IsTTY()
}
