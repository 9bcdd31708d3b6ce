package main

import (
	"errors"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/mssql"
)

// DefaultConfigFile is read when --config is not given.
const DefaultConfigFile = "schemadiff.yaml"

// Config is schemadiff.yaml.
type Config struct {
	Schema      string `yaml:"schema"`
	Out         string `yaml:"out"`
	DatabaseURL string `yaml:"database_url"`
	Mode        string `yaml:"mode"`
	Breakpoints bool   `yaml:"breakpoints"`
}

// flagValues are the command line overrides. Empty strings and nil
// pointers mean "not given".
type flagValues struct {
	config      string
	schema      string
	out         string
	databaseURL string
	mode        string
	breakpoints *bool
}

// loadConfig resolves the configuration.
// Precedence: CLI flags > env vars > config file > defaults
func loadConfig(f flagValues) (*Config, error) {
	cfg := &Config{
		Schema:      "schema.json",
		Out:         "./migrations",
		Mode:        string(mssql.ModeDefault),
		Breakpoints: true,
	}

	path := f.config
	if path == "" {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to parse config file").With("path", path)
		}
		cfg.DatabaseURL = os.Expand(cfg.DatabaseURL, os.Getenv)
	case errors.Is(err, os.ErrNotExist) && f.config == "":
		// No config file is fine unless one was asked for.
	default:
		return nil, alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to read config file").With("path", path)
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("SCHEMADIFF_OUT"); v != "" {
		cfg.Out = v
	}
	if v := os.Getenv("SCHEMADIFF_BREAKPOINTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, alerr.Wrap(alerr.ErrConfigInvalid, err, "invalid SCHEMADIFF_BREAKPOINTS")
		}
		cfg.Breakpoints = b
	}

	if f.schema != "" {
		cfg.Schema = f.schema
	}
	if f.out != "" {
		cfg.Out = f.out
	}
	if f.databaseURL != "" {
		cfg.DatabaseURL = f.databaseURL
	}
	if f.mode != "" {
		cfg.Mode = f.mode
	}
	if f.breakpoints != nil {
		cfg.Breakpoints = *f.breakpoints
	}

	if !slices.Contains(mssql.DiffModes, cfg.Mode) {
		return nil, alerr.Unknown(alerr.ErrConfigInvalid, "mode", cfg.Mode, mssql.DiffModes)
	}
	return cfg, nil
}

// DiffMode returns the configured mode.
func (c *Config) DiffMode() mssql.DiffMode {
	return mssql.DiffMode(c.Mode)
}

// requireDatabase fails when no connection string is configured.
func (c *Config) requireDatabase() error {
	if c.DatabaseURL == "" {
		return alerr.New(alerr.ErrConfigInvalid, "database_url is not set").
			WithHelp("set database_url in " + DefaultConfigFile + ", DATABASE_URL or --database-url")
	}
	return nil
}
