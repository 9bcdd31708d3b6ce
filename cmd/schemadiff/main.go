// Package main is the schemadiff command line tool. It diffs a declared
// SQL Server schema against the last generated snapshot and writes T-SQL
// migrations.
//
// Usage:
//
//	schemadiff check              # Validate the schema file
//	schemadiff plan               # Print the SQL the next migration would contain
//	schemadiff generate [name]    # Write the next migration folder
//	schemadiff introspect         # Dump a live database as a schema file
//	schemadiff up                 # Apply pending migrations
//	schemadiff watch              # Re-plan whenever the schema file changes
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hlop3z/schemadiff/internal/cli"
)

// version is set via ldflags during build: -ldflags="-X main.version=v1.0.0"
var version = "dev"

// errReported means the command already printed its diagnostics.
var errReported = errors.New("reported")

// app carries the global flags into every command.
type app struct {
	flags    flagValues
	verbose  bool
	dump     bool
	noPrompt bool

	// stdinTTY enables the interactive rename prompt.
	stdinTTY bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (a *app) config() (*Config, error) {
	return loadConfig(a.flags)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "schemadiff",
		Short:         "SQL Server schema diff and migration generator",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.config, "config", "c", "", "Path to config file (default: "+DefaultConfigFile+")")
	pf.StringVarP(&a.flags.schema, "schema", "s", "", "Path to the schema file")
	pf.StringVarP(&a.flags.out, "out", "o", "", "Migrations folder")
	pf.StringVarP(&a.flags.databaseURL, "database-url", "d", "", "Database connection URL")
	pf.StringVar(&a.flags.mode, "mode", "", "Diff mode: default or push")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&a.dump, "dump", false, "Pretty-print the diff statements")
	pf.BoolVar(&a.noPrompt, "no-interactive", false, "Resolve renames without prompting")
	breakpoints := &boolFlag{target: &a.flags.breakpoints}
	pf.Var(breakpoints, "breakpoints", "Separate statements with GO")
	pf.Lookup("breakpoints").NoOptDefVal = "true"

	root.AddCommand(
		checkCmd(a),
		planCmd(a),
		generateCmd(a),
		introspectCmd(a),
		upCmd(a),
		watchCmd(a),
	)
	return root
}

func main() {
	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	a.stdinTTY = cli.IsTerminal(os.Stdin)

	if err := newRootCmd(a).Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprint(os.Stderr, cli.FormatError(err))
		}
		os.Exit(1)
	}
}
