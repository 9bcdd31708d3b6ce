package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/cli"
	"github.com/hlop3z/schemadiff/internal/mssql"
)

// settleDelay coalesces the burst of events one save produces.
const settleDelay = 150 * time.Millisecond

// watchCmd re-plans whenever the schema file changes.
func watchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the pending migration every time the schema file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			replan := func() {
				fmt.Fprintf(a.stdout, "%s %s\n", cli.Cyan("==>"), cli.Bold(cfg.Schema))
				p, err := a.plan(ctx, cfg, mssql.HeuristicResolvers())
				switch {
				case errors.Is(err, errReported):
				case err != nil:
					fmt.Fprint(a.stderr, cli.FormatError(err))
				case p.Empty():
					fmt.Fprint(a.stdout, cli.FormatNote("schema matches the latest migration"))
				default:
					fmt.Fprint(a.stdout, p.sql)
				}
			}

			replan()
			fmt.Fprintf(a.stderr, "%s\n", cli.Muted("watching "+cfg.Schema+" (ctrl+c to stop)"))
			return watchFile(ctx, cfg.Schema, replan)
		},
	}
}

// watchFile calls onChange after path is written, created or replaced,
// until ctx is done. The parent directory is watched because editors often
// save by renaming a temporary file over the original.
func watchFile(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return alerr.Wrap(alerr.EInternalError, err, "failed to start file watcher")
	}
	defer watcher.Close()

	target, err := filepath.Abs(path)
	if err != nil {
		return alerr.Wrap(alerr.ErrConfigInvalid, err, "invalid schema path").With("path", path)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return alerr.Wrap(alerr.ErrSchemaNotFound, err, "failed to watch schema folder").With("path", path)
	}

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, _ := filepath.Abs(event.Name)
			if name != target || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("schema file changed", "op", event.Op.String())
			settle = time.After(settleDelay)
		case <-settle:
			settle = nil
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file watcher error", "error", err)
		}
	}
}
