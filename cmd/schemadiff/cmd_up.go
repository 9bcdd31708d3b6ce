package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hlop3z/schemadiff/internal/cli"
	"github.com/hlop3z/schemadiff/internal/introspect"
	"github.com/hlop3z/schemadiff/internal/runner"
	"github.com/hlop3z/schemadiff/internal/sqlgen"
)

// upCmd applies pending migrations.
func upCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if err := cfg.requireDatabase(); err != nil {
				return err
			}

			j := openJournal(cfg)
			if err := j.Verify(); err != nil {
				return err
			}
			entries, err := j.Entries()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := introspect.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			r := runner.New(db, runner.NewSQLHistory(db))

			if dryRun {
				batches, err := r.DryRun(ctx, entries)
				if err != nil {
					return err
				}
				for _, b := range batches {
					fmt.Fprintf(a.stdout, "%s\n%s\n\n", b, sqlgen.BatchSeparator)
				}
				return nil
			}

			done, err := r.Apply(ctx, entries)
			for _, e := range done {
				fmt.Fprint(a.stdout, cli.FormatSuccess(e.Tag()))
			}
			if err != nil {
				return err
			}
			if len(done) == 0 {
				fmt.Fprint(a.stdout, cli.FormatNote("database is up to date"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print pending batches without executing them")
	return cmd
}
