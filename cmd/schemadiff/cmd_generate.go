package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hlop3z/schemadiff/internal/cli"
	"github.com/hlop3z/schemadiff/internal/mssql"
	"github.com/hlop3z/schemadiff/internal/snapshot"
)

// generateCmd writes the next migration folder.
func generateCmd(a *app) *cobra.Command {
	var renames []string

	cmd := &cobra.Command{
		Use:   "generate [name]",
		Short: "Write the next migration from schema changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			j := openJournal(cfg)
			if err := j.Verify(); err != nil {
				return err
			}

			resolvers := a.resolvers()
			if len(renames) > 0 {
				resolvers = mssql.FixedResolvers(renames)
			}
			p, err := a.plan(cmd.Context(), cfg, resolvers)
			if err != nil {
				return err
			}

			snap := snapshot.New(p.next, p.prev, p.result.Renames)
			unchanged, err := sameFingerprint(p.prev, snap)
			if err != nil {
				return err
			}
			if unchanged || p.Empty() {
				fmt.Fprint(a.stdout, cli.FormatNote("no schema changes, nothing to generate"))
				return nil
			}

			e, err := p.journal.Write(name, snap, p.sql)
			if err != nil {
				return err
			}
			slog.Debug("migration written", "dir", e.Dir, "statements", len(p.result.Statements))

			fmt.Fprint(a.stdout, cli.FormatSuccess(fmt.Sprintf("%s %s",
				cli.Bold(e.Tag()),
				cli.Muted("("+cli.FormatCount(len(p.result.Statements), "statement", "statements")+")"),
			)))
			for _, r := range p.result.Renames {
				from, to, _ := strings.Cut(r, "->")
				fmt.Fprintf(a.stdout, "  %s %s %s %s\n", cli.Yellow("rename"), from, cli.Muted("->"), to)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&renames, "rename", nil, "Resolve a rename without prompting: <from>-><to>")
	return cmd
}

// sameFingerprint compares the entities of two snapshots.
func sameFingerprint(a, b *snapshot.Snapshot) (bool, error) {
	fa, err := a.Fingerprint()
	if err != nil {
		return false, err
	}
	fb, err := b.Fingerprint()
	if err != nil {
		return false, err
	}
	return fa == fb, nil
}

func openJournal(cfg *Config) *snapshot.Journal {
	return snapshot.Open(cfg.Out)
}
