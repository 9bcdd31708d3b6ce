package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hlop3z/schemadiff/internal/cli"
	"github.com/hlop3z/schemadiff/internal/mssql"
)

// planCmd prints the next migration without writing it.
func planCmd(a *app) *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the SQL the next migration would contain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}

			// Planning never prompts; generate asks about renames.
			p, err := a.plan(cmd.Context(), cfg, mssql.HeuristicResolvers())
			if err != nil {
				return err
			}
			if p.Empty() {
				fmt.Fprint(a.stdout, cli.FormatNote("schema matches the latest migration"))
				return nil
			}

			if summary {
				printStatements(a.stdout, p.result.Statements)
				return nil
			}
			fmt.Fprint(a.stdout, p.sql)
			return nil
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "List statement types instead of SQL")
	return cmd
}
