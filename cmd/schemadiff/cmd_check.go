package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hlop3z/schemadiff/internal/cli"
)

// checkCmd validates the schema file and the migrations journal.
func checkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the schema file and migration history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}

			interim, err := loadSchema(cfg.Schema)
			if err != nil {
				return err
			}
			ddl, err := buildDDL(a.stderr, interim)
			if err != nil {
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

			fmt.Fprint(a.stdout, cli.FormatSuccess(fmt.Sprintf("%s is valid: %s, %s, %s",
				cfg.Schema,
				cli.FormatCount(ddl.Tables.Len(), "table", "tables"),
				cli.FormatCount(ddl.Views.Len(), "view", "views"),
				cli.FormatCount(len(entries), "migration", "migrations"),
			)))
			return nil
		},
	}
}
