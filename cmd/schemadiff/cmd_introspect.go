package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/cli"
	"github.com/hlop3z/schemadiff/internal/introspect"
)

// introspectCmd dumps a live database as a schema file.
func introspectCmd(a *app) *cobra.Command {
	var (
		schemas []string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Read a live database into a schema file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if err := cfg.requireDatabase(); err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := introspect.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			progress := newStageProgress(a.stderr)
			interim, err := introspect.Introspect(ctx, introspect.NewCatalog(db), introspect.Options{
				Schemas:  schemas,
				Progress: progress.report,
			})
			if err != nil {
				return err
			}
			if _, err := buildDDL(a.stderr, interim); err != nil {
				return err
			}

			data, err := json.MarshalIndent(interim, "", "  ")
			if err != nil {
				return alerr.Wrap(alerr.EInternalError, err, "failed to encode schema")
			}
			data = append(data, '\n')

			if output == "" || output == "-" {
				_, err := a.stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return alerr.Wrap(alerr.ErrSchemaInvalid, err, "failed to write schema file").With("path", output)
			}
			fmt.Fprint(a.stderr, cli.FormatSuccess(fmt.Sprintf("wrote %s (%s)",
				output, cli.FormatCount(len(interim.Tables), "table", "tables"))))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&schemas, "schemas", nil, "Only read these schemas")
	cmd.Flags().StringVarP(&output, "output", "O", "", "Write to a file instead of stdout")
	return cmd
}
