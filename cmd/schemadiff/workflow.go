package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/pflag"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/cli"
	"github.com/hlop3z/schemadiff/internal/convertor"
	"github.com/hlop3z/schemadiff/internal/mssql"
	"github.com/hlop3z/schemadiff/internal/snapshot"
)

// boolFlag is a tri-state bool flag: unset, true or false.
type boolFlag struct {
	target **bool
}

var _ pflag.Value = (*boolFlag)(nil)

func (f *boolFlag) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*f.target = &v
	return nil
}

func (f *boolFlag) String() string {
	if f.target == nil || *f.target == nil {
		return ""
	}
	return strconv.FormatBool(**f.target)
}

func (f *boolFlag) Type() string { return "bool" }

// loadSchema reads a schema file in interim JSON form.
func loadSchema(path string) (mssql.InterimSchema, error) {
	var s mssql.InterimSchema
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, alerr.New(alerr.ErrSchemaNotFound, "schema file not found").
				With("path", path).
				WithHelp("run `schemadiff introspect > " + path + "` to start from a database")
		}
		return s, alerr.Wrap(alerr.ErrSchemaInvalid, err, "failed to read schema file").With("path", path)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, alerr.Wrap(alerr.ErrSchemaInvalid, err, "schema file is not valid JSON").With("path", path)
	}
	return s, nil
}

// buildDDL ingests s. Schema errors are printed to w and reported as
// errReported.
func buildDDL(w io.Writer, s mssql.InterimSchema) (*mssql.DDL, error) {
	ddl, errs := mssql.InterimToDDL(s)
	if len(errs) == 0 {
		return ddl, nil
	}
	for _, e := range errs {
		fmt.Fprint(w, cli.FormatError(e.Err()))
	}
	fmt.Fprintf(w, "\n%s\n", cli.Red(cli.FormatCount(len(errs), "schema error", "schema errors")))
	return nil, errReported
}

// resolvers prompts on a terminal and falls back to the heuristic.
func (a *app) resolvers() mssql.Resolvers {
	if a.stdinTTY && !a.noPrompt {
		return mssql.InteractiveResolvers(a.stdin, a.stderr)
	}
	return mssql.HeuristicResolvers()
}

// plan is the diff between the journal head and the schema file. next is
// the declared schema with the constraint names the database already has.
type plan struct {
	journal *snapshot.Journal
	prev    *snapshot.Snapshot
	next    *mssql.DDL
	result  *mssql.Result
	sql     string
}

// Empty reports whether the schema matches the journal head.
func (p *plan) Empty() bool {
	return len(p.result.Statements) == 0
}

func (a *app) plan(ctx context.Context, cfg *Config, resolvers mssql.Resolvers) (*plan, error) {
	j := snapshot.Open(cfg.Out)
	prev, err := j.Latest()
	if err != nil {
		return nil, err
	}
	prevDDL, err := prev.DDLOf()
	if err != nil {
		return nil, err
	}

	interim, err := loadSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}
	declared, err := buildDDL(a.stderr, interim)
	if err != nil {
		return nil, err
	}

	result, err := mssql.DDLDiff(ctx, prevDDL, declared, resolvers, cfg.DiffMode())
	if err != nil {
		return nil, err
	}
	if a.dump {
		a.dumpStatements(result.Statements)
	}

	return &plan{
		journal: j,
		prev:    prev,
		next:    result.DDL,
		result:  result,
		sql:     convertor.Render(result.Statements, convertor.Options{Breakpoints: cfg.Breakpoints, Target: result.DDL}),
	}, nil
}

func (a *app) dumpStatements(stmts []mssql.Statement) {
	printer := pp.New()
	printer.SetOutput(a.stderr)
	printer.SetColoringEnabled(cli.EnableColors())
	printer.Println(stmts)
}

// printStatements lists statement types and targets.
func printStatements(w io.Writer, stmts []mssql.Statement) {
	t := cli.NewTable("#", "STATEMENT")
	for i, s := range stmts {
		t.AddRow(strconv.Itoa(i+1), string(s.Type()))
	}
	fmt.Fprint(w, t.String())
}
