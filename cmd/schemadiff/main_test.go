package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/cli"
	"github.com/hlop3z/schemadiff/internal/entity"
	"github.com/hlop3z/schemadiff/internal/snapshot"
)

func init() {
	cli.SetDefault(&cli.Config{Mode: cli.ModePlain})
}

const usersSchema = `{
  "schemas": [],
  "tables": [{"schema": "dbo", "name": "users"}],
  "columns": [
    {"schema": "dbo", "table": "users", "name": "id", "type": "int", "notNull": true, "isPK": true},
    {"schema": "dbo", "table": "users", "name": "email", "type": "nvarchar(255)", "notNull": false}
  ]
}`

const membersSchema = `{
  "tables": [{"schema": "dbo", "name": "members"}],
  "columns": [
    {"schema": "dbo", "table": "members", "name": "id", "type": "int", "notNull": true, "isPK": true},
    {"schema": "dbo", "table": "members", "name": "email", "type": "nvarchar(255)", "notNull": false}
  ]
}`

const duplicateSchema = `{
  "tables": [{"schema": "dbo", "name": "users"}, {"schema": "dbo", "name": "users"}],
  "columns": [
    {"schema": "dbo", "table": "users", "name": "id", "type": "int"},
    {"schema": "dbo", "table": "users", "name": "id", "type": "bigint"}
  ]
}`

// project is a temp folder with a config file pointing at schema.json and
// migrations/.
type project struct {
	dir    string
	config string
}

func newProject(t *testing.T, schema string) *project {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SCHEMADIFF_OUT", "")
	t.Setenv("SCHEMADIFF_BREAKPOINTS", "")

	dir := t.TempDir()
	p := &project{dir: dir, config: filepath.Join(dir, DefaultConfigFile)}
	yml := "schema: " + filepath.Join(dir, "schema.json") + "\nout: " + filepath.Join(dir, "migrations") + "\n"
	if err := os.WriteFile(p.config, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}
	p.setSchema(t, schema)
	return p
}

func (p *project) setSchema(t *testing.T, schema string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(p.dir, "schema.json"), []byte(schema), 0644); err != nil {
		t.Fatal(err)
	}
}

// run executes the CLI and returns stdout, stderr and the error.
func (p *project) run(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	a := &app{stdin: strings.NewReader(""), stdout: &stdout, stderr: &stderr}
	root := newRootCmd(a)
	root.SetArgs(append([]string{"--config", p.config}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// -----------------------------------------------------------------------------
// check
// -----------------------------------------------------------------------------

func TestCheck_Valid(t *testing.T) {
	p := newProject(t, usersSchema)
	out, _, err := p.run("check")
	if err != nil {
		t.Fatalf("check error = %v", err)
	}
	if !strings.Contains(out, "1 table") || !strings.Contains(out, "0 migrations") {
		t.Errorf("check output = %q", out)
	}
}

func TestCheck_SchemaErrors(t *testing.T) {
	p := newProject(t, duplicateSchema)
	_, stderr, err := p.run("check")
	if !errors.Is(err, errReported) {
		t.Fatalf("check error = %v, want errReported", err)
	}
	for _, want := range []string{"E1003", "table dbo.users is declared twice", "2 schema errors"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestCheck_MissingSchema(t *testing.T) {
	p := newProject(t, usersSchema)
	os.Remove(filepath.Join(p.dir, "schema.json"))
	if _, _, err := p.run("check"); !alerr.Is(err, alerr.ErrSchemaNotFound) {
		t.Errorf("check error = %v, want %s", err, alerr.ErrSchemaNotFound)
	}
}

// -----------------------------------------------------------------------------
// plan / generate
// -----------------------------------------------------------------------------

func TestPlan_PrintsSQL(t *testing.T) {
	p := newProject(t, usersSchema)
	out, _, err := p.run("plan")
	if err != nil {
		t.Fatalf("plan error = %v", err)
	}
	for _, want := range []string{"CREATE TABLE [dbo].[users]", "CONSTRAINT [users_pkey] PRIMARY KEY ([id])", "\nGO\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(p.dir, "migrations")); !os.IsNotExist(err) {
		t.Error("plan must not write migrations")
	}
}

func TestPlan_Summary(t *testing.T) {
	p := newProject(t, usersSchema)
	out, _, err := p.run("plan", "--summary")
	if err != nil {
		t.Fatalf("plan error = %v", err)
	}
	if !strings.Contains(out, "create_table") || strings.Contains(out, "CREATE TABLE") {
		t.Errorf("summary output = %q", out)
	}
}

func TestPlan_NoBreakpoints(t *testing.T) {
	p := newProject(t, usersSchema)
	out, _, err := p.run("plan", "--breakpoints=false")
	if err != nil {
		t.Fatalf("plan error = %v", err)
	}
	if strings.Contains(out, "GO") {
		t.Errorf("plan output has GO separators:\n%s", out)
	}
}

func TestGenerate_WritesThenSkips(t *testing.T) {
	p := newProject(t, usersSchema)

	out, _, err := p.run("generate", "init")
	if err != nil {
		t.Fatalf("generate error = %v", err)
	}
	if !strings.Contains(out, "0000_init") {
		t.Errorf("generate output = %q", out)
	}
	sql, err := os.ReadFile(filepath.Join(p.dir, "migrations", "0000_init", snapshot.MigrationFile))
	if err != nil || !strings.Contains(string(sql), "CREATE TABLE [dbo].[users]") {
		t.Errorf("migration.sql = %q, %v", sql, err)
	}

	out, _, err = p.run("generate")
	if err != nil {
		t.Fatalf("second generate error = %v", err)
	}
	if !strings.Contains(out, "no schema changes") {
		t.Errorf("second generate output = %q", out)
	}
	entries, _ := snapshot.Open(filepath.Join(p.dir, "migrations")).Entries()
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}

	if out, _, err := p.run("check"); err != nil || !strings.Contains(out, "1 migration") {
		t.Errorf("check after generate = %q, %v", out, err)
	}
}

func TestGenerate_Rename(t *testing.T) {
	p := newProject(t, usersSchema)
	if _, _, err := p.run("generate", "init"); err != nil {
		t.Fatal(err)
	}

	p.setSchema(t, membersSchema)
	out, _, err := p.run("generate", "rename", "--rename", "dbo.users->dbo.members")
	if err != nil {
		t.Fatalf("generate error = %v", err)
	}
	if !strings.Contains(out, "rename dbo.users -> dbo.members") {
		t.Errorf("generate output = %q", out)
	}

	e := snapshot.Entry{Dir: filepath.Join(p.dir, "migrations", "0001_rename")}
	sql, err := e.SQL()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "sp_rename") || strings.Contains(sql, "DROP TABLE") {
		t.Errorf("rename migration:\n%s", sql)
	}
	snap, err := e.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Renames) != 1 || snap.Renames[0] != "dbo.users->dbo.members" {
		t.Errorf("snapshot renames = %v", snap.Renames)
	}
	ddl, err := snap.DDLOf()
	if err != nil {
		t.Fatal(err)
	}
	if pk, ok := ddl.PKs.One(entity.Filter{"table": "members"}); !ok || pk.Name != "users_pkey" {
		t.Errorf("snapshot pk = %+v, want users_pkey on members", pk)
	}

	// The stored name matches the database, so nothing is left to do.
	out, _, err = p.run("generate")
	if err != nil {
		t.Fatalf("third generate error = %v", err)
	}
	if !strings.Contains(out, "no schema changes") {
		t.Errorf("third generate output = %q", out)
	}
}

func TestGenerate_EditedMigrationBlocks(t *testing.T) {
	p := newProject(t, usersSchema)
	if _, _, err := p.run("generate", "init"); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(p.dir, "migrations", "0000_init", snapshot.MigrationFile)
	if err := os.WriteFile(path, []byte("-- edited\n"), 0644); err != nil {
		t.Fatal(err)
	}

	p.setSchema(t, membersSchema)
	if _, _, err := p.run("generate"); !alerr.Is(err, alerr.ErrMigrationConflict) {
		t.Errorf("generate error = %v, want %s", err, alerr.ErrMigrationConflict)
	}
}

// -----------------------------------------------------------------------------
// Database commands
// -----------------------------------------------------------------------------

func TestDatabaseCommands_RequireURL(t *testing.T) {
	p := newProject(t, usersSchema)
	for _, cmd := range []string{"up", "introspect"} {
		_, _, err := p.run(cmd)
		if !alerr.Is(err, alerr.ErrConfigInvalid) {
			t.Errorf("%s error = %v, want %s", cmd, err, alerr.ErrConfigInvalid)
		}
	}
}
