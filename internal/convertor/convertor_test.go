package convertor

import (
	"context"
	"strings"
	"testing"

	"github.com/hlop3z/schemadiff/internal/mssql"
)

func users() mssql.TableFull {
	pk := mssql.PrimaryKey{Schema: "dbo", Table: "users", Name: "users_pkey", Columns: []string{"id"}}
	return mssql.TableFull{
		Schema: "dbo",
		Name:   "users",
		Columns: []mssql.Column{
			{Schema: "dbo", Table: "users", Name: "id", Type: "int", NotNull: true, Identity: &mssql.Identity{Seed: 1, Increment: 1}},
			{Schema: "dbo", Table: "users", Name: "email", Type: "nvarchar(255)", NotNull: true},
			{Schema: "dbo", Table: "users", Name: "active", Type: "bit"},
		},
		PK:       &pk,
		Uniques:  []mssql.Unique{{Schema: "dbo", Table: "users", Name: "users_email_key", Columns: []string{"email"}}},
		Checks:   []mssql.Check{{Schema: "dbo", Table: "users", Name: "ck_email", Value: "len([email]) > 3"}},
		Defaults: []mssql.Default{{Schema: "dbo", Table: "users", Name: "users_active_default", Column: "active", Value: "1"}},
	}
}

func render(t *testing.T, s mssql.Statement) string {
	t.Helper()
	out := Convert([]mssql.Statement{s}, Options{})
	if len(out) != 1 {
		t.Fatalf("Convert(%s) returned %d statements", s.Type(), len(out))
	}
	return out[0]
}

// -----------------------------------------------------------------------------
// Statement Rendering Tests
// -----------------------------------------------------------------------------

func TestConvert_Statements(t *testing.T) {
	fk := mssql.ForeignKey{
		Schema: "dbo", Table: "posts", Name: "posts_user_id_fk",
		Columns: []string{"user_id"}, SchemaTo: "dbo", TableTo: "users", ColumnsTo: []string{"id"},
		OnDelete: "CASCADE", OnUpdate: "NO ACTION",
	}
	email := mssql.Column{Schema: "dbo", Table: "users", Name: "email", Type: "nvarchar(500)"}

	tests := []struct {
		name string
		stmt mssql.Statement
		want string
	}{
		{"create schema", mssql.CreateSchema{Name: "app"}, "CREATE SCHEMA [app];"},
		{"drop schema", mssql.DropSchema{Name: "app"}, "DROP SCHEMA [app];"},
		{"drop table", mssql.DropTable{Table: users()}, "DROP TABLE [dbo].[users];"},
		{
			"rename table",
			mssql.RenameTable{From: mssql.Table{Schema: "dbo", Name: "users"}, To: mssql.Table{Schema: "dbo", Name: "accounts"}},
			"EXEC sp_rename '[dbo].[users]', 'accounts';",
		},
		{
			"move table",
			mssql.MoveTable{Name: "users", FromSchema: "dbo", ToSchema: "auth"},
			"ALTER SCHEMA [auth] TRANSFER [dbo].[users];",
		},
		{
			"add column",
			mssql.AddColumn{Column: mssql.Column{Schema: "dbo", Table: "users", Name: "age", Type: "int", NotNull: true}},
			"ALTER TABLE [dbo].[users] ADD [age] int NOT NULL;",
		},
		{
			"add computed column",
			mssql.AddColumn{Column: mssql.Column{
				Schema: "dbo", Table: "t", Name: "total", Type: "int", NotNull: true,
				Generated: &mssql.Generated{Type: "persisted", As: "[a]+[b]"},
			}},
			"ALTER TABLE [dbo].[t] ADD [total] AS ([a]+[b]) PERSISTED NOT NULL;",
		},
		{
			"add virtual column ignores not null",
			mssql.AddColumn{Column: mssql.Column{
				Schema: "dbo", Table: "t", Name: "total", Type: "int", NotNull: true,
				Generated: &mssql.Generated{Type: "virtual", As: "[a]+[b]"},
			}},
			"ALTER TABLE [dbo].[t] ADD [total] AS ([a]+[b]);",
		},
		{"drop column", mssql.DropColumn{Column: email}, "ALTER TABLE [dbo].[users] DROP COLUMN [email];"},
		{
			"rename column",
			mssql.RenameColumn{From: email, To: mssql.Column{Name: "mail"}},
			"EXEC sp_rename '[dbo].[users].[email]', 'mail', 'COLUMN';",
		},
		{
			"alter column",
			mssql.AlterColumn{To: email, Changed: []string{"type"}},
			"ALTER TABLE [dbo].[users] ALTER COLUMN [email] nvarchar(500) NULL;",
		},
		{
			"create pk",
			mssql.CreatePK{PK: mssql.PrimaryKey{Schema: "dbo", Table: "users", Name: "pk_users", Columns: []string{"id"}}},
			"ALTER TABLE [dbo].[users] ADD CONSTRAINT [pk_users] PRIMARY KEY ([id]);",
		},
		{
			"drop pk",
			mssql.DropPK{PK: mssql.PrimaryKey{Schema: "dbo", Table: "users", Name: "pk_users"}},
			"ALTER TABLE [dbo].[users] DROP CONSTRAINT [pk_users];",
		},
		{
			"rename pk",
			mssql.RenamePK{From: mssql.PrimaryKey{Schema: "dbo", Name: "pk_a"}, To: mssql.PrimaryKey{Name: "pk_b"}},
			"EXEC sp_rename '[dbo].[pk_a]', 'pk_b', 'OBJECT';",
		},
		{
			"create fk",
			mssql.CreateFK{FK: fk},
			"ALTER TABLE [dbo].[posts] ADD CONSTRAINT [posts_user_id_fk] FOREIGN KEY ([user_id]) REFERENCES [dbo].[users]([id]) ON DELETE CASCADE;",
		},
		{"drop fk", mssql.DropFK{FK: fk}, "ALTER TABLE [dbo].[posts] DROP CONSTRAINT [posts_user_id_fk];"},
		{
			"create index",
			mssql.CreateIndex{Index: mssql.Index{
				Schema: "dbo", Table: "users", Name: "ix_email", IsUnique: true,
				Columns: []mssql.IndexColumn{{Value: "email"}, {Value: "lower([name])", IsExpression: true}},
				Where:   "[email] IS NOT NULL",
			}},
			"CREATE UNIQUE INDEX [ix_email] ON [dbo].[users] ([email], lower([name])) WHERE [email] IS NOT NULL;",
		},
		{
			"drop index",
			mssql.DropIndex{Index: mssql.Index{Schema: "dbo", Table: "users", Name: "ix_email"}},
			"DROP INDEX [ix_email] ON [dbo].[users];",
		},
		{
			"rename index",
			mssql.RenameIndex{From: mssql.Index{Schema: "dbo", Table: "users", Name: "ix_a"}, To: mssql.Index{Name: "ix_b"}},
			"EXEC sp_rename '[dbo].[users].[ix_a]', 'ix_b', 'INDEX';",
		},
		{
			"add unique",
			mssql.AddUnique{Unique: mssql.Unique{Schema: "dbo", Table: "users", Name: "uq", Columns: []string{"a", "b"}}},
			"ALTER TABLE [dbo].[users] ADD CONSTRAINT [uq] UNIQUE ([a], [b]);",
		},
		{
			"add check",
			mssql.AddCheck{Check: mssql.Check{Schema: "dbo", Table: "users", Name: "ck_age", Value: "[age] >= 0"}},
			"ALTER TABLE [dbo].[users] ADD CONSTRAINT [ck_age] CHECK ([age] >= 0);",
		},
		{
			"drop default",
			mssql.DropDefault{Default: mssql.Default{Schema: "dbo", Table: "users", Name: "df"}},
			"ALTER TABLE [dbo].[users] DROP CONSTRAINT [df];",
		},
		{
			"create default without target",
			mssql.CreateDefault{Default: mssql.Default{Schema: "dbo", Table: "users", Name: "df", Column: "n", Value: "0"}},
			"ALTER TABLE [dbo].[users] ADD CONSTRAINT [df] DEFAULT (0) FOR [n];",
		},
		{"drop view", mssql.DropView{View: mssql.View{Schema: "dbo", Name: "v"}}, "DROP VIEW [dbo].[v];"},
		{
			"move view",
			mssql.MoveView{Name: "v", FromSchema: "dbo", ToSchema: "rpt"},
			"ALTER SCHEMA [rpt] TRANSFER [dbo].[v];",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render(t, tt.stmt); got != tt.want {
				t.Errorf("got  %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestConvert_CreateTable(t *testing.T) {
	got := render(t, mssql.CreateTable{Table: users()})
	want := "CREATE TABLE [dbo].[users] (\n" +
		"\t[id] int IDENTITY(1, 1) NOT NULL,\n" +
		"\t[email] nvarchar(255) NOT NULL,\n" +
		"\t[active] bit CONSTRAINT [users_active_default] DEFAULT (1),\n" +
		"\tCONSTRAINT [users_pkey] PRIMARY KEY ([id]),\n" +
		"\tCONSTRAINT [users_email_key] UNIQUE ([email]),\n" +
		"\tCONSTRAINT [ck_email] CHECK (len([email]) > 3)\n" +
		");"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestConvert_Views(t *testing.T) {
	v := mssql.View{
		Schema: "dbo", Name: "active_users",
		Definition:    "SELECT id FROM dbo.users WHERE active = 1;",
		SchemaBinding: true, ViewMetadata: true, CheckOption: true,
	}
	want := "CREATE VIEW [dbo].[active_users]\n" +
		"WITH SCHEMABINDING, VIEW_METADATA\n" +
		"AS SELECT id FROM dbo.users WHERE active = 1\n" +
		"WITH CHECK OPTION;"
	if got := render(t, mssql.CreateView{View: v}); got != want {
		t.Errorf("create:\n%s\nwant:\n%s", got, want)
	}

	plain := mssql.View{Schema: "dbo", Name: "v", Definition: "SELECT 1 AS one"}
	if got := render(t, mssql.AlterView{From: v, To: plain}); got != "ALTER VIEW [dbo].[v]\nAS SELECT 1 AS one;" {
		t.Errorf("alter = %q", got)
	}
}

func TestConvert_Recreate(t *testing.T) {
	from := mssql.Column{Schema: "dbo", Table: "t", Name: "total", Type: "int", Generated: &mssql.Generated{Type: "virtual", As: "[a]"}}
	to := mssql.Column{Schema: "dbo", Table: "t", Name: "total", Type: "int", Generated: &mssql.Generated{Type: "virtual", As: "[b]"}}
	got := render(t, mssql.RecreateColumn{From: from, To: to})
	want := "ALTER TABLE [dbo].[t] DROP COLUMN [total];\nALTER TABLE [dbo].[t] ADD [total] AS ([b]);"
	if got != want {
		t.Errorf("recreate column = %q", got)
	}

	def := render(t, mssql.RecreateDefault{
		From: mssql.Default{Schema: "dbo", Table: "t", Name: "df", Column: "n", Value: "0"},
		To:   mssql.Default{Schema: "dbo", Table: "t", Name: "df", Column: "n", Value: "1"},
	})
	if def != "ALTER TABLE [dbo].[t] DROP CONSTRAINT [df];\nALTER TABLE [dbo].[t] ADD CONSTRAINT [df] DEFAULT (1) FOR [n];" {
		t.Errorf("recreate default = %q", def)
	}
}

func TestConvert_RecreateIdentity(t *testing.T) {
	from := mssql.Column{Schema: "dbo", Table: "users", Name: "id", Type: "int", NotNull: true}
	to := from
	to.Identity = &mssql.Identity{Seed: 100, Increment: 1}
	pk := mssql.PrimaryKey{Schema: "dbo", Table: "users", Name: "users_pkey", Columns: []string{"id"}}
	fk := mssql.ForeignKey{
		Schema: "dbo", Table: "posts", Name: "posts_user_id_fk",
		Columns: []string{"user_id"}, SchemaTo: "dbo", TableTo: "users", ColumnsTo: []string{"id"},
	}

	got := render(t, mssql.RecreateIdentityColumn{
		From:   from,
		To:     to,
		Drop:   mssql.ColumnDependents{PKs: []mssql.PrimaryKey{pk}, FKs: []mssql.ForeignKey{fk}},
		Create: mssql.ColumnDependents{PKs: []mssql.PrimaryKey{pk}, FKs: []mssql.ForeignKey{fk}},
	})
	want := []string{
		"ALTER TABLE [dbo].[posts] DROP CONSTRAINT [posts_user_id_fk];",
		"ALTER TABLE [dbo].[users] DROP CONSTRAINT [users_pkey];",
		"ALTER TABLE [dbo].[users] DROP COLUMN [id];",
		"ALTER TABLE [dbo].[users] ADD [id] int IDENTITY(100, 1) NOT NULL;",
		"ALTER TABLE [dbo].[users] ADD CONSTRAINT [users_pkey] PRIMARY KEY ([id]);",
		"ALTER TABLE [dbo].[posts] ADD CONSTRAINT [posts_user_id_fk] FOREIGN KEY ([user_id]) REFERENCES [dbo].[users]([id]);",
	}
	if got != strings.Join(want, "\n") {
		t.Errorf("got:\n%s\nwant:\n%s", got, strings.Join(want, "\n"))
	}
}

func TestConvert_RenameSchema(t *testing.T) {
	got := render(t, mssql.RenameSchema{From: mssql.Schema{Name: "app"}, To: mssql.Schema{Name: "core"}})
	for _, part := range []string{
		"EXEC('CREATE SCHEMA [core]');",
		"N'ALTER SCHEMA [core] TRANSFER '",
		"WHERE s.name = N'app'",
		"DROP SCHEMA [app];",
	} {
		if !strings.Contains(got, part) {
			t.Errorf("missing %q in:\n%s", part, got)
		}
	}
}

// -----------------------------------------------------------------------------
// Default Type Lookup Tests
// -----------------------------------------------------------------------------

func TestConvert_DefaultUsesTargetType(t *testing.T) {
	target, errs := mssql.InterimToDDL(mssql.InterimSchema{
		Tables: []mssql.Table{{Schema: "dbo", Name: "users"}},
		Columns: []mssql.InterimColumn{{Column: mssql.Column{
			Schema: "dbo", Table: "users", Name: "status", Type: "varchar(20)",
		}}},
	})
	if len(errs) != 0 {
		t.Fatalf("InterimToDDL() errors = %v", errs)
	}
	stmt := mssql.CreateDefault{Default: mssql.Default{Schema: "dbo", Table: "users", Name: "df_status", Column: "status", Value: "new"}}

	got := Convert([]mssql.Statement{stmt}, Options{Target: target})
	want := "ALTER TABLE [dbo].[users] ADD CONSTRAINT [df_status] DEFAULT ('new') FOR [status];"
	if len(got) != 1 || got[0] != want {
		t.Errorf("Convert() = %q, want %q", got, want)
	}
}

// -----------------------------------------------------------------------------
// Script Tests
// -----------------------------------------------------------------------------

type unknownStatement struct{}

func (unknownStatement) Type() mssql.StatementType { return "create_trigger" }

func TestConvert_SkipsUnhandled(t *testing.T) {
	got := Convert([]mssql.Statement{unknownStatement{}, mssql.CreateSchema{Name: "app"}}, Options{})
	if len(got) != 1 || got[0] != "CREATE SCHEMA [app];" {
		t.Errorf("Convert() = %q", got)
	}
}

func TestRender(t *testing.T) {
	stmts := []mssql.Statement{mssql.CreateSchema{Name: "app"}, mssql.DropSchema{Name: "old"}}

	if got := Render(stmts, Options{}); got != "CREATE SCHEMA [app];\n\nDROP SCHEMA [old];\n" {
		t.Errorf("Render() = %q", got)
	}
	withGo := Render(stmts, Options{Breakpoints: true})
	if withGo != "CREATE SCHEMA [app];\nGO\n\nDROP SCHEMA [old];\nGO\n" {
		t.Errorf("Render(breakpoints) = %q", withGo)
	}
	if Render(nil, Options{Breakpoints: true}) != "" {
		t.Error("empty input must render empty")
	}
}

func TestSplit(t *testing.T) {
	script := "CREATE SCHEMA [app];\nGO\n\nCREATE VIEW [app].[v]\nAS SELECT 1;\n  go  \nGO\n"
	got := Split(script)
	want := []string{"CREATE SCHEMA [app];", "CREATE VIEW [app].[v]\nAS SELECT 1;"}
	if len(got) != len(want) {
		t.Fatalf("Split() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("batch %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// -----------------------------------------------------------------------------
// End-to-End Tests
// -----------------------------------------------------------------------------

func TestConvert_FromDiff(t *testing.T) {
	prev, _ := mssql.InterimToDDL(mssql.InterimSchema{})
	next, errs := mssql.InterimToDDL(mssql.InterimSchema{
		Schemas: []mssql.Schema{{Name: "app"}},
		Tables:  []mssql.Table{{Schema: "app", Name: "users"}},
		Columns: []mssql.InterimColumn{{
			Column: mssql.Column{Schema: "app", Table: "users", Name: "id", Type: "int", NotNull: true},
			IsPK:   true,
		}},
	})
	if len(errs) != 0 {
		t.Fatalf("InterimToDDL() errors = %v", errs)
	}
	res, err := mssql.DDLDiff(context.Background(), prev, next, mssql.MockResolvers(), mssql.ModeDefault)
	if err != nil {
		t.Fatalf("DDLDiff() error = %v", err)
	}

	got := Render(res.Statements, Options{Breakpoints: true, Target: res.DDL})
	want := "CREATE SCHEMA [app];\nGO\n\n" +
		"CREATE TABLE [app].[users] (\n\t[id] int NOT NULL,\n\tCONSTRAINT [users_pkey] PRIMARY KEY ([id])\n);\nGO\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
