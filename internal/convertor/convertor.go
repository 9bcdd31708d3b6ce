// Package convertor renders migration statements as T-SQL.
//
// Every statement type has one renderer. A renderer may emit several SQL
// statements (recreating a column drops and re-adds it), joined by newlines.
package convertor

import (
	"log/slog"
	"strings"

	"github.com/hlop3z/schemadiff/internal/entity"
	"github.com/hlop3z/schemadiff/internal/mssql"
	"github.com/hlop3z/schemadiff/internal/sqlgen"
)

// Options controls rendering.
type Options struct {
	// Breakpoints separates statements with GO batch separators.
	Breakpoints bool
	// Target resolves column types for defaults rendered outside CREATE
	// TABLE. Without it the default value is written as stored.
	Target *mssql.DDL
}

// Convert renders each statement. Statement types without a renderer are
// logged and skipped.
func Convert(stmts []mssql.Statement, opts Options) []string {
	r := renderer{target: opts.Target}
	out := make([]string, 0, len(stmts))
	for _, s := range stmts {
		sql, ok := r.render(s)
		if !ok {
			slog.Warn("skipping unhandled statement", "type", s.Type())
			continue
		}
		out = append(out, sql)
	}
	return out
}

// Render renders the statements as one migration script.
func Render(stmts []mssql.Statement, opts Options) string {
	sqls := Convert(stmts, opts)
	if len(sqls) == 0 {
		return ""
	}
	sep := "\n\n"
	if opts.Breakpoints {
		sep = "\n" + sqlgen.BatchSeparator + "\n\n"
	}
	out := strings.Join(sqls, sep) + "\n"
	if opts.Breakpoints {
		out += sqlgen.BatchSeparator + "\n"
	}
	return out
}

// Split breaks a script into batches at GO lines. Empty batches are
// dropped.
func Split(script string) []string {
	var (
		batches []string
		cur     strings.Builder
	)
	flush := func() {
		if b := strings.TrimSpace(cur.String()); b != "" {
			batches = append(batches, b)
		}
		cur.Reset()
	}
	for _, line := range strings.Split(script, "\n") {
		if strings.EqualFold(strings.TrimSpace(line), sqlgen.BatchSeparator) {
			flush()
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
	}
	flush()
	return batches
}

type renderer struct {
	target *mssql.DDL
}

func (r renderer) render(s mssql.Statement) (string, bool) {
	switch st := s.(type) {
	case mssql.CreateSchema:
		return "CREATE SCHEMA " + sqlgen.QuoteIdent(st.Name) + ";", true
	case mssql.RenameSchema:
		return renameSchema(st.From.Name, st.To.Name), true
	case mssql.DropSchema:
		return "DROP SCHEMA " + sqlgen.QuoteIdent(st.Name) + ";", true

	case mssql.CreateTable:
		return createTable(st.Table), true
	case mssql.DropTable:
		return sqlgen.New().DropTable(st.Table.Schema, st.Table.Name).End().String(), true
	case mssql.RenameTable:
		return sqlgen.Rename(sqlgen.Qualified(st.From.Schema, st.From.Name), st.To.Name, ""), true
	case mssql.MoveTable:
		return sqlgen.Transfer(st.ToSchema, st.FromSchema, st.Name), true

	case mssql.CreateView:
		return view("CREATE", st.View), true
	case mssql.AlterView:
		return view("ALTER", st.To), true
	case mssql.DropView:
		return "DROP VIEW " + sqlgen.Qualified(st.View.Schema, st.View.Name) + ";", true
	case mssql.RenameView:
		return sqlgen.Rename(sqlgen.Qualified(st.From.Schema, st.From.Name), st.To.Name, ""), true
	case mssql.MoveView:
		return sqlgen.Transfer(st.ToSchema, st.FromSchema, st.Name), true

	case mssql.AddColumn:
		return addColumn(st.Column), true
	case mssql.DropColumn:
		return dropColumn(st.Column), true
	case mssql.RenameColumn:
		return renameColumn(st.From, st.To.Name), true
	case mssql.AlterColumn:
		return alterColumn(st.To), true
	case mssql.RecreateColumn:
		return dropColumn(st.From) + "\n" + addColumn(st.To), true
	case mssql.RecreateIdentityColumn:
		return r.recreateIdentity(st), true

	case mssql.CreatePK:
		return createPK(st.PK), true
	case mssql.DropPK:
		return dropConstraint(st.PK.Schema, st.PK.Table, st.PK.Name), true
	case mssql.RenamePK:
		return renameObject(st.From.Schema, st.From.Name, st.To.Name), true

	case mssql.CreateFK:
		return createFK(st.FK), true
	case mssql.DropFK:
		return dropConstraint(st.FK.Schema, st.FK.Table, st.FK.Name), true
	case mssql.RenameFK:
		return renameObject(st.From.Schema, st.From.Name, st.To.Name), true

	case mssql.CreateIndex:
		return createIndex(st.Index), true
	case mssql.DropIndex:
		return dropIndex(st.Index), true
	case mssql.RenameIndex:
		obj := sqlgen.Qualified(st.From.Schema, st.From.Table) + "." + sqlgen.QuoteIdent(st.From.Name)
		return sqlgen.Rename(obj, st.To.Name, "INDEX"), true

	case mssql.AddUnique:
		return addUnique(st.Unique), true
	case mssql.DropUnique:
		return dropConstraint(st.Unique.Schema, st.Unique.Table, st.Unique.Name), true
	case mssql.RenameUnique:
		return renameObject(st.From.Schema, st.From.Name, st.To.Name), true

	case mssql.AddCheck:
		return addCheck(st.Check), true
	case mssql.DropCheck:
		return dropConstraint(st.Check.Schema, st.Check.Table, st.Check.Name), true
	case mssql.RenameCheck:
		return renameObject(st.From.Schema, st.From.Name, st.To.Name), true

	case mssql.CreateDefault:
		return r.createDefault(st.Default), true
	case mssql.DropDefault:
		return dropConstraint(st.Default.Schema, st.Default.Table, st.Default.Name), true
	case mssql.RecreateDefault:
		return dropConstraint(st.From.Schema, st.From.Table, st.From.Name) + "\n" + r.createDefault(st.To), true
	}
	return "", false
}

// -----------------------------------------------------------------------------
// Schemas
// -----------------------------------------------------------------------------

// renameSchema creates the new schema, transfers every object of the old
// one and drops it. SQL Server cannot rename a schema in place.
func renameSchema(from, to string) string {
	var b strings.Builder
	b.WriteString("EXEC(" + sqlgen.QuoteString("CREATE SCHEMA "+sqlgen.QuoteIdent(to)) + ");\n")
	b.WriteString("DECLARE @transfer nvarchar(max) = N'';\n")
	b.WriteString("SELECT @transfer += N'ALTER SCHEMA " + strings.ReplaceAll(sqlgen.QuoteIdent(to), "'", "''") +
		" TRANSFER ' + QUOTENAME(s.name) + N'.' + QUOTENAME(o.name) + N';'\n")
	b.WriteString("FROM sys.objects o JOIN sys.schemas s ON o.schema_id = s.schema_id\n")
	b.WriteString("WHERE s.name = N" + sqlgen.QuoteString(from) + " AND o.parent_object_id = 0;\n")
	b.WriteString("EXEC sp_executesql @transfer;\n")
	b.WriteString("DROP SCHEMA " + sqlgen.QuoteIdent(from) + ";")
	return b.String()
}

// -----------------------------------------------------------------------------
// Tables and columns
// -----------------------------------------------------------------------------

func createTable(t mssql.TableFull) string {
	defaults := make(map[string]mssql.Default, len(t.Defaults))
	for _, d := range t.Defaults {
		defaults[d.Column] = d
	}

	var lines []string
	for _, c := range t.Columns {
		def := columnDef(c)
		if d, ok := defaults[c.Name]; ok {
			def += " " + sqlgen.New().Constraint(d.Name).Default(mssql.TypeFor(c.Type).DefaultToSQL(d.Value)).String()
		}
		lines = append(lines, def)
	}
	if t.PK != nil {
		lines = append(lines, sqlgen.New().Constraint(t.PK.Name).PrimaryKey(t.PK.Columns...).String())
	}
	for _, u := range t.Uniques {
		lines = append(lines, sqlgen.New().Constraint(u.Name).Unique(u.Columns...).String())
	}
	for _, c := range t.Checks {
		lines = append(lines, sqlgen.New().Constraint(c.Name).Check(c.Value).String())
	}

	b := sqlgen.New().CreateTable(t.Schema, t.Name).OpenParen().Newline()
	for i, l := range lines {
		b.Indent().Raw(l)
		if i < len(lines)-1 {
			b.Comma()
		}
		b.Newline()
	}
	return b.CloseParen().End().String()
}

// columnDef renders a column without its default.
func columnDef(c mssql.Column) string {
	b := sqlgen.New()
	if c.Generated != nil {
		persisted := c.Generated.Type == "persisted"
		b.ComputedAs(c.Name, c.Generated.As, persisted)
		// Only persisted computed columns accept NOT NULL.
		if persisted && c.NotNull {
			b.NotNull()
		}
		return b.String()
	}
	b.Column(c.Name, c.Type)
	if c.Identity != nil {
		seed, inc := c.Identity.Seed, c.Identity.Increment
		if inc == 0 {
			seed, inc = 1, 1
		}
		b.Identity(seed, inc)
	}
	if c.NotNull {
		b.NotNull()
	}
	return b.String()
}

func addColumn(c mssql.Column) string {
	return sqlgen.New().AlterTable(c.Schema, c.Table).Add().Raw(columnDef(c)).End().String()
}

func dropColumn(c mssql.Column) string {
	return sqlgen.New().AlterTable(c.Schema, c.Table).DropColumn(c.Name).End().String()
}

func renameColumn(c mssql.Column, to string) string {
	obj := sqlgen.Qualified(c.Schema, c.Table) + "." + sqlgen.QuoteIdent(c.Name)
	return sqlgen.Rename(obj, to, "COLUMN")
}

func alterColumn(c mssql.Column) string {
	b := sqlgen.New().AlterTable(c.Schema, c.Table).AlterColumn(c.Name, c.Type)
	if c.NotNull {
		b.NotNull()
	} else {
		b.Null()
	}
	return b.End().String()
}

// recreateIdentity drops what depends on the column, replaces the column
// and restores the dependents of the new definition.
func (r renderer) recreateIdentity(st mssql.RecreateIdentityColumn) string {
	var out []string
	for _, fk := range st.Drop.FKs {
		out = append(out, dropConstraint(fk.Schema, fk.Table, fk.Name))
	}
	for _, idx := range st.Drop.Indexes {
		out = append(out, dropIndex(idx))
	}
	for _, u := range st.Drop.Uniques {
		out = append(out, dropConstraint(u.Schema, u.Table, u.Name))
	}
	for _, pk := range st.Drop.PKs {
		out = append(out, dropConstraint(pk.Schema, pk.Table, pk.Name))
	}
	for _, c := range st.Drop.Checks {
		out = append(out, dropConstraint(c.Schema, c.Table, c.Name))
	}
	for _, d := range st.Drop.Defaults {
		out = append(out, dropConstraint(d.Schema, d.Table, d.Name))
	}

	out = append(out, dropColumn(st.From), addColumn(st.To))

	for _, pk := range st.Create.PKs {
		out = append(out, createPK(pk))
	}
	for _, u := range st.Create.Uniques {
		out = append(out, addUnique(u))
	}
	for _, c := range st.Create.Checks {
		out = append(out, addCheck(c))
	}
	for _, d := range st.Create.Defaults {
		out = append(out, addDefault(d, st.To.Type))
	}
	for _, idx := range st.Create.Indexes {
		out = append(out, createIndex(idx))
	}
	for _, fk := range st.Create.FKs {
		out = append(out, createFK(fk))
	}
	return strings.Join(out, "\n")
}

// -----------------------------------------------------------------------------
// Constraints
// -----------------------------------------------------------------------------

func dropConstraint(schema, table, name string) string {
	return sqlgen.New().AlterTable(schema, table).DropConstraint(name).End().String()
}

// renameObject renames a schema-scoped object such as a constraint.
func renameObject(schema, from, to string) string {
	return sqlgen.Rename(sqlgen.Qualified(schema, from), to, "OBJECT")
}

func createPK(pk mssql.PrimaryKey) string {
	return sqlgen.New().AlterTable(pk.Schema, pk.Table).Add().
		Constraint(pk.Name).PrimaryKey(pk.Columns...).End().String()
}

func addUnique(u mssql.Unique) string {
	return sqlgen.New().AlterTable(u.Schema, u.Table).Add().
		Constraint(u.Name).Unique(u.Columns...).End().String()
}

func addCheck(c mssql.Check) string {
	return sqlgen.New().AlterTable(c.Schema, c.Table).Add().
		Constraint(c.Name).Check(c.Value).End().String()
}

func createFK(fk mssql.ForeignKey) string {
	return sqlgen.New().AlterTable(fk.Schema, fk.Table).Add().
		Constraint(fk.Name).ForeignKey(fk.Columns...).
		References(fk.SchemaTo, fk.TableTo, fk.ColumnsTo...).
		OnDelete(fk.OnDelete).OnUpdate(fk.OnUpdate).End().String()
}

func addDefault(d mssql.Default, sqlType string) string {
	return sqlgen.New().AlterTable(d.Schema, d.Table).Add().
		Constraint(d.Name).Default(mssql.TypeFor(sqlType).DefaultToSQL(d.Value)).
		For(d.Column).End().String()
}

func (r renderer) createDefault(d mssql.Default) string {
	return addDefault(d, r.columnType(d.Schema, d.Table, d.Column))
}

// columnType looks the column up in the target schema. An empty result
// selects the pass-through default strategy.
func (r renderer) columnType(schema, table, column string) string {
	if r.target == nil {
		return ""
	}
	c, ok := r.target.Columns.One(entity.Filter{"schema": schema, "table": table, "name": column})
	if !ok {
		return ""
	}
	return c.Type
}

// -----------------------------------------------------------------------------
// Indexes and views
// -----------------------------------------------------------------------------

func createIndex(idx mssql.Index) string {
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		if c.IsExpression {
			cols[i] = c.Value
		} else {
			cols[i] = sqlgen.QuoteIdent(c.Value)
		}
	}

	b := sqlgen.New().Raw("CREATE ")
	if idx.IsUnique {
		b.Raw("UNIQUE ")
	}
	b.Raw("INDEX ").Raw(sqlgen.QuoteIdent(idx.Name)).
		Raw(" ON ").Raw(sqlgen.Qualified(idx.Schema, idx.Table)).
		OpenParen().Raw(sqlgen.List(cols...)).CloseParen()
	if idx.Where != "" {
		b.Raw(" WHERE ").Raw(idx.Where)
	}
	return b.End().String()
}

func dropIndex(idx mssql.Index) string {
	return "DROP INDEX " + sqlgen.QuoteIdent(idx.Name) + " ON " + sqlgen.Qualified(idx.Schema, idx.Table) + ";"
}

func view(verb string, v mssql.View) string {
	var opts []string
	if v.Encryption {
		opts = append(opts, "ENCRYPTION")
	}
	if v.SchemaBinding {
		opts = append(opts, "SCHEMABINDING")
	}
	if v.ViewMetadata {
		opts = append(opts, "VIEW_METADATA")
	}

	b := sqlgen.New().Raw(verb).Raw(" VIEW ").Raw(sqlgen.Qualified(v.Schema, v.Name))
	if len(opts) > 0 {
		b.Newline().Raw("WITH ").Raw(sqlgen.List(opts...))
	}
	b.Newline().Raw("AS ").Raw(strings.TrimSuffix(strings.TrimSpace(v.Definition), ";"))
	if v.CheckOption {
		b.Newline().Raw("WITH CHECK OPTION")
	}
	return b.End().String()
}
