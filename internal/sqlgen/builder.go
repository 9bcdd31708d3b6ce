// Package sqlgen provides T-SQL building helpers to reduce string concatenation.
package sqlgen

import (
	"strconv"
	"strings"
)

// BatchSeparator ends a batch for sqlcmd and SSMS. CREATE VIEW and
// CREATE SCHEMA must be the first statement of their batch.
const BatchSeparator = "GO"

// Builder provides fluent T-SQL construction.
type Builder struct {
	buf strings.Builder
}

// New creates an empty Builder.
func New() *Builder {
	return &Builder{}
}

// ----------------------------------------------------------------------------
// DDL Helpers
// ----------------------------------------------------------------------------

// CreateTable appends "CREATE TABLE [schema].[name]".
func (b *Builder) CreateTable(schema, name string) *Builder {
	b.buf.WriteString("CREATE TABLE ")
	b.buf.WriteString(Qualified(schema, name))
	return b
}

// DropTable appends "DROP TABLE [schema].[name]".
func (b *Builder) DropTable(schema, name string) *Builder {
	b.buf.WriteString("DROP TABLE ")
	b.buf.WriteString(Qualified(schema, name))
	return b
}

// AlterTable appends "ALTER TABLE [schema].[name]".
func (b *Builder) AlterTable(schema, name string) *Builder {
	b.buf.WriteString("ALTER TABLE ")
	b.buf.WriteString(Qualified(schema, name))
	return b
}

// Add appends " ADD ". T-SQL has no COLUMN keyword after ADD.
func (b *Builder) Add() *Builder {
	b.buf.WriteString(" ADD ")
	return b
}

// Column appends "[name] <typ>" (inside CREATE TABLE or after ADD).
func (b *Builder) Column(name, typ string) *Builder {
	b.buf.WriteString(QuoteIdent(name))
	b.buf.WriteString(" ")
	b.buf.WriteString(typ)
	return b
}

// DropColumn appends " DROP COLUMN [name]".
func (b *Builder) DropColumn(name string) *Builder {
	b.buf.WriteString(" DROP COLUMN ")
	b.buf.WriteString(QuoteIdent(name))
	return b
}

// AlterColumn appends " ALTER COLUMN [name] <typ>".
func (b *Builder) AlterColumn(name, typ string) *Builder {
	b.buf.WriteString(" ALTER COLUMN ")
	b.buf.WriteString(QuoteIdent(name))
	b.buf.WriteString(" ")
	b.buf.WriteString(typ)
	return b
}

// DropConstraint appends " DROP CONSTRAINT [name]".
func (b *Builder) DropConstraint(name string) *Builder {
	b.buf.WriteString(" DROP CONSTRAINT ")
	b.buf.WriteString(QuoteIdent(name))
	return b
}

// ----------------------------------------------------------------------------
// Column Modifiers
// ----------------------------------------------------------------------------

// NotNull appends " NOT NULL".
func (b *Builder) NotNull() *Builder {
	b.buf.WriteString(" NOT NULL")
	return b
}

// Null appends " NULL".
func (b *Builder) Null() *Builder {
	b.buf.WriteString(" NULL")
	return b
}

// Identity appends " IDENTITY(seed, increment)".
func (b *Builder) Identity(seed, increment int) *Builder {
	b.buf.WriteString(" IDENTITY(")
	b.buf.WriteString(strconv.Itoa(seed))
	b.buf.WriteString(", ")
	b.buf.WriteString(strconv.Itoa(increment))
	b.buf.WriteString(")")
	return b
}

// ComputedAs appends "[name] AS (<expr>)", optionally PERSISTED.
func (b *Builder) ComputedAs(name, expr string, persisted bool) *Builder {
	b.buf.WriteString(QuoteIdent(name))
	b.buf.WriteString(" AS (")
	b.buf.WriteString(expr)
	b.buf.WriteString(")")
	if persisted {
		b.buf.WriteString(" PERSISTED")
	}
	return b
}

// Default appends " DEFAULT <expr>". The expression is written as-is.
func (b *Builder) Default(expr string) *Builder {
	b.buf.WriteString(" DEFAULT ")
	b.buf.WriteString(expr)
	return b
}

// For appends " FOR [column]", completing a named default constraint.
func (b *Builder) For(column string) *Builder {
	b.buf.WriteString(" FOR ")
	b.buf.WriteString(QuoteIdent(column))
	return b
}

// ----------------------------------------------------------------------------
// Constraints
// ----------------------------------------------------------------------------

// Constraint appends "CONSTRAINT [name]".
func (b *Builder) Constraint(name string) *Builder {
	b.buf.WriteString("CONSTRAINT ")
	b.buf.WriteString(QuoteIdent(name))
	return b
}

// PrimaryKey appends " PRIMARY KEY ([cols])".
func (b *Builder) PrimaryKey(cols ...string) *Builder {
	b.buf.WriteString(" PRIMARY KEY (")
	b.buf.WriteString(Columns(cols...))
	b.buf.WriteString(")")
	return b
}

// Unique appends " UNIQUE ([cols])".
func (b *Builder) Unique(cols ...string) *Builder {
	b.buf.WriteString(" UNIQUE (")
	b.buf.WriteString(Columns(cols...))
	b.buf.WriteString(")")
	return b
}

// ForeignKey appends " FOREIGN KEY ([cols])".
func (b *Builder) ForeignKey(cols ...string) *Builder {
	b.buf.WriteString(" FOREIGN KEY (")
	b.buf.WriteString(Columns(cols...))
	b.buf.WriteString(")")
	return b
}

// References appends " REFERENCES [schema].[table]([cols])".
func (b *Builder) References(schema, table string, cols ...string) *Builder {
	b.buf.WriteString(" REFERENCES ")
	b.buf.WriteString(Qualified(schema, table))
	b.buf.WriteString("(")
	b.buf.WriteString(Columns(cols...))
	b.buf.WriteString(")")
	return b
}

// OnDelete appends " ON DELETE <action>". NO ACTION is the default and is
// omitted.
func (b *Builder) OnDelete(action string) *Builder {
	if action != "" && action != "NO ACTION" {
		b.buf.WriteString(" ON DELETE ")
		b.buf.WriteString(action)
	}
	return b
}

// OnUpdate appends " ON UPDATE <action>". NO ACTION is omitted.
func (b *Builder) OnUpdate(action string) *Builder {
	if action != "" && action != "NO ACTION" {
		b.buf.WriteString(" ON UPDATE ")
		b.buf.WriteString(action)
	}
	return b
}

// Check appends " CHECK (<expr>)".
func (b *Builder) Check(expr string) *Builder {
	b.buf.WriteString(" CHECK (")
	b.buf.WriteString(expr)
	b.buf.WriteString(")")
	return b
}

// ----------------------------------------------------------------------------
// Utilities
// ----------------------------------------------------------------------------

// Raw appends raw SQL to the buffer without any modification.
func (b *Builder) Raw(sql string) *Builder {
	b.buf.WriteString(sql)
	return b
}

// Comma appends ",".
func (b *Builder) Comma() *Builder {
	b.buf.WriteString(",")
	return b
}

// OpenParen appends " (".
func (b *Builder) OpenParen() *Builder {
	b.buf.WriteString(" (")
	return b
}

// CloseParen appends ")".
func (b *Builder) CloseParen() *Builder {
	b.buf.WriteString(")")
	return b
}

// Newline appends a newline character.
func (b *Builder) Newline() *Builder {
	b.buf.WriteString("\n")
	return b
}

// Indent appends a tab.
func (b *Builder) Indent() *Builder {
	b.buf.WriteString("\t")
	return b
}

// Space appends a space character.
func (b *Builder) Space() *Builder {
	b.buf.WriteString(" ")
	return b
}

// End appends the statement terminator.
func (b *Builder) End() *Builder {
	b.buf.WriteString(";")
	return b
}

// String returns the accumulated SQL string.
func (b *Builder) String() string {
	return b.buf.String()
}

// Reset clears the buffer so the builder can be reused.
func (b *Builder) Reset() *Builder {
	b.buf.Reset()
	return b
}

// ----------------------------------------------------------------------------
// Standalone Helpers
// ----------------------------------------------------------------------------

// QuoteIdent brackets an identifier: [name]. A closing bracket inside the
// name is escaped by doubling it.
func QuoteIdent(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

// Qualified returns [schema].[name], or [name] when schema is empty.
func Qualified(schema, name string) string {
	if schema == "" {
		return QuoteIdent(name)
	}
	return QuoteIdent(schema) + "." + QuoteIdent(name)
}

// QuoteString returns a T-SQL string literal. Single quotes are doubled.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Columns returns a comma-separated list of bracketed column names.
// Example: Columns("a", "b") -> "[a], [b]"
func Columns(cols ...string) string {
	if len(cols) == 0 {
		return ""
	}
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = QuoteIdent(col)
	}
	return strings.Join(parts, ", ")
}

// Placeholders returns n named parameters as go-mssqldb expects them:
// @p1, @p2, ...
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "@p" + strconv.Itoa(i+1)
	}
	return strings.Join(parts, ", ")
}

// List returns a comma-separated list of items without quoting.
// Example: List("a", "b", "c") -> "a, b, c"
func List(items ...string) string {
	return strings.Join(items, ", ")
}

// Rename builds an sp_rename call. object is the current qualified name,
// newName the bare new name, and kind one of COLUMN, INDEX or OBJECT; an
// empty kind renames a table, view or constraint.
func Rename(object, newName, kind string) string {
	var b strings.Builder
	b.WriteString("EXEC sp_rename ")
	b.WriteString(QuoteString(object))
	b.WriteString(", ")
	b.WriteString(QuoteString(newName))
	if kind != "" {
		b.WriteString(", ")
		b.WriteString(QuoteString(kind))
	}
	b.WriteString(";")
	return b.String()
}

// Transfer builds "ALTER SCHEMA [to] TRANSFER [from].[name];".
func Transfer(toSchema, fromSchema, name string) string {
	return "ALTER SCHEMA " + QuoteIdent(toSchema) + " TRANSFER " + Qualified(fromSchema, name) + ";"
}
