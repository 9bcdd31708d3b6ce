// Package introspect reads a live SQL Server database into an
// mssql.InterimSchema.
//
// The catalog queries live behind the Catalog interface; Introspect only
// assembles their rows, so it can run against a fake catalog in tests.
package introspect

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/mssql"
)

// MigrationsTable records applied migrations. It is never introspected.
const MigrationsTable = "__schemadiff_migrations"

// Stage names one catalog query.
type Stage string

const (
	StageSchemas  Stage = "schemas"
	StageTables   Stage = "tables"
	StageColumns  Stage = "columns"
	StageIndexes  Stage = "indexes"
	StageFKs      Stage = "fks"
	StageChecks   Stage = "checks"
	StageDefaults Stage = "defaults"
	StageViews    Stage = "views"
)

// Status reports the state of a stage.
type Status string

const (
	StatusFetching Status = "fetching"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
)

// ProgressFunc is notified before and after every stage.
type ProgressFunc func(stage Stage, count int, status Status)

// Options narrows introspection.
type Options struct {
	// Schemas limits the result to these schemas. Empty means every user
	// schema.
	Schemas []string
	// Progress is optional.
	Progress ProgressFunc
}

// RawColumn is a table or view column as stored in sys.columns.
type RawColumn struct {
	Schema     string
	Table      string
	Name       string
	TypeName   string
	MaxLength  int
	Precision  int
	Scale      int
	Nullable   bool
	IsIdentity bool
	Seed       int64
	Increment  int64
	IsComputed bool
	Computed   string
	Persisted  bool
	IsView     bool
}

// RawIndexColumn is one key column of an index, primary key or unique
// constraint.
type RawIndexColumn struct {
	Schema             string
	Table              string
	Index              string
	IsPrimaryKey       bool
	IsUniqueConstraint bool
	IsUnique           bool
	Filter             string
	Column             string
	Descending         bool
}

// RawFKColumn is one column pair of a foreign key.
type RawFKColumn struct {
	Schema   string
	Table    string
	Name     string
	Column   string
	SchemaTo string
	TableTo  string
	ColumnTo string
	OnDelete string // sys.foreign_keys action desc, e.g. SET_NULL
	OnUpdate string
}

// RawDefault is a default constraint.
type RawDefault struct {
	Schema     string
	Table      string
	Name       string
	Column     string
	Definition string
}

// RawView is a view and its module definition.
type RawView struct {
	Schema       string
	Name         string
	Definition   string // full CREATE VIEW text, empty when encrypted
	Encrypted    bool
	SchemaBound  bool
	ViewMetadata bool
	CheckOption  bool
}

// Catalog answers the catalog queries. Rows come back in catalog order:
// columns by column id, index and foreign key columns by key ordinal.
type Catalog interface {
	Schemas(ctx context.Context) ([]string, error)
	Tables(ctx context.Context) ([]mssql.Table, error)
	Columns(ctx context.Context) ([]RawColumn, error)
	Indexes(ctx context.Context) ([]RawIndexColumn, error)
	ForeignKeys(ctx context.Context) ([]RawFKColumn, error)
	Checks(ctx context.Context) ([]mssql.Check, error)
	Defaults(ctx context.Context) ([]RawDefault, error)
	Views(ctx context.Context) ([]RawView, error)
}

// systemSchemas exist in every database and are never part of a schema.
var systemSchemas = map[string]bool{
	"dbo":                true,
	"guest":              true,
	"sys":                true,
	"INFORMATION_SCHEMA": true,
}

// Introspect reads every stage from cat. A failing stage is reported to
// Progress as failed and its error returned.
func Introspect(ctx context.Context, cat Catalog, opts Options) (mssql.InterimSchema, error) {
	var out mssql.InterimSchema
	in := newFilter(opts.Schemas)

	schemas, err := fetch(ctx, StageSchemas, opts.Progress, cat.Schemas)
	if err != nil {
		return out, err
	}
	for _, s := range schemas {
		if systemSchemas[s] || strings.HasPrefix(s, "db_") || !in.schema(s) {
			continue
		}
		out.Schemas = append(out.Schemas, mssql.Schema{Name: s})
	}

	tables, err := fetch(ctx, StageTables, opts.Progress, cat.Tables)
	if err != nil {
		return out, err
	}
	for _, t := range tables {
		if in.table(t.Schema, t.Name) {
			out.Tables = append(out.Tables, t)
		}
	}

	columns, err := fetch(ctx, StageColumns, opts.Progress, cat.Columns)
	if err != nil {
		return out, err
	}
	types := make(map[string]string)
	for _, c := range columns {
		if !in.table(c.Schema, c.Table) {
			continue
		}
		typ := FormatType(c.TypeName, c.MaxLength, c.Precision, c.Scale)
		if c.IsView {
			out.ViewColumns = append(out.ViewColumns, mssql.ViewColumn{
				Schema: c.Schema, View: c.Table, Name: c.Name, Type: typ, NotNull: !c.Nullable,
			})
			continue
		}
		types[c.Schema+"."+c.Table+"."+c.Name] = typ
		out.Columns = append(out.Columns, mssql.InterimColumn{Column: columnOf(c, typ)})
	}

	indexes, err := fetch(ctx, StageIndexes, opts.Progress, cat.Indexes)
	if err != nil {
		return out, err
	}
	addIndexes(&out, indexes, in)

	fks, err := fetch(ctx, StageFKs, opts.Progress, cat.ForeignKeys)
	if err != nil {
		return out, err
	}
	addForeignKeys(&out, fks, in)

	checks, err := fetch(ctx, StageChecks, opts.Progress, cat.Checks)
	if err != nil {
		return out, err
	}
	for _, c := range checks {
		if in.table(c.Schema, c.Table) {
			c.Value = mssql.UnwrapParens(c.Value)
			out.Checks = append(out.Checks, c)
		}
	}

	defaults, err := fetch(ctx, StageDefaults, opts.Progress, cat.Defaults)
	if err != nil {
		return out, err
	}
	for _, d := range defaults {
		if !in.table(d.Schema, d.Table) {
			continue
		}
		typ := types[d.Schema+"."+d.Table+"."+d.Column]
		out.Defaults = append(out.Defaults, mssql.Default{
			Schema:       d.Schema,
			Table:        d.Table,
			Name:         d.Name,
			NameExplicit: d.Name != mssql.DefaultNameForDefault(d.Table, d.Column),
			Column:       d.Column,
			Value:        mssql.TypeFor(typ).DefaultFromIntrospect(d.Definition),
		})
	}

	views, err := fetch(ctx, StageViews, opts.Progress, cat.Views)
	if err != nil {
		return out, err
	}
	for _, v := range views {
		if in.table(v.Schema, v.Name) {
			out.Views = append(out.Views, viewOf(v))
		}
	}

	return out, nil
}

// fetch runs one stage and reports its progress.
func fetch[T any](ctx context.Context, stage Stage, progress ProgressFunc, q func(context.Context) ([]T, error)) ([]T, error) {
	notify := func(count int, status Status) {
		if progress != nil {
			progress(stage, count, status)
		}
	}

	notify(0, StatusFetching)
	rows, err := q(ctx)
	if err != nil {
		notify(0, StatusFailed)
		return nil, alerr.Wrap(alerr.ErrIntrospection, err, fmt.Sprintf("failed to introspect %s", stage)).
			With("stage", string(stage))
	}
	notify(len(rows), StatusDone)
	return rows, nil
}

// filter selects the schemas and tables to keep.
type filter struct {
	schemas []string
}

func newFilter(schemas []string) filter {
	return filter{schemas: schemas}
}

func (f filter) schema(name string) bool {
	return len(f.schemas) == 0 || slices.Contains(f.schemas, name)
}

func (f filter) table(schema, name string) bool {
	return name != MigrationsTable && f.schema(schema)
}

// -----------------------------------------------------------------------------
// Row assembly
// -----------------------------------------------------------------------------

func columnOf(c RawColumn, typ string) mssql.Column {
	col := mssql.Column{
		Schema:  c.Schema,
		Table:   c.Table,
		Name:    c.Name,
		Type:    typ,
		NotNull: !c.Nullable,
	}
	if c.IsIdentity {
		col.Identity = &mssql.Identity{Seed: int(c.Seed), Increment: int(c.Increment)}
	}
	if c.IsComputed {
		kind := "virtual"
		if c.Persisted {
			kind = "persisted"
		}
		col.Generated = &mssql.Generated{Type: kind, As: mssql.UnwrapParens(c.Computed)}
	}
	return col
}

// addIndexes splits index rows into primary keys, unique constraints and
// plain indexes.
func addIndexes(out *mssql.InterimSchema, rows []RawIndexColumn, in filter) {
	type group struct {
		first RawIndexColumn
		cols  []mssql.IndexColumn
		names []string
	}
	var order []string
	groups := make(map[string]*group)
	for _, r := range rows {
		if !in.table(r.Schema, r.Table) {
			continue
		}
		key := r.Schema + "." + r.Table + "." + r.Index
		g, ok := groups[key]
		if !ok {
			g = &group{first: r}
			groups[key] = g
			order = append(order, key)
		}
		g.names = append(g.names, r.Column)
		if r.Descending {
			g.cols = append(g.cols, mssql.IndexColumn{Value: "[" + r.Column + "] DESC", IsExpression: true})
		} else {
			g.cols = append(g.cols, mssql.IndexColumn{Value: r.Column})
		}
	}

	for _, key := range order {
		g := groups[key]
		r := g.first
		switch {
		case r.IsPrimaryKey:
			out.PKs = append(out.PKs, mssql.PrimaryKey{
				Schema:       r.Schema,
				Table:        r.Table,
				Name:         r.Index,
				NameExplicit: r.Index != mssql.DefaultNameForPK(r.Table),
				Columns:      g.names,
			})
		case r.IsUniqueConstraint:
			out.Uniques = append(out.Uniques, mssql.Unique{
				Schema:       r.Schema,
				Table:        r.Table,
				Name:         r.Index,
				NameExplicit: r.Index != mssql.DefaultNameForUnique(r.Table, g.names),
				Columns:      g.names,
			})
		default:
			out.Indexes = append(out.Indexes, mssql.Index{
				Schema:   r.Schema,
				Table:    r.Table,
				Name:     r.Index,
				Columns:  g.cols,
				IsUnique: r.IsUnique,
				Where:    mssql.UnwrapParens(r.Filter),
			})
		}
	}
}

func addForeignKeys(out *mssql.InterimSchema, rows []RawFKColumn, in filter) {
	var order []string
	fks := make(map[string]*mssql.ForeignKey)
	for _, r := range rows {
		if !in.table(r.Schema, r.Table) {
			continue
		}
		key := r.Schema + "." + r.Table + "." + r.Name
		fk, ok := fks[key]
		if !ok {
			fk = &mssql.ForeignKey{
				Schema:   r.Schema,
				Table:    r.Table,
				Name:     r.Name,
				SchemaTo: r.SchemaTo,
				TableTo:  r.TableTo,
				OnDelete: action(r.OnDelete),
				OnUpdate: action(r.OnUpdate),
			}
			fks[key] = fk
			order = append(order, key)
		}
		fk.Columns = append(fk.Columns, r.Column)
		fk.ColumnsTo = append(fk.ColumnsTo, r.ColumnTo)
	}

	for _, key := range order {
		fk := fks[key]
		fk.NameExplicit = fk.Name != mssql.DefaultNameForFK(fk.Table, fk.Columns, fk.TableTo, fk.ColumnsTo)
		out.FKs = append(out.FKs, *fk)
	}
}

// action converts NO_ACTION style descriptions to NO ACTION.
func action(desc string) string {
	if desc == "" {
		return "NO ACTION"
	}
	return strings.ReplaceAll(strings.ToUpper(desc), "_", " ")
}

var (
	viewHeader  = regexp.MustCompile(`(?is)^\s*create\s+view\s+.*?\bas\b\s*`)
	checkOption = regexp.MustCompile(`(?is)\s*with\s+check\s+option\s*;?\s*$`)
)

func viewOf(v RawView) mssql.View {
	def := v.Definition
	if loc := viewHeader.FindStringIndex(def); loc != nil {
		def = def[loc[1]:]
	}
	def = checkOption.ReplaceAllString(def, "")
	def = strings.TrimSuffix(strings.TrimSpace(def), ";")
	return mssql.View{
		Schema:        v.Schema,
		Name:          v.Name,
		Definition:    def,
		Encryption:    v.Encrypted,
		SchemaBinding: v.SchemaBound,
		ViewMetadata:  v.ViewMetadata,
		CheckOption:   v.CheckOption,
	}
}
