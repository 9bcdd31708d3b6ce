// Package mssql models a SQL Server schema as a DDL graph on top of the
// entity store, ingests interim schemas into it, and diffs two graphs into
// an ordered list of migration statements.
package mssql

import (
	"strings"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/entity"
)

// Entity type names of the DDL graph.
const (
	EntitySchemas  = "schemas"
	EntityTables   = "tables"
	EntityColumns  = "columns"
	EntityPKs      = "pks"
	EntityFKs      = "fks"
	EntityIndexes  = "indexes"
	EntityUniques  = "uniques"
	EntityChecks   = "checks"
	EntityDefaults = "defaults"
	EntityViews    = "views"
)

// Referential actions accepted on foreign keys.
var fkActions = []string{"NO ACTION", "CASCADE", "SET NULL", "SET DEFAULT"}

var definition = entity.Definition{
	entity.NewType(EntitySchemas,
		entity.Required("name"),
	),
	entity.NewType(EntityTables,
		entity.Required("schema"),
		entity.Required("name"),
	),
	entity.NewType(EntityColumns,
		entity.Required("schema"),
		entity.Required("table"),
		entity.Required("name"),
		entity.String("type"),
		entity.Bool("notNull"),
		entity.Object("generated",
			entity.Enum("type", "persisted", "virtual"),
			entity.String("as"),
		),
		entity.Object("identity",
			entity.Number("seed"),
			entity.Number("increment"),
		),
	),
	entity.NewType(EntityPKs,
		entity.Required("schema"),
		entity.Required("table"),
		entity.Required("name"),
		entity.Bool("nameExplicit"),
		entity.StringList("columns"),
	),
	entity.NewType(EntityFKs,
		entity.Required("schema"),
		entity.Required("table"),
		entity.Required("name"),
		entity.Bool("nameExplicit"),
		entity.StringList("columns"),
		entity.String("schemaTo"),
		entity.String("tableTo"),
		entity.StringList("columnsTo"),
		entity.Enum("onUpdate", fkActions...),
		entity.Enum("onDelete", fkActions...),
	),
	entity.NewType(EntityIndexes,
		entity.Required("schema"),
		entity.Required("table"),
		entity.Required("name"),
		entity.ObjectList("columns",
			entity.String("value"),
			entity.Bool("isExpression"),
		),
		entity.Bool("isUnique"),
		entity.NullableString("where"),
	),
	entity.NewType(EntityUniques,
		entity.Required("schema"),
		entity.Required("table"),
		entity.Required("name"),
		entity.Bool("nameExplicit"),
		entity.StringList("columns"),
	),
	entity.NewType(EntityChecks,
		entity.Required("schema"),
		entity.Required("table"),
		entity.Required("name"),
		entity.String("value"),
	),
	entity.NewType(EntityDefaults,
		entity.Required("schema"),
		entity.Required("table"),
		entity.Required("name"),
		entity.Bool("nameExplicit"),
		entity.String("column"),
		entity.NullableString("value"),
	),
	entity.NewType(EntityViews,
		entity.Required("schema"),
		entity.Required("name"),
		entity.String("definition"),
		entity.Bool("encryption"),
		entity.Bool("schemaBinding"),
		entity.Bool("viewMetadata"),
		entity.Bool("checkOption"),
	),
}

// Definition returns the entity definition of the DDL graph.
func Definition() entity.Definition {
	return definition
}

// DDL is one schema state: an entity store plus typed repositories over
// each entity type.
type DDL struct {
	store *entity.Store

	Schemas  *Repo[Schema]
	Tables   *Repo[Table]
	Columns  *Repo[Column]
	PKs      *Repo[PrimaryKey]
	FKs      *Repo[ForeignKey]
	Indexes  *Repo[Index]
	Uniques  *Repo[Unique]
	Checks   *Repo[Check]
	Defaults *Repo[Default]
	Views    *Repo[View]
}

// CreateDDL returns an empty DDL graph.
func CreateDDL() *DDL {
	s := entity.MustNew(definition)
	return &DDL{
		store:    s,
		Schemas:  newRepo(s, EntitySchemas, Schema.row, schemaFromRow),
		Tables:   newRepo(s, EntityTables, Table.row, tableFromRow),
		Columns:  newRepo(s, EntityColumns, Column.row, columnFromRow),
		PKs:      newRepo(s, EntityPKs, PrimaryKey.row, pkFromRow),
		FKs:      newRepo(s, EntityFKs, ForeignKey.row, fkFromRow),
		Indexes:  newRepo(s, EntityIndexes, Index.row, indexFromRow),
		Uniques:  newRepo(s, EntityUniques, Unique.row, uniqueFromRow),
		Checks:   newRepo(s, EntityChecks, Check.row, checkFromRow),
		Defaults: newRepo(s, EntityDefaults, Default.row, defaultFromRow),
		Views:    newRepo(s, EntityViews, View.row, viewFromRow),
	}
}

// FromEntities rebuilds a DDL graph from the flat entity list produced by
// Entities. A composite key collision is reported as an error.
func FromEntities(rows []entity.Row) (*DDL, error) {
	ddl := CreateDDL()
	for _, r := range rows {
		res, err := ddl.store.Entities().Push(r)
		if err != nil {
			return nil, err
		}
		if res.Status == entity.StatusConflict {
			return nil, alerr.New(alerr.ErrStoreConflict, "duplicate entity in snapshot").
				With("entity", entity.KeyOf(res.Data).String())
		}
	}
	return ddl, nil
}

// Clone returns an independent copy of d.
func (d *DDL) Clone() *DDL {
	c := CreateDDL()
	for _, r := range d.Entities() {
		// Rows come from a valid store, so they neither fail nor collide.
		_, _ = c.store.Entities().Push(r)
	}
	return c
}

// Store returns the underlying entity store.
func (d *DDL) Store() *entity.Store {
	return d.store
}

// Entities returns every entity in insertion order.
func (d *DDL) Entities() []entity.Row {
	return d.store.Entities().List(nil)
}

// Repo is a typed facade over one entity collection.
type Repo[T any] struct {
	c      *entity.Collection
	encode func(T) entity.Row
	decode func(entity.Row) T
}

func newRepo[T any](s *entity.Store, name string, encode func(T) entity.Row, decode func(entity.Row) T) *Repo[T] {
	return &Repo[T]{c: s.Collection(name), encode: encode, decode: decode}
}

// Collection returns the untyped collection.
func (r *Repo[T]) Collection() *entity.Collection {
	return r.c
}

// Push inserts v.
func (r *Repo[T]) Push(v T) entity.PushResult {
	// A typed collection always routes, so Push cannot fail here.
	res, _ := r.c.Push(r.encode(v))
	return res
}

// List returns the entities matching f.
func (r *Repo[T]) List(f entity.Filter) []T {
	rows := r.c.List(f)
	out := make([]T, len(rows))
	for i, row := range rows {
		out[i] = r.decode(row)
	}
	return out
}

// One returns the first entity matching f.
func (r *Repo[T]) One(f entity.Filter) (T, bool) {
	row := r.c.One(f)
	if row == nil {
		var zero T
		return zero, false
	}
	return r.decode(row), true
}

// Update applies u to the collection.
func (r *Repo[T]) Update(u entity.Update) entity.UpdateResult {
	return r.c.Update(u)
}

// Delete removes the entities matching f and returns them.
func (r *Repo[T]) Delete(f entity.Filter) []T {
	rows := r.c.Delete(f)
	out := make([]T, len(rows))
	for i, row := range rows {
		out[i] = r.decode(row)
	}
	return out
}

// Len returns the number of entities.
func (r *Repo[T]) Len() int {
	return r.c.Len()
}

// Decode converts a row of this collection into T.
func (r *Repo[T]) Decode(row entity.Row) T {
	return r.decode(row)
}

// Encode converts v into a row.
func (r *Repo[T]) Encode(v T) entity.Row {
	return r.encode(v)
}

// -----------------------------------------------------------------------------
// Entities
// -----------------------------------------------------------------------------

// Schema is a database schema.
type Schema struct {
	Name string `json:"name"`
}

func (s Schema) row() entity.Row {
	return entity.Row{"name": s.Name}
}

func schemaFromRow(r entity.Row) Schema {
	return Schema{Name: r.Str("name")}
}

// Ident returns the schema name.
func (s Schema) Ident() string { return s.Name }

// Shape is empty: any two schemas may be paired as a rename.
func (s Schema) Shape() string { return "" }

// Table is a table without its columns and constraints.
type Table struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

func (t Table) row() entity.Row {
	return entity.Row{"schema": t.Schema, "name": t.Name}
}

func tableFromRow(r entity.Row) Table {
	return Table{Schema: r.Str("schema"), Name: r.Str("name")}
}

// Ident returns schema.name.
func (t Table) Ident() string { return t.Schema + "." + t.Name }

// Shape is empty: any two tables may be paired as a rename.
func (t Table) Shape() string { return "" }

// Generated describes a computed column.
type Generated struct {
	Type string `json:"type"` // persisted | virtual
	As   string `json:"as"`
}

// Identity describes an identity column.
type Identity struct {
	Seed      int `json:"seed"`
	Increment int `json:"increment"`
}

// Column is a table column.
type Column struct {
	Schema    string     `json:"schema"`
	Table     string     `json:"table"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	NotNull   bool       `json:"notNull"`
	Generated *Generated `json:"generated,omitempty"`
	Identity  *Identity  `json:"identity,omitempty"`
}

func (c Column) row() entity.Row {
	r := entity.Row{
		"schema":    c.Schema,
		"table":     c.Table,
		"name":      c.Name,
		"type":      c.Type,
		"notNull":   c.NotNull,
		"generated": nil,
		"identity":  nil,
	}
	if c.Generated != nil {
		r["generated"] = entity.Row{"type": c.Generated.Type, "as": c.Generated.As}
	}
	if c.Identity != nil {
		r["identity"] = entity.Row{
			"seed":      float64(c.Identity.Seed),
			"increment": float64(c.Identity.Increment),
		}
	}
	return r
}

func columnFromRow(r entity.Row) Column {
	c := Column{
		Schema:  r.Str("schema"),
		Table:   r.Str("table"),
		Name:    r.Str("name"),
		Type:    r.Str("type"),
		NotNull: r.Bool("notNull"),
	}
	if g := r.Object("generated"); g != nil {
		c.Generated = &Generated{Type: g.Str("type"), As: g.Str("as")}
	}
	if id := r.Object("identity"); id != nil {
		c.Identity = &Identity{Seed: int(id.Number("seed")), Increment: int(id.Number("increment"))}
	}
	return c
}

// Ident returns schema.table.name.
func (c Column) Ident() string { return c.Schema + "." + c.Table + "." + c.Name }

// Shape is the column type, so only same-typed columns pair heuristically.
func (c Column) Shape() string { return strings.ToLower(c.Type) }

// PrimaryKey is a primary key constraint.
type PrimaryKey struct {
	Schema       string   `json:"schema"`
	Table        string   `json:"table"`
	Name         string   `json:"name"`
	NameExplicit bool     `json:"nameExplicit"`
	Columns      []string `json:"columns"`
}

func (p PrimaryKey) row() entity.Row {
	return entity.Row{
		"schema":       p.Schema,
		"table":        p.Table,
		"name":         p.Name,
		"nameExplicit": p.NameExplicit,
		"columns":      cloneStrings(p.Columns),
	}
}

func pkFromRow(r entity.Row) PrimaryKey {
	return PrimaryKey{
		Schema:       r.Str("schema"),
		Table:        r.Str("table"),
		Name:         r.Str("name"),
		NameExplicit: r.Bool("nameExplicit"),
		Columns:      cloneStrings(r.Strings("columns")),
	}
}

// Ident returns schema.table.name.
func (p PrimaryKey) Ident() string { return p.Schema + "." + p.Table + "." + p.Name }

// Shape is the column list.
func (p PrimaryKey) Shape() string { return strings.Join(p.Columns, ",") }

// Unique is a unique constraint.
type Unique struct {
	Schema       string   `json:"schema"`
	Table        string   `json:"table"`
	Name         string   `json:"name"`
	NameExplicit bool     `json:"nameExplicit"`
	Columns      []string `json:"columns"`
}

func (u Unique) row() entity.Row {
	return entity.Row{
		"schema":       u.Schema,
		"table":        u.Table,
		"name":         u.Name,
		"nameExplicit": u.NameExplicit,
		"columns":      cloneStrings(u.Columns),
	}
}

func uniqueFromRow(r entity.Row) Unique {
	return Unique{
		Schema:       r.Str("schema"),
		Table:        r.Str("table"),
		Name:         r.Str("name"),
		NameExplicit: r.Bool("nameExplicit"),
		Columns:      cloneStrings(r.Strings("columns")),
	}
}

// Ident returns schema.table.name.
func (u Unique) Ident() string { return u.Schema + "." + u.Table + "." + u.Name }

// Shape is the column list.
func (u Unique) Shape() string { return strings.Join(u.Columns, ",") }

// ForeignKey is a foreign key constraint.
type ForeignKey struct {
	Schema       string   `json:"schema"`
	Table        string   `json:"table"`
	Name         string   `json:"name"`
	NameExplicit bool     `json:"nameExplicit"`
	Columns      []string `json:"columns"`
	SchemaTo     string   `json:"schemaTo"`
	TableTo      string   `json:"tableTo"`
	ColumnsTo    []string `json:"columnsTo"`
	OnUpdate     string   `json:"onUpdate"`
	OnDelete     string   `json:"onDelete"`
}

func (f ForeignKey) row() entity.Row {
	return entity.Row{
		"schema":       f.Schema,
		"table":        f.Table,
		"name":         f.Name,
		"nameExplicit": f.NameExplicit,
		"columns":      cloneStrings(f.Columns),
		"schemaTo":     f.SchemaTo,
		"tableTo":      f.TableTo,
		"columnsTo":    cloneStrings(f.ColumnsTo),
		"onUpdate":     orAction(f.OnUpdate),
		"onDelete":     orAction(f.OnDelete),
	}
}

func orAction(a string) string {
	if a == "" {
		return "NO ACTION"
	}
	return strings.ToUpper(a)
}

func fkFromRow(r entity.Row) ForeignKey {
	return ForeignKey{
		Schema:       r.Str("schema"),
		Table:        r.Str("table"),
		Name:         r.Str("name"),
		NameExplicit: r.Bool("nameExplicit"),
		Columns:      cloneStrings(r.Strings("columns")),
		SchemaTo:     r.Str("schemaTo"),
		TableTo:      r.Str("tableTo"),
		ColumnsTo:    cloneStrings(r.Strings("columnsTo")),
		OnUpdate:     r.Str("onUpdate"),
		OnDelete:     r.Str("onDelete"),
	}
}

// Ident returns schema.table.name.
func (f ForeignKey) Ident() string { return f.Schema + "." + f.Table + "." + f.Name }

// Shape is the column mapping.
func (f ForeignKey) Shape() string {
	return strings.Join(f.Columns, ",") + "->" + f.SchemaTo + "." + f.TableTo + "(" + strings.Join(f.ColumnsTo, ",") + ")"
}

// IndexColumn is one index key. Expression keys hold SQL text in Value.
type IndexColumn struct {
	Value        string `json:"value"`
	IsExpression bool   `json:"isExpression"`
}

// Index is a table index. An empty Where means no filter.
type Index struct {
	Schema   string        `json:"schema"`
	Table    string        `json:"table"`
	Name     string        `json:"name"`
	Columns  []IndexColumn `json:"columns"`
	IsUnique bool          `json:"isUnique"`
	Where    string        `json:"where,omitempty"`
}

func (i Index) row() entity.Row {
	cols := make([]entity.Row, len(i.Columns))
	for n, c := range i.Columns {
		cols[n] = entity.Row{"value": c.Value, "isExpression": c.IsExpression}
	}
	r := entity.Row{
		"schema":   i.Schema,
		"table":    i.Table,
		"name":     i.Name,
		"columns":  cols,
		"isUnique": i.IsUnique,
		"where":    nil,
	}
	if i.Where != "" {
		r["where"] = i.Where
	}
	return r
}

func indexFromRow(r entity.Row) Index {
	idx := Index{
		Schema:   r.Str("schema"),
		Table:    r.Str("table"),
		Name:     r.Str("name"),
		IsUnique: r.Bool("isUnique"),
		Where:    r.Str("where"),
	}
	for _, c := range r.Objects("columns") {
		idx.Columns = append(idx.Columns, IndexColumn{Value: c.Str("value"), IsExpression: c.Bool("isExpression")})
	}
	return idx
}

// ColumnNames returns the plain (non-expression) key columns.
func (i Index) ColumnNames() []string {
	var out []string
	for _, c := range i.Columns {
		if !c.IsExpression {
			out = append(out, c.Value)
		}
	}
	return out
}

// Ident returns schema.table.name.
func (i Index) Ident() string { return i.Schema + "." + i.Table + "." + i.Name }

// Shape is the key list.
func (i Index) Shape() string {
	parts := make([]string, len(i.Columns))
	for n, c := range i.Columns {
		parts[n] = c.Value
	}
	return strings.Join(parts, ",")
}

// Check is a check constraint.
type Check struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

func (c Check) row() entity.Row {
	return entity.Row{"schema": c.Schema, "table": c.Table, "name": c.Name, "value": c.Value}
}

func checkFromRow(r entity.Row) Check {
	return Check{Schema: r.Str("schema"), Table: r.Str("table"), Name: r.Str("name"), Value: r.Str("value")}
}

// Ident returns schema.table.name.
func (c Check) Ident() string { return c.Schema + "." + c.Table + "." + c.Name }

// Shape is the check expression.
func (c Check) Shape() string { return c.Value }

// Default is a default constraint on one column. Value holds the SQL
// expression without the outer parentheses SQL Server adds.
type Default struct {
	Schema       string `json:"schema"`
	Table        string `json:"table"`
	Name         string `json:"name"`
	NameExplicit bool   `json:"nameExplicit"`
	Column       string `json:"column"`
	Value        string `json:"value"`
}

func (d Default) row() entity.Row {
	return entity.Row{
		"schema":       d.Schema,
		"table":        d.Table,
		"name":         d.Name,
		"nameExplicit": d.NameExplicit,
		"column":       d.Column,
		"value":        d.Value,
	}
}

func defaultFromRow(r entity.Row) Default {
	return Default{
		Schema:       r.Str("schema"),
		Table:        r.Str("table"),
		Name:         r.Str("name"),
		NameExplicit: r.Bool("nameExplicit"),
		Column:       r.Str("column"),
		Value:        r.Str("value"),
	}
}

// Ident returns schema.table.name.
func (d Default) Ident() string { return d.Schema + "." + d.Table + "." + d.Name }

// Shape is the column and value.
func (d Default) Shape() string { return d.Column + "=" + d.Value }

// View is a view definition.
type View struct {
	Schema        string `json:"schema"`
	Name          string `json:"name"`
	Definition    string `json:"definition"`
	Encryption    bool   `json:"encryption"`
	SchemaBinding bool   `json:"schemaBinding"`
	ViewMetadata  bool   `json:"viewMetadata"`
	CheckOption   bool   `json:"checkOption"`
}

func (v View) row() entity.Row {
	return entity.Row{
		"schema":        v.Schema,
		"name":          v.Name,
		"definition":    v.Definition,
		"encryption":    v.Encryption,
		"schemaBinding": v.SchemaBinding,
		"viewMetadata":  v.ViewMetadata,
		"checkOption":   v.CheckOption,
	}
}

func viewFromRow(r entity.Row) View {
	return View{
		Schema:        r.Str("schema"),
		Name:          r.Str("name"),
		Definition:    r.Str("definition"),
		Encryption:    r.Bool("encryption"),
		SchemaBinding: r.Bool("schemaBinding"),
		ViewMetadata:  r.Bool("viewMetadata"),
		CheckOption:   r.Bool("checkOption"),
	}
}

// Ident returns schema.name.
func (v View) Ident() string { return v.Schema + "." + v.Name }

// Shape is empty: any two views may be paired as a rename.
func (v View) Shape() string { return "" }

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string(nil), in...)
}
