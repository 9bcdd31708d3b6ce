package mssql

import (
	"fmt"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/entity"
)

// InterimColumn is a column as produced by introspection or a schema file.
// The PK and unique hints are expanded into constraints by InterimToDDL.
type InterimColumn struct {
	Column
	IsPK       bool    `json:"isPK"`
	PKName     *string `json:"pkName,omitempty"`
	IsUnique   bool    `json:"isUnique"`
	UniqueName *string `json:"uniqueName,omitempty"`
}

// ViewColumn is one output column of a view.
type ViewColumn struct {
	Schema  string `json:"schema"`
	View    string `json:"view"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	NotNull bool   `json:"notNull"`
}

// InterimSchema is the loosely validated ingestion format.
type InterimSchema struct {
	Schemas     []Schema        `json:"schemas"`
	Tables      []Table         `json:"tables"`
	Columns     []InterimColumn `json:"columns"`
	PKs         []PrimaryKey    `json:"pks"`
	FKs         []ForeignKey    `json:"fks"`
	Indexes     []Index         `json:"indexes"`
	Uniques     []Unique        `json:"uniques"`
	Checks      []Check         `json:"checks"`
	Defaults    []Default       `json:"defaults"`
	Views       []View          `json:"views"`
	ViewColumns []ViewColumn    `json:"viewColumns"`
}

// SchemaErrorKind classifies a SchemaError.
type SchemaErrorKind string

const (
	SchemaNameDuplicate     SchemaErrorKind = "schema_name_duplicate"
	TableNameDuplicate      SchemaErrorKind = "table_name_duplicate"
	ColumnNameDuplicate     SchemaErrorKind = "column_name_duplicate"
	ViewNameDuplicate       SchemaErrorKind = "view_name_duplicate"
	IndexNameDuplicate      SchemaErrorKind = "index_name_duplicate"
	ConstraintNameDuplicate SchemaErrorKind = "constraint_name_duplicate"
	PKDuplicate             SchemaErrorKind = "pk_duplicate"
)

// SchemaError is a structural problem found while building a DDL graph.
type SchemaError struct {
	Kind   SchemaErrorKind
	Schema string
	Table  string
	Name   string
}

// String returns a one-line description.
func (e SchemaError) String() string {
	switch e.Kind {
	case SchemaNameDuplicate:
		return fmt.Sprintf("schema %q is declared twice", e.Name)
	case TableNameDuplicate:
		return fmt.Sprintf("table %s.%s is declared twice", e.Schema, e.Name)
	case ColumnNameDuplicate:
		return fmt.Sprintf("column %q is declared twice in %s.%s", e.Name, e.Schema, e.Table)
	case ViewNameDuplicate:
		return fmt.Sprintf("view %s.%s is declared twice", e.Schema, e.Name)
	case IndexNameDuplicate:
		return fmt.Sprintf("index %q is declared twice on %s.%s", e.Name, e.Schema, e.Table)
	case PKDuplicate:
		return fmt.Sprintf("table %s.%s has more than one primary key", e.Schema, e.Table)
	default:
		return fmt.Sprintf("constraint name %q is used twice in schema %q", e.Name, e.Schema)
	}
}

// Err converts the schema error into a coded error for display.
func (e SchemaError) Err() *alerr.Error {
	code := alerr.ErrSchemaDuplicate
	if e.Kind == PKDuplicate {
		code = alerr.ErrConstraintConflict
	}
	err := alerr.New(code, e.String()).With("kind", string(e.Kind))
	if e.Table != "" {
		err.WithTable(e.Schema, e.Table)
	}
	if e.Kind == ColumnNameDuplicate {
		err.WithColumn(e.Name)
	}
	return err
}

// InterimToDDL builds a DDL graph from an interim schema. Every collision
// is collected as a SchemaError and ingestion always runs to completion.
func InterimToDDL(schema InterimSchema) (*DDL, []SchemaError) {
	ddl := CreateDDL()
	var errs []SchemaError

	for _, s := range schema.Schemas {
		if ddl.Schemas.Push(s).Status == entity.StatusConflict {
			errs = append(errs, SchemaError{Kind: SchemaNameDuplicate, Name: s.Name})
		}
	}
	for _, t := range schema.Tables {
		if ddl.Tables.Push(t).Status == entity.StatusConflict {
			errs = append(errs, SchemaError{Kind: TableNameDuplicate, Schema: t.Schema, Name: t.Name})
		}
	}
	for _, c := range schema.Columns {
		if ddl.Columns.Push(c.Column).Status == entity.StatusConflict {
			errs = append(errs, SchemaError{Kind: ColumnNameDuplicate, Schema: c.Schema, Table: c.Table, Name: c.Name})
		}
	}
	for _, idx := range schema.Indexes {
		if idx.Name == "" {
			idx.Name = DefaultNameForIndex(idx.Table, indexKeys(idx))
		}
		if ddl.Indexes.Push(idx).Status == entity.StatusConflict {
			errs = append(errs, SchemaError{Kind: IndexNameDuplicate, Schema: idx.Schema, Table: idx.Table, Name: idx.Name})
		}
	}
	for _, u := range schema.Uniques {
		if u.Name == "" {
			u.Name = DefaultNameForUnique(u.Table, u.Columns)
		}
		if ddl.Uniques.Push(u).Status == entity.StatusConflict {
			errs = append(errs, constraintDuplicate(u.Schema, u.Table, u.Name))
		}
	}
	for _, fk := range schema.FKs {
		if fk.Name == "" {
			fk.Name = DefaultNameForFK(fk.Table, fk.Columns, fk.TableTo, fk.ColumnsTo)
		}
		if ddl.FKs.Push(fk).Status == entity.StatusConflict {
			errs = append(errs, constraintDuplicate(fk.Schema, fk.Table, fk.Name))
		}
	}
	for _, pk := range schema.PKs {
		if pk.Name == "" {
			pk.Name = DefaultNameForPK(pk.Table)
		}
		if _, exists := ddl.PKs.One(entity.Filter{"schema": pk.Schema, "table": pk.Table}); exists {
			errs = append(errs, SchemaError{Kind: PKDuplicate, Schema: pk.Schema, Table: pk.Table, Name: pk.Name})
			continue
		}
		ddl.PKs.Push(pk)
	}

	errs = append(errs, implicitPKs(ddl, schema.Columns)...)
	errs = append(errs, implicitUniques(ddl, schema.Columns)...)

	for _, d := range schema.Defaults {
		if d.Name == "" {
			d.Name = DefaultNameForDefault(d.Table, d.Column)
		}
		if ddl.Defaults.Push(d).Status == entity.StatusConflict {
			errs = append(errs, constraintDuplicate(d.Schema, d.Table, d.Name))
		}
	}
	for _, c := range schema.Checks {
		if ddl.Checks.Push(c).Status == entity.StatusConflict {
			errs = append(errs, constraintDuplicate(c.Schema, c.Table, c.Name))
		}
	}
	for _, v := range schema.Views {
		if ddl.Views.Push(v).Status == entity.StatusConflict {
			errs = append(errs, SchemaError{Kind: ViewNameDuplicate, Schema: v.Schema, Name: v.Name})
		}
	}

	errs = append(errs, constraintNamespace(ddl)...)
	return ddl, errs
}

// indexKeys names index keys for default naming; expressions count as "expr".
func indexKeys(idx Index) []string {
	keys := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		keys[i] = c.Value
		if c.IsExpression {
			keys[i] = "expr"
		}
	}
	return keys
}

func constraintDuplicate(schema, table, name string) SchemaError {
	return SchemaError{Kind: ConstraintNameDuplicate, Schema: schema, Table: table, Name: name}
}

// implicitPKs turns column-level isPK hints into one primary key per table.
// A table that already declares a primary key over the same columns is
// left alone.
func implicitPKs(ddl *DDL, columns []InterimColumn) []SchemaError {
	byTable := make(map[string]*PrimaryKey)
	var order []string
	for _, c := range columns {
		if !c.IsPK {
			continue
		}
		key := c.Schema + "\x00" + c.Table
		p, ok := byTable[key]
		if !ok {
			p = &PrimaryKey{
				Schema: c.Schema,
				Table:  c.Table,
				Name:   DefaultNameForPK(c.Table),
			}
			byTable[key] = p
			order = append(order, key)
		}
		if c.PKName != nil && !p.NameExplicit {
			p.Name = *c.PKName
			p.NameExplicit = true
		}
		p.Columns = append(p.Columns, c.Name)
	}

	var errs []SchemaError
	for _, key := range order {
		pk := *byTable[key]
		existing, ok := ddl.PKs.One(entity.Filter{"schema": pk.Schema, "table": pk.Table})
		if ok {
			if (pk.NameExplicit && existing.Name != pk.Name) || !entity.IsEqual(existing.Columns, pk.Columns) {
				errs = append(errs, SchemaError{Kind: PKDuplicate, Schema: pk.Schema, Table: pk.Table, Name: pk.Name})
			}
			continue
		}
		ddl.PKs.Push(pk)
	}
	return errs
}

// implicitUniques turns column-level isUnique hints into single-column
// unique constraints, skipping ones already declared explicitly.
func implicitUniques(ddl *DDL, columns []InterimColumn) []SchemaError {
	var errs []SchemaError
	for _, c := range columns {
		if !c.IsUnique {
			continue
		}
		u := Unique{
			Schema:  c.Schema,
			Table:   c.Table,
			Name:    DefaultNameForUnique(c.Table, []string{c.Name}),
			Columns: []string{c.Name},
		}
		if c.UniqueName != nil {
			u.Name = *c.UniqueName
			u.NameExplicit = true
		}
		res := ddl.Uniques.Push(u)
		if res.Status == entity.StatusConflict && !entity.IsEqual(res.Data["columns"], u.Columns) {
			errs = append(errs, constraintDuplicate(u.Schema, u.Table, u.Name))
		}
	}
	return errs
}

// constraintNamespace reports constraint names shared by two constraints
// of one schema. SQL Server keeps primary keys, uniques, foreign keys,
// checks and defaults in a single per-schema namespace.
func constraintNamespace(ddl *DDL) []SchemaError {
	seen := make(map[string]string)
	var errs []SchemaError
	for _, kind := range []string{EntityPKs, EntityUniques, EntityFKs, EntityChecks, EntityDefaults} {
		for _, r := range ddl.store.Collection(kind).List(nil) {
			key := r.Str("schema") + "\x00" + r.Str("name")
			owner := kind + "\x00" + r.Str("table")
			if prev, ok := seen[key]; ok {
				if prev != owner {
					errs = append(errs, constraintDuplicate(r.Str("schema"), r.Str("table"), r.Str("name")))
				}
				continue
			}
			seen[key] = owner
		}
	}
	return errs
}
