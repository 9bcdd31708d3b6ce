package mssql

import "github.com/hlop3z/schemadiff/internal/entity"

// StatementType tags a Statement.
type StatementType string

// Statement types. Every value has exactly one Statement implementation.
const (
	StmtCreateSchema           StatementType = "create_schema"
	StmtRenameSchema           StatementType = "rename_schema"
	StmtDropSchema             StatementType = "drop_schema"
	StmtCreateTable            StatementType = "create_table"
	StmtDropTable              StatementType = "drop_table"
	StmtRenameTable            StatementType = "rename_table"
	StmtMoveTable              StatementType = "move_table"
	StmtCreateView             StatementType = "create_view"
	StmtDropView               StatementType = "drop_view"
	StmtRenameView             StatementType = "rename_view"
	StmtMoveView               StatementType = "move_view"
	StmtAlterView              StatementType = "alter_view"
	StmtAddColumn              StatementType = "add_column"
	StmtDropColumn             StatementType = "drop_column"
	StmtRenameColumn           StatementType = "rename_column"
	StmtAlterColumn            StatementType = "alter_column"
	StmtRecreateColumn         StatementType = "recreate_column"
	StmtRecreateIdentityColumn StatementType = "recreate_identity_column"
	StmtCreatePK               StatementType = "create_pk"
	StmtDropPK                 StatementType = "drop_pk"
	StmtRenamePK               StatementType = "rename_pk"
	StmtCreateFK               StatementType = "create_fk"
	StmtDropFK                 StatementType = "drop_fk"
	StmtRenameFK               StatementType = "rename_fk"
	StmtCreateIndex            StatementType = "create_index"
	StmtDropIndex              StatementType = "drop_index"
	StmtRenameIndex            StatementType = "rename_index"
	StmtAddUnique              StatementType = "add_unique"
	StmtDropUnique             StatementType = "drop_unique"
	StmtRenameUnique           StatementType = "rename_unique"
	StmtAddCheck               StatementType = "add_check"
	StmtDropCheck              StatementType = "drop_check"
	StmtRenameCheck            StatementType = "rename_check"
	StmtCreateDefault          StatementType = "create_default"
	StmtDropDefault            StatementType = "drop_default"
	StmtRecreateDefault        StatementType = "recreate_default"
)

// Statement is one migration step. The set of implementations is closed.
type Statement interface {
	Type() StatementType
}

// TableFull is a table with everything that belongs to it.
type TableFull struct {
	Schema   string
	Name     string
	Columns  []Column
	PK       *PrimaryKey
	Uniques  []Unique
	Checks   []Check
	Defaults []Default
	FKs      []ForeignKey
	Indexes  []Index
}

// TableFromDDL collects the table schema.name and its dependents.
func TableFromDDL(schema, name string, ddl *DDL) TableFull {
	f := entity.Filter{"schema": schema, "table": name}
	t := TableFull{
		Schema:   schema,
		Name:     name,
		Columns:  ddl.Columns.List(f),
		Uniques:  ddl.Uniques.List(f),
		Checks:   ddl.Checks.List(f),
		Defaults: ddl.Defaults.List(f),
		FKs:      ddl.FKs.List(f),
		Indexes:  ddl.Indexes.List(f),
	}
	if pk, ok := ddl.PKs.One(f); ok {
		t.PK = &pk
	}
	return t
}

// ColumnDependents are the constraints and indexes that reference one
// column.
type ColumnDependents struct {
	Checks   []Check
	Uniques  []Unique
	PKs      []PrimaryKey
	Defaults []Default
	FKs      []ForeignKey
	Indexes  []Index
}

// Empty reports whether nothing depends on the column.
func (d ColumnDependents) Empty() bool {
	return len(d.Checks)+len(d.Uniques)+len(d.PKs)+len(d.Defaults)+len(d.FKs)+len(d.Indexes) == 0
}

// CreateSchema creates a schema.
type CreateSchema struct{ Name string }

// RenameSchema renames a schema.
type RenameSchema struct{ From, To Schema }

// DropSchema drops a schema.
type DropSchema struct{ Name string }

// CreateTable creates a table with its columns, primary key, uniques,
// checks and defaults. Foreign keys and indexes are separate statements.
type CreateTable struct{ Table TableFull }

// DropTable drops a table and implicitly everything on it.
type DropTable struct{ Table TableFull }

// RenameTable renames a table within its schema.
type RenameTable struct{ From, To Table }

// MoveTable transfers a table to another schema.
type MoveTable struct {
	Name       string
	FromSchema string
	ToSchema   string
}

// CreateView creates a view.
type CreateView struct{ View View }

// DropView drops a view.
type DropView struct{ View View }

// RenameView renames a view within its schema.
type RenameView struct{ From, To View }

// MoveView transfers a view to another schema.
type MoveView struct {
	Name       string
	FromSchema string
	ToSchema   string
}

// AlterView redefines a view.
type AlterView struct{ From, To View }

// AddColumn adds a column to an existing table.
type AddColumn struct{ Column Column }

// DropColumn drops a column.
type DropColumn struct{ Column Column }

// RenameColumn renames a column.
type RenameColumn struct{ From, To Column }

// AlterColumn changes a column in place. Changed lists the altered fields.
type AlterColumn struct {
	From    Column
	To      Column
	Changed []string
}

// RecreateColumn drops and re-adds a computed column.
type RecreateColumn struct{ From, To Column }

// RecreateIdentityColumn drops and re-adds a column whose identity changed,
// dropping Drop before and creating Create after.
type RecreateIdentityColumn struct {
	From   Column
	To     Column
	Drop   ColumnDependents
	Create ColumnDependents
}

// CreatePK adds a primary key.
type CreatePK struct{ PK PrimaryKey }

// DropPK drops a primary key.
type DropPK struct{ PK PrimaryKey }

// RenamePK renames a primary key.
type RenamePK struct{ From, To PrimaryKey }

// CreateFK adds a foreign key.
type CreateFK struct{ FK ForeignKey }

// DropFK drops a foreign key.
type DropFK struct{ FK ForeignKey }

// RenameFK renames a foreign key.
type RenameFK struct{ From, To ForeignKey }

// CreateIndex creates an index.
type CreateIndex struct{ Index Index }

// DropIndex drops an index.
type DropIndex struct{ Index Index }

// RenameIndex renames an index.
type RenameIndex struct{ From, To Index }

// AddUnique adds a unique constraint.
type AddUnique struct{ Unique Unique }

// DropUnique drops a unique constraint.
type DropUnique struct{ Unique Unique }

// RenameUnique renames a unique constraint.
type RenameUnique struct{ From, To Unique }

// AddCheck adds a check constraint.
type AddCheck struct{ Check Check }

// DropCheck drops a check constraint.
type DropCheck struct{ Check Check }

// RenameCheck renames a check constraint.
type RenameCheck struct{ From, To Check }

// CreateDefault adds a default constraint.
type CreateDefault struct{ Default Default }

// DropDefault drops a default constraint.
type DropDefault struct{ Default Default }

// RecreateDefault replaces a default whose value changed.
type RecreateDefault struct{ From, To Default }

func (CreateSchema) Type() StatementType           { return StmtCreateSchema }
func (RenameSchema) Type() StatementType           { return StmtRenameSchema }
func (DropSchema) Type() StatementType             { return StmtDropSchema }
func (CreateTable) Type() StatementType            { return StmtCreateTable }
func (DropTable) Type() StatementType              { return StmtDropTable }
func (RenameTable) Type() StatementType            { return StmtRenameTable }
func (MoveTable) Type() StatementType              { return StmtMoveTable }
func (CreateView) Type() StatementType             { return StmtCreateView }
func (DropView) Type() StatementType               { return StmtDropView }
func (RenameView) Type() StatementType             { return StmtRenameView }
func (MoveView) Type() StatementType               { return StmtMoveView }
func (AlterView) Type() StatementType              { return StmtAlterView }
func (AddColumn) Type() StatementType              { return StmtAddColumn }
func (DropColumn) Type() StatementType             { return StmtDropColumn }
func (RenameColumn) Type() StatementType           { return StmtRenameColumn }
func (AlterColumn) Type() StatementType            { return StmtAlterColumn }
func (RecreateColumn) Type() StatementType         { return StmtRecreateColumn }
func (RecreateIdentityColumn) Type() StatementType { return StmtRecreateIdentityColumn }
func (CreatePK) Type() StatementType               { return StmtCreatePK }
func (DropPK) Type() StatementType                 { return StmtDropPK }
func (RenamePK) Type() StatementType               { return StmtRenamePK }
func (CreateFK) Type() StatementType               { return StmtCreateFK }
func (DropFK) Type() StatementType                 { return StmtDropFK }
func (RenameFK) Type() StatementType               { return StmtRenameFK }
func (CreateIndex) Type() StatementType            { return StmtCreateIndex }
func (DropIndex) Type() StatementType              { return StmtDropIndex }
func (RenameIndex) Type() StatementType            { return StmtRenameIndex }
func (AddUnique) Type() StatementType              { return StmtAddUnique }
func (DropUnique) Type() StatementType             { return StmtDropUnique }
func (RenameUnique) Type() StatementType           { return StmtRenameUnique }
func (AddCheck) Type() StatementType               { return StmtAddCheck }
func (DropCheck) Type() StatementType              { return StmtDropCheck }
func (RenameCheck) Type() StatementType            { return StmtRenameCheck }
func (CreateDefault) Type() StatementType          { return StmtCreateDefault }
func (DropDefault) Type() StatementType            { return StmtDropDefault }
func (RecreateDefault) Type() StatementType        { return StmtRecreateDefault }
