package mssql

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/hlop3z/schemadiff/internal/alerr"
	"github.com/hlop3z/schemadiff/internal/entity"
	"github.com/hlop3z/schemadiff/internal/resolver"
)

// Resolvers holds one resolver per renameable entity type. Nil entries
// behave like resolver.Mock.
type Resolvers struct {
	Schemas resolver.Resolver[Schema]
	Tables  resolver.Resolver[Table]
	Columns resolver.Resolver[Column]
	Views   resolver.Resolver[View]
	Uniques resolver.Resolver[Unique]
	Indexes resolver.Resolver[Index]
	Checks  resolver.Resolver[Check]
	PKs     resolver.Resolver[PrimaryKey]
	FKs     resolver.Resolver[ForeignKey]
}

// MockResolvers treats every candidate as a real create or drop.
func MockResolvers() Resolvers {
	return Resolvers{}.withDefaults()
}

// HeuristicResolvers pairs candidates by name similarity.
func HeuristicResolvers() Resolvers {
	return Resolvers{
		Schemas: resolver.NewHeuristic[Schema](),
		Tables:  resolver.NewHeuristic[Table](),
		Columns: resolver.NewHeuristic[Column](),
		Views:   resolver.NewHeuristic[View](),
		Uniques: resolver.NewHeuristic[Unique](),
		Indexes: resolver.NewHeuristic[Index](),
		Checks:  resolver.NewHeuristic[Check](),
		PKs:     resolver.NewHeuristic[PrimaryKey](),
		FKs:     resolver.NewHeuristic[ForeignKey](),
	}
}

// InteractiveResolvers prompts on out and reads answers from in.
func InteractiveResolvers(in io.Reader, out io.Writer) Resolvers {
	br := bufio.NewReader(in)
	return Resolvers{
		Schemas: resolver.NewInteractive[Schema]("schema", br, out),
		Tables:  resolver.NewInteractive[Table]("table", br, out),
		Columns: resolver.NewInteractive[Column]("column", br, out),
		Views:   resolver.NewInteractive[View]("view", br, out),
		Uniques: resolver.NewInteractive[Unique]("unique constraint", br, out),
		Indexes: resolver.NewInteractive[Index]("index", br, out),
		Checks:  resolver.NewInteractive[Check]("check constraint", br, out),
		PKs:     resolver.NewInteractive[PrimaryKey]("primary key", br, out),
		FKs:     resolver.NewInteractive[ForeignKey]("foreign key", br, out),
	}
}

// FixedResolvers resolves exactly the given "<from>-><to>" renames, as
// stored in a snapshot, and nothing else.
func FixedResolvers(renames []string) Resolvers {
	return Resolvers{
		Schemas: resolver.NewFixed[Schema](renames...),
		Tables:  resolver.NewFixed[Table](renames...),
		Columns: resolver.NewFixed[Column](renames...),
		Views:   resolver.NewFixed[View](renames...),
		Uniques: resolver.NewFixed[Unique](renames...),
		Indexes: resolver.NewFixed[Index](renames...),
		Checks:  resolver.NewFixed[Check](renames...),
		PKs:     resolver.NewFixed[PrimaryKey](renames...),
		FKs:     resolver.NewFixed[ForeignKey](renames...),
	}
}

func (r Resolvers) withDefaults() Resolvers {
	if r.Schemas == nil {
		r.Schemas = resolver.Mock[Schema]{}
	}
	if r.Tables == nil {
		r.Tables = resolver.Mock[Table]{}
	}
	if r.Columns == nil {
		r.Columns = resolver.Mock[Column]{}
	}
	if r.Views == nil {
		r.Views = resolver.Mock[View]{}
	}
	if r.Uniques == nil {
		r.Uniques = resolver.Mock[Unique]{}
	}
	if r.Indexes == nil {
		r.Indexes = resolver.Mock[Index]{}
	}
	if r.Checks == nil {
		r.Checks = resolver.Mock[Check]{}
	}
	if r.PKs == nil {
		r.PKs = resolver.Mock[PrimaryKey]{}
	}
	if r.FKs == nil {
		r.FKs = resolver.Mock[ForeignKey]{}
	}
	return r
}

// Result is the outcome of a diff.
type Result struct {
	Statements []Statement
	// Renames lists every resolved rename or move as "<from>-><to>".
	Renames []string
	// DDL is the target schema as it stands after the statements run:
	// ddl2 with the preserved constraint names. Snapshots persist it.
	DDL *DDL
}

// DDLDiffDry diffs without asking anyone about renames.
func DDLDiffDry(ctx context.Context, ddl1, ddl2 *DDL, mode DiffMode) (*Result, error) {
	return DDLDiff(ctx, ddl1, ddl2, MockResolvers(), mode)
}

// DDLDiff computes the ordered statements that turn ddl1 into ddl2.
//
// ddl1 is mutated as renames are resolved so later phases compare against
// post-rename identifiers. ddl2 is never mutated: the diff runs against a
// copy whose implicitly named constraints may take over existing names,
// returned as Result.DDL. A resolver error aborts the diff and no
// statements are returned.
func DDLDiff(ctx context.Context, ddl1, ddl2 *DDL, resolvers Resolvers, mode DiffMode) (*Result, error) {
	if mode == "" {
		mode = ModeDefault
	}
	d := &differ{
		ctx:  ctx,
		ddl1: ddl1,
		ddl2: ddl2.Clone(),
		mode: mode,
		r:    resolvers.withDefaults(),
	}

	phases := []struct {
		name string
		run  func() error
	}{
		{"schemas", d.diffSchemas},
		{"tables", d.diffTables},
		{"columns", d.diffColumns},
		{"preserve names", d.preserveNames},
		{"uniques", d.diffUniques},
		{"checks", d.diffChecks},
		{"indexes", d.diffIndexes},
		{"pks", d.diffPKs},
		{"fks", d.diffFKs},
		{"views", d.diffViews},
		{"defaults", d.diffDefaults},
		{"alters", d.diffAlters},
	}
	for _, p := range phases {
		if err := p.run(); err != nil {
			return nil, err
		}
		slog.Debug("diff phase done", "phase", p.name)
	}

	return &Result{Statements: d.assemble(), Renames: d.renames, DDL: d.ddl2}, nil
}

type pair[T any] = resolver.Pair[T]

// differ accumulates the outcome of each phase of one DDLDiff call. ddl2
// is the differ's own copy of the target.
type differ struct {
	ctx        context.Context
	ddl1, ddl2 *DDL
	mode       DiffMode
	r          Resolvers
	renames    []string

	createdSchemas []Schema
	deletedSchemas []Schema
	renamedSchemas []pair[Schema]

	createdTables []Table
	deletedTables []Table
	renamedTables []pair[Table]

	createdColumns []Column
	deletedColumns []Column
	renamedColumns []pair[Column]

	createdUniques []Unique
	deletedUniques []Unique
	renamedUniques []pair[Unique]

	createdChecks []Check
	deletedChecks []Check
	renamedChecks []pair[Check]

	createdIndexes []Index
	deletedIndexes []Index
	renamedIndexes []pair[Index]

	createdPKs []PrimaryKey
	deletedPKs []PrimaryKey
	renamedPKs []pair[PrimaryKey]

	createdFKs []ForeignKey
	deletedFKs []ForeignKey
	renamedFKs []pair[ForeignKey]

	createdViews []View
	deletedViews []View
	renamedViews []pair[View]
	alteredViews []AlterView

	createdDefaults     []Default
	deletedDefaults     []Default
	recreatedDefaults   []RecreateDefault
	alteredColumns      []AlterColumn
	recreatedColumns    []RecreateColumn
	recreatedIdentities []RecreateIdentityColumn
}

// -----------------------------------------------------------------------------
// Phases
// -----------------------------------------------------------------------------

func (d *differ) diffSchemas() error {
	created, deleted := splitDiff(d, EntitySchemas, schemaFromRow)
	out, err := resolve(d.ctx, "schemas", d.r.Schemas, created, deleted)
	if err != nil {
		return err
	}
	for _, p := range out.RenamedOrMoved {
		if err := d.ddl1.renameSchema(p.From.Name, p.To.Name); err != nil {
			return err
		}
		d.rename(p.From, p.To)
	}
	d.createdSchemas, d.deletedSchemas, d.renamedSchemas = out.Created, out.Deleted, out.RenamedOrMoved
	return nil
}

func (d *differ) diffTables() error {
	created, deleted := splitDiff(d, EntityTables, tableFromRow)
	out, err := resolve(d.ctx, "tables", d.r.Tables, created, deleted)
	if err != nil {
		return err
	}
	for _, p := range out.RenamedOrMoved {
		if err := d.ddl1.renameTable(p.From, p.To); err != nil {
			return err
		}
		d.rename(p.From, p.To)
	}
	d.createdTables, d.deletedTables, d.renamedTables = out.Created, out.Deleted, out.RenamedOrMoved
	return nil
}

func (d *differ) diffColumns() error {
	created, deleted := splitDiff(d, EntityColumns, columnFromRow)
	out, err := resolveGrouped(d.ctx, "columns", d.r.Columns, created, deleted)
	if err != nil {
		return err
	}
	for _, p := range out.RenamedOrMoved {
		if err := d.ddl1.renameColumn(p.From, p.To.Name); err != nil {
			return err
		}
		d.rename(p.From, p.To)
	}
	d.createdColumns, d.deletedColumns, d.renamedColumns = out.Created, out.Deleted, out.RenamedOrMoved
	return nil
}

// preserveNames keeps existing constraint names stable: a constraint with
// an implicit name on the right that matches a left constraint in every
// other field takes over the left name, so no rename is emitted and the
// target keeps the name the database has.
func (d *differ) preserveNames() error {
	for _, kind := range []string{EntityUniques, EntityFKs, EntityPKs, EntityDefaults} {
		preserveEntityNames(d.ddl1.store.Collection(kind), d.ddl2.store.Collection(kind), d.mode)
	}
	return nil
}

// preserveEntityNames renames rows of target c2 to the names of their
// matching rows in c1. A target row takes over at most one name.
func preserveEntityNames(c1, c2 *entity.Collection, mode DiffMode) {
	items := c1.List(entity.Filter{"nameExplicit": false})
	if mode == ModePush {
		items = c1.List(nil)
	}
	taken := make(map[string]bool)
	for _, left := range items {
		f := entity.Filter{}
		for k, v := range left {
			if k == entity.FieldName || k == "nameExplicit" || k == entity.FieldEntityType {
				continue
			}
			f[k] = v
		}
		f["nameExplicit"] = false

		matches := c2.List(f)
		if len(matches) != 1 || matches[0].Str("name") == left.Str("name") {
			continue
		}
		if taken[entity.KeyOf(matches[0]).String()] {
			continue
		}
		res := c2.Update(entity.Update{
			Set:   map[string]any{"name": left.Str("name")},
			Where: keyFilter(matches[0]),
		})
		if res.Status == entity.StatusConflict {
			slog.Debug("name not preserved", "type", c2.EntityType(), "name", left.Str("name"))
			continue
		}
		taken[entity.KeyOf(left).String()] = true
	}
}

func (d *differ) diffUniques() error {
	created, deleted := splitDiff(d, EntityUniques, uniqueFromRow)
	out, err := resolveGrouped(d.ctx, "uniques", d.r.Uniques, created, deleted)
	if err != nil {
		return err
	}
	for _, p := range out.RenamedOrMoved {
		if err := renameConstraint(d.ddl1.Uniques.Collection(), p.From.Schema, p.From.Table, p.From.Name, p.To.Name); err != nil {
			return err
		}
		d.rename(p.From, p.To)
	}
	d.createdUniques, d.deletedUniques, d.renamedUniques = out.Created, out.Deleted, out.RenamedOrMoved
	return nil
}

func (d *differ) diffChecks() error {
	created, deleted := splitDiff(d, EntityChecks, checkFromRow)
	out, err := resolveGrouped(d.ctx, "checks", d.r.Checks, created, deleted)
	if err != nil {
		return err
	}
	for _, p := range out.RenamedOrMoved {
		if err := renameConstraint(d.ddl1.Checks.Collection(), p.From.Schema, p.From.Table, p.From.Name, p.To.Name); err != nil {
			return err
		}
		d.rename(p.From, p.To)
	}
	d.createdChecks, d.deletedChecks, d.renamedChecks = out.Created, out.Deleted, out.RenamedOrMoved
	return nil
}

func (d *differ) diffIndexes() error {
	created, deleted := splitDiff(d, EntityIndexes, indexFromRow)
	out, err := resolveGrouped(d.ctx, "indexes", d.r.Indexes, created, deleted)
	if err != nil {
		return err
	}
	for _, p := range out.RenamedOrMoved {
		if err := renameConstraint(d.ddl1.Indexes.Collection(), p.From.Schema, p.From.Table, p.From.Name, p.To.Name); err != nil {
			return err
		}
		d.rename(p.From, p.To)
	}
	d.createdIndexes, d.deletedIndexes, d.renamedIndexes = out.Created, out.Deleted, out.RenamedOrMoved
	return nil
}

func (d *differ) diffPKs() error {
	created, deleted := splitDiff(d, EntityPKs, pkFromRow)
	out, err := resolveGrouped(d.ctx, "pks", d.r.PKs, created, deleted)
	if err != nil {
		return err
	}
	for _, p := range out.RenamedOrMoved {
		if err := renameConstraint(d.ddl1.PKs.Collection(), p.From.Schema, p.From.Table, p.From.Name, p.To.Name); err != nil {
			return err
		}
		d.rename(p.From, p.To)
	}
	d.createdPKs, d.deletedPKs, d.renamedPKs = out.Created, out.Deleted, out.RenamedOrMoved
	return nil
}

func (d *differ) diffFKs() error {
	created, deleted := splitDiff(d, EntityFKs, fkFromRow)
	out, err := resolveGrouped(d.ctx, "fks", d.r.FKs, created, deleted)
	if err != nil {
		return err
	}
	for _, p := range out.RenamedOrMoved {
		if err := renameConstraint(d.ddl1.FKs.Collection(), p.From.Schema, p.From.Table, p.From.Name, p.To.Name); err != nil {
			return err
		}
		d.rename(p.From, p.To)
	}
	d.createdFKs, d.deletedFKs, d.renamedFKs = out.Created, out.Deleted, out.RenamedOrMoved
	return nil
}

func (d *differ) diffViews() error {
	created, deleted := splitDiff(d, EntityViews, viewFromRow)
	out, err := resolve(d.ctx, "views", d.r.Views, created, deleted)
	if err != nil {
		return err
	}
	for _, p := range out.RenamedOrMoved {
		res := d.ddl1.Views.Update(entity.Update{
			Set:   map[string]any{"schema": p.To.Schema, "name": p.To.Name},
			Where: entity.Filter{"schema": p.From.Schema, "name": p.From.Name},
		})
		if err := checkUpdate(res, "rename view"); err != nil {
			return err
		}
		d.rename(p.From, p.To)
	}
	d.createdViews, d.deletedViews, d.renamedViews = out.Created, out.Deleted, out.RenamedOrMoved
	return nil
}

// diffDefaults takes creates and drops as they are: defaults have no
// resolver.
func (d *differ) diffDefaults() error {
	d.createdDefaults, d.deletedDefaults = splitDiff(d, EntityDefaults, defaultFromRow)
	return nil
}

// diffAlters turns field-level changes of entities present on both sides
// into statements, dropping changes that are only noise.
func (d *differ) diffAlters() error {
	for _, rec := range entity.Alters(d.ddl1.store, d.ddl2.store, "") {
		delete(rec.Changes, "nameExplicit")
		if len(rec.Changes) == 0 {
			continue
		}
		switch rec.EntityType {
		case EntityColumns:
			d.alterColumn(rec)
		case EntityChecks:
			d.deletedChecks = append(d.deletedChecks, checkFromRow(rec.Left))
			d.createdChecks = append(d.createdChecks, checkFromRow(rec.Right))
		case EntityUniques:
			d.deletedUniques = append(d.deletedUniques, uniqueFromRow(rec.Left))
			d.createdUniques = append(d.createdUniques, uniqueFromRow(rec.Right))
		case EntityPKs:
			d.deletedPKs = append(d.deletedPKs, pkFromRow(rec.Left))
			d.createdPKs = append(d.createdPKs, pkFromRow(rec.Right))
		case EntityFKs:
			d.deletedFKs = append(d.deletedFKs, fkFromRow(rec.Left))
			d.createdFKs = append(d.createdFKs, fkFromRow(rec.Right))
		case EntityIndexes:
			d.deletedIndexes = append(d.deletedIndexes, indexFromRow(rec.Left))
			d.createdIndexes = append(d.createdIndexes, indexFromRow(rec.Right))
		case EntityDefaults:
			if ch, ok := rec.Changes["value"]; ok && len(rec.Changes) == 1 {
				from, _ := ch.From.(string)
				to, _ := ch.To.(string)
				if DefaultsEqual(from, to) {
					continue
				}
			}
			d.recreatedDefaults = append(d.recreatedDefaults, RecreateDefault{
				From: defaultFromRow(rec.Left),
				To:   defaultFromRow(rec.Right),
			})
		case EntityViews:
			d.alteredViews = append(d.alteredViews, AlterView{From: viewFromRow(rec.Left), To: viewFromRow(rec.Right)})
		}
	}
	return nil
}

func (d *differ) alterColumn(rec entity.Record) {
	changes := rec.Changes
	left, right := columnFromRow(rec.Left), columnFromRow(rec.Right)

	if _, ok := changes["identity"]; ok {
		d.recreatedIdentities = append(d.recreatedIdentities, RecreateIdentityColumn{
			From:   left,
			To:     right,
			Drop:   dependentsOf(d.ddl1, left),
			Create: dependentsOf(d.ddl2, right),
		})
		return
	}

	if _, ok := changes["notNull"]; ok && (right.Generated != nil || right.Identity != nil) {
		delete(changes, "notNull")
	}
	if ch, ok := changes["type"]; ok {
		from, _ := ch.From.(string)
		to, _ := ch.To.(string)
		_, generatedChanged := changes["generated"]
		if TypesCommutative(from, to, d.mode) || (right.Generated != nil && generatedChanged) {
			delete(changes, "type")
		}
	}
	if _, ok := changes["generated"]; ok {
		samePush := d.mode == ModePush && left.Generated != nil && right.Generated != nil &&
			left.Generated.Type == right.Generated.Type
		if !samePush {
			d.recreatedColumns = append(d.recreatedColumns, RecreateColumn{From: left, To: right})
			return
		}
		delete(changes, "generated")
	}

	if !d.ddl1.Columns.Collection().HasDiff(rec) {
		return
	}
	changed := make([]string, 0, len(changes))
	for k := range changes {
		changed = append(changed, k)
	}
	sort.Strings(changed)
	d.alteredColumns = append(d.alteredColumns, AlterColumn{From: left, To: right, Changed: changed})
}

// dependentsOf gathers the constraints and indexes of ddl that reference c.
func dependentsOf(ddl *DDL, c Column) ColumnDependents {
	table := entity.Filter{"schema": c.Schema, "table": c.Table}
	withColumn := entity.Filter{"schema": c.Schema, "table": c.Table, "columns": entity.Contains{Value: c.Name}}

	deps := ColumnDependents{
		PKs:      ddl.PKs.List(withColumn),
		Uniques:  ddl.Uniques.List(withColumn),
		Defaults: ddl.Defaults.List(entity.Filter{"schema": c.Schema, "table": c.Table, "column": c.Name}),
	}

	seen := make(map[string]bool)
	referencing := ddl.FKs.List(entity.Filter{"schemaTo": c.Schema, "tableTo": c.Table, "columnsTo": entity.Contains{Value: c.Name}})
	for _, fk := range append(ddl.FKs.List(withColumn), referencing...) {
		if !seen[fk.Ident()] {
			seen[fk.Ident()] = true
			deps.FKs = append(deps.FKs, fk)
		}
	}
	for _, ck := range ddl.Checks.List(table) {
		if strings.Contains(ck.Value, c.Name) {
			deps.Checks = append(deps.Checks, ck)
		}
	}
	for _, idx := range ddl.Indexes.List(table) {
		for _, col := range idx.Columns {
			if col.Value == c.Name || (col.IsExpression && strings.Contains(col.Value, c.Name)) {
				deps.Indexes = append(deps.Indexes, idx)
				break
			}
		}
	}
	return deps
}

// -----------------------------------------------------------------------------
// Assembly
// -----------------------------------------------------------------------------

// tableSet holds "schema\x00table" keys.
type tableSet map[string]bool

func tablesOf(tables []Table) tableSet {
	s := make(tableSet, len(tables))
	for _, t := range tables {
		s[t.Schema+"\x00"+t.Name] = true
	}
	return s
}

func (s tableSet) has(schema, table string) bool {
	return s[schema+"\x00"+table]
}

// identitySet holds the kind and ident of constraints folded into an
// identity column recreation.
type identitySet map[string]bool

func (s identitySet) add(deps ColumnDependents) {
	for _, v := range deps.Checks {
		s[EntityChecks+":"+v.Ident()] = true
	}
	for _, v := range deps.Uniques {
		s[EntityUniques+":"+v.Ident()] = true
	}
	for _, v := range deps.PKs {
		s[EntityPKs+":"+v.Ident()] = true
	}
	for _, v := range deps.Defaults {
		s[EntityDefaults+":"+v.Ident()] = true
	}
	for _, v := range deps.FKs {
		s[EntityFKs+":"+v.Ident()] = true
	}
	for _, v := range deps.Indexes {
		s[EntityIndexes+":"+v.Ident()] = true
	}
}

func (s identitySet) has(kind string, e resolver.Entity) bool {
	return s[kind+":"+e.Ident()]
}

// keep filters items, dropping those on tables in skip or folded into an
// identity recreation.
func keep[T scoped](items []T, kind string, skip tableSet, identity identitySet) []T {
	var out []T
	for _, it := range items {
		schema, table := it.owner()
		if skip != nil && skip.has(schema, table) {
			continue
		}
		if identity.has(kind, it) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (d *differ) assemble() []Statement {
	created := tablesOf(d.createdTables)
	deleted := tablesOf(d.deletedTables)

	identityDrop, identityCreate := identitySet{}, identitySet{}
	for _, r := range d.recreatedIdentities {
		identityDrop.add(r.Drop)
		identityCreate.add(r.Create)
	}

	var out []Statement
	add := func(s ...Statement) { out = append(out, s...) }

	for _, s := range d.createdSchemas {
		add(CreateSchema{Name: s.Name})
	}
	for _, p := range d.renamedSchemas {
		add(RenameSchema{From: p.From, To: p.To})
	}
	for _, t := range d.createdTables {
		full := TableFromDDL(t.Schema, t.Name, d.ddl2)
		full.FKs, full.Indexes = nil, nil
		add(CreateTable{Table: full})
	}
	for _, v := range d.deletedViews {
		add(DropView{View: v})
	}
	for _, p := range d.renamedViews {
		if p.From.Name != p.To.Name {
			to := p.To
			to.Schema = p.From.Schema
			add(RenameView{From: p.From, To: to})
		}
	}
	for _, p := range d.renamedViews {
		if p.From.Schema != p.To.Schema {
			add(MoveView{Name: p.To.Name, FromSchema: p.From.Schema, ToSchema: p.To.Schema})
		}
	}
	for _, v := range d.alteredViews {
		add(v)
	}
	for _, r := range d.recreatedDefaults {
		if identityDrop.has(EntityDefaults, r.From) || identityCreate.has(EntityDefaults, r.To) {
			continue
		}
		add(r)
	}
	for _, p := range d.renamedTables {
		if p.From.Name != p.To.Name {
			add(RenameTable{From: p.From, To: Table{Schema: p.From.Schema, Name: p.To.Name}})
		}
	}
	for _, fk := range keep(d.deletedFKs, EntityFKs, deleted, identityDrop) {
		add(DropFK{FK: fk})
	}
	for _, t := range d.deletedTables {
		add(DropTable{Table: TableFromDDL(t.Schema, t.Name, d.ddl1)})
	}
	for _, p := range d.renamedTables {
		if p.From.Schema != p.To.Schema {
			add(MoveTable{Name: p.To.Name, FromSchema: p.From.Schema, ToSchema: p.To.Schema})
		}
	}
	for _, c := range keep(d.deletedChecks, EntityChecks, deleted, identityDrop) {
		add(DropCheck{Check: c})
	}
	for _, p := range d.renamedColumns {
		add(RenameColumn{From: p.From, To: p.To})
	}
	for _, u := range keep(d.deletedUniques, EntityUniques, deleted, identityDrop) {
		add(DropUnique{Unique: u})
	}
	for _, df := range keep(d.deletedDefaults, EntityDefaults, deleted, identityDrop) {
		add(DropDefault{Default: df})
	}
	for _, idx := range keep(d.deletedIndexes, EntityIndexes, deleted, identityDrop) {
		add(DropIndex{Index: idx})
	}
	for _, pk := range keep(d.deletedPKs, EntityPKs, deleted, identityDrop) {
		add(DropPK{PK: pk})
	}
	for _, c := range keep(d.createdColumns, EntityColumns, created, nil) {
		add(AddColumn{Column: c})
	}
	for _, r := range d.recreatedColumns {
		add(r)
	}
	for _, r := range d.recreatedIdentities {
		add(r)
	}
	for _, a := range d.alteredColumns {
		add(a)
	}
	for _, pk := range keep(d.createdPKs, EntityPKs, created, identityCreate) {
		add(CreatePK{PK: pk})
	}
	for _, p := range d.renamedPKs {
		add(RenamePK{From: p.From, To: p.To})
	}
	for _, fk := range keep(d.createdFKs, EntityFKs, nil, identityCreate) {
		add(CreateFK{FK: fk})
	}
	for _, df := range keep(d.createdDefaults, EntityDefaults, created, identityCreate) {
		add(CreateDefault{Default: df})
	}
	for _, idx := range keep(d.createdIndexes, EntityIndexes, nil, identityCreate) {
		add(CreateIndex{Index: idx})
	}
	for _, p := range d.renamedIndexes {
		add(RenameIndex{From: p.From, To: p.To})
	}
	for _, c := range keep(d.deletedColumns, EntityColumns, deleted, nil) {
		add(DropColumn{Column: c})
	}
	for _, u := range keep(d.createdUniques, EntityUniques, created, identityCreate) {
		add(AddUnique{Unique: u})
	}
	for _, c := range keep(d.createdChecks, EntityChecks, created, identityCreate) {
		add(AddCheck{Check: c})
	}
	for _, p := range d.renamedChecks {
		add(RenameCheck{From: p.From, To: p.To})
	}
	for _, p := range d.renamedUniques {
		add(RenameUnique{From: p.From, To: p.To})
	}
	for _, p := range d.renamedFKs {
		add(RenameFK{From: p.From, To: p.To})
	}
	for _, v := range d.createdViews {
		add(CreateView{View: v})
	}
	for _, s := range d.deletedSchemas {
		add(DropSchema{Name: s.Name})
	}
	return out
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// scoped entities belong to one table.
type scoped interface {
	resolver.Entity
	owner() (schema, table string)
}

func (c Column) owner() (string, string)     { return c.Schema, c.Table }
func (p PrimaryKey) owner() (string, string) { return p.Schema, p.Table }
func (u Unique) owner() (string, string)     { return u.Schema, u.Table }
func (f ForeignKey) owner() (string, string) { return f.Schema, f.Table }
func (i Index) owner() (string, string)      { return i.Schema, i.Table }
func (c Check) owner() (string, string)      { return c.Schema, c.Table }
func (d Default) owner() (string, string)    { return d.Schema, d.Table }

func (d *differ) rename(from, to resolver.Entity) {
	d.renames = append(d.renames, from.Ident()+"->"+to.Ident())
}

// splitDiff returns the created and deleted entities of one collection.
func splitDiff[T any](d *differ, collection string, decode func(entity.Row) T) (created, deleted []T) {
	for _, rec := range entity.Diff(d.ddl1.store, d.ddl2.store, collection, entity.ModeCreateDrop) {
		switch rec.Type {
		case entity.DiffCreate:
			created = append(created, decode(rec.Row))
		case entity.DiffDrop:
			deleted = append(deleted, decode(rec.Row))
		}
	}
	return created, deleted
}

// resolve asks r only when there is something to pair.
func resolve[T resolver.Entity](ctx context.Context, phase string, r resolver.Resolver[T], created, deleted []T) (resolver.Output[T], error) {
	if len(created) == 0 || len(deleted) == 0 {
		return resolver.Output[T]{Created: created, Deleted: deleted}, nil
	}
	out, err := r.Resolve(ctx, resolver.Input[T]{Created: created, Deleted: deleted})
	if err != nil {
		return resolver.Output[T]{}, alerr.Wrap(alerr.ErrResolverFailed, err, "resolver failed").
			With("phase", phase)
	}
	return out, nil
}

type tableGroup[T any] struct {
	created []T
	deleted []T
}

// groupDiffs splits candidates by owning table, in first-seen order.
func groupDiffs[T scoped](created, deleted []T) []*tableGroup[T] {
	byKey := make(map[string]*tableGroup[T])
	var groups []*tableGroup[T]
	group := func(it T) *tableGroup[T] {
		schema, table := it.owner()
		key := schema + "\x00" + table
		g, ok := byKey[key]
		if !ok {
			g = &tableGroup[T]{}
			byKey[key] = g
			groups = append(groups, g)
		}
		return g
	}
	for _, c := range created {
		g := group(c)
		g.created = append(g.created, c)
	}
	for _, dl := range deleted {
		g := group(dl)
		g.deleted = append(g.deleted, dl)
	}
	return groups
}

// resolveGrouped resolves each table's candidates separately so renames
// never cross tables.
func resolveGrouped[T scoped](ctx context.Context, phase string, r resolver.Resolver[T], created, deleted []T) (resolver.Output[T], error) {
	var out resolver.Output[T]
	for _, g := range groupDiffs(created, deleted) {
		res, err := resolve(ctx, phase, r, g.created, g.deleted)
		if err != nil {
			return resolver.Output[T]{}, err
		}
		out.Created = append(out.Created, res.Created...)
		out.Deleted = append(out.Deleted, res.Deleted...)
		out.RenamedOrMoved = append(out.RenamedOrMoved, res.RenamedOrMoved...)
	}
	return out, nil
}

func keyFilter(r entity.Row) entity.Filter {
	return entity.Filter{
		entity.FieldSchema: r[entity.FieldSchema],
		entity.FieldTable:  r[entity.FieldTable],
		entity.FieldName:   r[entity.FieldName],
	}
}

func checkUpdate(res entity.UpdateResult, step string) error {
	if res.Status != entity.StatusConflict {
		return nil
	}
	keys := make([]string, len(res.Data))
	for i, r := range res.Data {
		keys[i] = entity.KeyOf(r).String()
	}
	return alerr.New(alerr.EInternalError, "rename propagation collided with an existing entity").
		With("step", step).
		With("conflicts", strings.Join(keys, ", "))
}

func renameConstraint(c *entity.Collection, schema, table, from, to string) error {
	res := c.Update(entity.Update{
		Set:   map[string]any{"name": to},
		Where: entity.Filter{"schema": schema, "table": table, "name": from},
	})
	return checkUpdate(res, "rename "+c.EntityType())
}

// renameSchema moves every entity of schema from into schema to.
func (d *DDL) renameSchema(from, to string) error {
	steps := []struct {
		c     *entity.Collection
		field string
	}{
		{d.Schemas.Collection(), "name"},
		{d.store.Entities(), "schema"},
		{d.FKs.Collection(), "schemaTo"},
	}
	for _, s := range steps {
		res := s.c.Update(entity.Update{
			Set:   map[string]any{s.field: to},
			Where: entity.Filter{s.field: from},
		})
		if err := checkUpdate(res, "rename schema"); err != nil {
			return err
		}
	}
	return nil
}

// renameTable renames or moves a table and rewrites every reference to it.
func (d *DDL) renameTable(from, to Table) error {
	res := d.Tables.Update(entity.Update{
		Set:   map[string]any{"schema": to.Schema, "name": to.Name},
		Where: entity.Filter{"schema": from.Schema, "name": from.Name},
	})
	if err := checkUpdate(res, "rename table"); err != nil {
		return err
	}
	res = d.store.Entities().Update(entity.Update{
		Set:   map[string]any{"schema": to.Schema, "table": to.Name},
		Where: entity.Filter{"schema": from.Schema, "table": from.Name},
	})
	if err := checkUpdate(res, "rename table dependents"); err != nil {
		return err
	}
	res = d.FKs.Update(entity.Update{
		Set:   map[string]any{"schemaTo": to.Schema, "tableTo": to.Name},
		Where: entity.Filter{"schemaTo": from.Schema, "tableTo": from.Name},
	})
	return checkUpdate(res, "rename referenced table")
}

// renameColumn renames a column and rewrites every structure that stores
// its name. Check expressions are rewritten by plain substring replacement.
func (d *DDL) renameColumn(from Column, to string) error {
	schema, table := from.Schema, from.Table
	swap := entity.Mapper(func(v any) any {
		if s, _ := v.(string); s == from.Name {
			return to
		}
		return v
	})
	withColumn := entity.Filter{"schema": schema, "table": table, "columns": entity.Contains{Value: from.Name}}

	steps := []struct {
		c     *entity.Collection
		set   map[string]any
		where entity.Filter
	}{
		{d.Columns.Collection(), map[string]any{"name": to}, entity.Filter{"schema": schema, "table": table, "name": from.Name}},
		{d.PKs.Collection(), map[string]any{"columns": swap}, withColumn},
		{d.Uniques.Collection(), map[string]any{"columns": swap}, withColumn},
		{d.FKs.Collection(), map[string]any{"columns": swap}, withColumn},
		{d.FKs.Collection(), map[string]any{"columnsTo": swap}, entity.Filter{"schemaTo": schema, "tableTo": table, "columnsTo": entity.Contains{Value: from.Name}}},
		{d.Defaults.Collection(), map[string]any{"column": to}, entity.Filter{"schema": schema, "table": table, "column": from.Name}},
		{d.Checks.Collection(), map[string]any{"value": entity.Mapper(func(v any) any {
			s, _ := v.(string)
			return strings.ReplaceAll(s, from.Name, to)
		})}, entity.Filter{"schema": schema, "table": table}},
		{d.Indexes.Collection(), map[string]any{"columns": entity.Mapper(func(v any) any {
			col, _ := v.(entity.Row)
			if col != nil && !col.Bool("isExpression") && col.Str("value") == from.Name {
				col["value"] = to
			}
			return col
		})}, entity.Filter{"schema": schema, "table": table}},
	}
	for _, s := range steps {
		if err := checkUpdate(s.c.Update(entity.Update{Set: s.set, Where: s.where}), "rename column"); err != nil {
			return err
		}
	}
	return nil
}
