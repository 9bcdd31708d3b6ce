package entity

import (
	"testing"

	"github.com/hlop3z/schemadiff/internal/alerr"
)

// testDefinition mirrors the shape of a small DDL graph.
func testDefinition() Definition {
	return Definition{
		NewType("schemas"),
		NewType("tables", Required(FieldSchema)),
		NewType("columns",
			Required(FieldSchema),
			Required(FieldTable),
			String("type"),
			Bool("notNull"),
			Object("identity", Number("seed"), Number("increment")),
		),
		NewType("indexes",
			Required(FieldSchema),
			Required(FieldTable),
			ObjectList("columns", String("value"), Bool("isExpression")),
			Bool("isUnique"),
			NullableString("where"),
		),
		NewType("uniques",
			Required(FieldSchema),
			Required(FieldTable),
			StringList("columns"),
			Enum("kind", "clustered", "nonclustered"),
		),
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(testDefinition())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func mustPush(t *testing.T, c *Collection, r Row) {
	t.Helper()
	res, err := c.Push(r)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if res.Status != StatusOK {
		t.Fatalf("Push(%v) status = %s, want OK", r, res.Status)
	}
}

// -----------------------------------------------------------------------------
// Definition Tests
// -----------------------------------------------------------------------------

func TestNew_InvalidDefinition(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
	}{
		{"reserved entities", Definition{NewType("entities")}},
		{"reserved underscore", Definition{NewType("_")}},
		{"common field as custom", Definition{NewType("tables", String(FieldSchema))}},
		{"name as custom", Definition{NewType("tables", Bool(FieldName))}},
		{"required on custom", Definition{NewType("tables", Required("type"))}},
		{"duplicate type", Definition{NewType("tables"), NewType("tables")}},
		{"empty enum", Definition{NewType("fks", Enum("onDelete"))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.def)
			if err == nil {
				t.Fatal("New() expected error")
			}
			if alerr.GetErrorCode(err) == "" {
				t.Errorf("New() error %v has no code", err)
			}
		})
	}
}

func TestMustNew_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustNew() did not panic")
		}
	}()
	MustNew(Definition{NewType("entities")})
}

func TestTypes_DeclarationOrder(t *testing.T) {
	s := newTestStore(t)
	got := s.Types()
	want := []string{"schemas", "tables", "columns", "indexes", "uniques"}
	if len(got) != len(want) {
		t.Fatalf("Types() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Types()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// -----------------------------------------------------------------------------
// Push Tests
// -----------------------------------------------------------------------------

func TestPush_FillsDefaults(t *testing.T) {
	s := newTestStore(t)
	res, err := s.Collection("columns").Push(Row{"schema": "dbo", "table": "users", "name": "id"})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if res.Status != StatusOK {
		t.Fatalf("Push() status = %s", res.Status)
	}
	for _, field := range []string{"type", "notNull", "identity"} {
		v, ok := res.Data[field]
		if !ok {
			t.Errorf("field %q missing after push", field)
		}
		if v != nil {
			t.Errorf("field %q = %v, want nil", field, v)
		}
	}
	if res.Data.Type() != "columns" {
		t.Errorf("entityType = %q, want columns", res.Data.Type())
	}
}

func TestPush_CompositeKeyConflict(t *testing.T) {
	s := newTestStore(t)
	cols := s.Collection("columns")
	mustPush(t, cols, Row{"schema": "dbo", "table": "users", "name": "id", "type": "int"})

	res, err := cols.Push(Row{"schema": "dbo", "table": "users", "name": "id", "type": "bigint"})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if res.Status != StatusConflict {
		t.Fatalf("Push() status = %s, want CONFLICT", res.Status)
	}
	if res.Data.Str("type") != "int" {
		t.Errorf("conflict data type = %q, want existing row", res.Data.Str("type"))
	}
	if cols.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cols.Len())
	}
}

func TestPush_SameKeyDifferentType(t *testing.T) {
	s := newTestStore(t)
	mustPush(t, s.Collection("uniques"), Row{"schema": "dbo", "table": "users", "name": "x", "columns": []string{"a"}, "kind": "clustered"})
	mustPush(t, s.Collection("indexes"), Row{"schema": "dbo", "table": "users", "name": "x", "columns": []Row{}})
	if n := s.Entities().Len(); n != 2 {
		t.Errorf("Entities().Len() = %d, want 2", n)
	}
}

func TestPush_ExplicitUniques(t *testing.T) {
	s := newTestStore(t)
	uniques := s.Collection("uniques")
	mustPush(t, uniques, Row{"schema": "dbo", "table": "users", "name": "uq", "columns": []string{"a"}, "kind": "clustered"})

	res, err := uniques.Push(Row{"schema": "dbo", "table": "posts", "name": "uq", "columns": []string{"b"}, "kind": "clustered"}, FieldSchema, FieldName)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if res.Status != StatusConflict {
		t.Errorf("Push() status = %s, want CONFLICT on (schema, name)", res.Status)
	}
}

func TestPush_UmbrellaRoutesByType(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Entities().Push(Row{"entityType": "tables", "schema": "dbo", "name": "users"}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if s.Collection("tables").Len() != 1 {
		t.Error("umbrella push did not land in tables")
	}
	if _, err := s.Entities().Push(Row{"entityType": "nope", "name": "x"}); err == nil {
		t.Error("Push() of unknown type expected error")
	}
}

func TestPush_NormalizesJSONShapes(t *testing.T) {
	s := newTestStore(t)
	res, err := s.Collection("indexes").Push(Row{
		"schema": "dbo", "table": "users", "name": "idx",
		"columns":  []any{map[string]any{"value": "email", "isExpression": false}},
		"isUnique": true,
	})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	cols := res.Data.Objects("columns")
	if len(cols) != 1 || cols[0].Str("value") != "email" {
		t.Errorf("columns = %#v, want one email column", res.Data["columns"])
	}
}

// -----------------------------------------------------------------------------
// List / One Tests
// -----------------------------------------------------------------------------

func TestList_Filter(t *testing.T) {
	s := newTestStore(t)
	cols := s.Collection("columns")
	mustPush(t, cols, Row{"schema": "dbo", "table": "users", "name": "id", "type": "int"})
	mustPush(t, cols, Row{"schema": "dbo", "table": "users", "name": "email", "type": "varchar(100)"})
	mustPush(t, cols, Row{"schema": "dbo", "table": "posts", "name": "id", "type": "int"})

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"nil filter", nil, 3},
		{"by table", Filter{"table": "users"}, 2},
		{"by type", Filter{"type": "int"}, 2},
		{"no match", Filter{"table": "comments"}, 0},
		{"null matches only null", Filter{"identity": nil}, 3},
		{"null mismatch", Filter{"type": nil}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(cols.List(tt.filter)); got != tt.want {
				t.Errorf("List() = %d rows, want %d", got, tt.want)
			}
		})
	}
}

func TestList_Contains(t *testing.T) {
	s := newTestStore(t)
	uniques := s.Collection("uniques")
	mustPush(t, uniques, Row{"schema": "dbo", "table": "users", "name": "uq1", "columns": []string{"a", "b"}, "kind": "clustered"})
	mustPush(t, uniques, Row{"schema": "dbo", "table": "users", "name": "uq2", "columns": []string{"c"}, "kind": "clustered"})

	got := uniques.List(Filter{"columns": Contains{Value: "b"}})
	if len(got) != 1 || got[0].Str("name") != "uq1" {
		t.Errorf("List(Contains b) = %v, want uq1", got)
	}
	if got := uniques.List(Filter{"columns": Contains{Value: "z"}}); len(got) != 0 {
		t.Errorf("List(Contains z) = %d rows, want 0", len(got))
	}
}

func TestList_ReturnsCopies(t *testing.T) {
	s := newTestStore(t)
	uniques := s.Collection("uniques")
	mustPush(t, uniques, Row{"schema": "dbo", "table": "users", "name": "uq", "columns": []string{"a"}, "kind": "clustered"})

	rows := uniques.List(nil)
	rows[0].Strings("columns")[0] = "mutated"
	if got := uniques.One(nil).Strings("columns")[0]; got != "a" {
		t.Errorf("store row mutated through List() copy: %q", got)
	}
}

func TestOne(t *testing.T) {
	s := newTestStore(t)
	tables := s.Collection("tables")
	if tables.One(nil) != nil {
		t.Error("One() on empty collection should be nil")
	}
	mustPush(t, tables, Row{"schema": "dbo", "name": "users"})
	if got := tables.One(Filter{"name": "users"}); got == nil || got.Str("schema") != "dbo" {
		t.Errorf("One() = %v", got)
	}
}

// -----------------------------------------------------------------------------
// Update Tests
// -----------------------------------------------------------------------------

func TestUpdate_Literal(t *testing.T) {
	s := newTestStore(t)
	cols := s.Collection("columns")
	mustPush(t, cols, Row{"schema": "dbo", "table": "users", "name": "id", "type": "int"})
	mustPush(t, cols, Row{"schema": "dbo", "table": "users", "name": "email", "type": "varchar(100)"})

	res := cols.Update(Update{Set: map[string]any{"table": "people"}, Where: Filter{"table": "users"}})
	if res.Status != StatusOK {
		t.Fatalf("Update() status = %s", res.Status)
	}
	if len(res.Data) != 2 {
		t.Errorf("Update() updated %d rows, want 2", len(res.Data))
	}
	if n := len(cols.List(Filter{"table": "people"})); n != 2 {
		t.Errorf("rows in people = %d, want 2", n)
	}
}

func TestUpdate_MapperOnArray(t *testing.T) {
	s := newTestStore(t)
	uniques := s.Collection("uniques")
	idx := s.Collection("indexes")
	mustPush(t, uniques, Row{"schema": "dbo", "table": "users", "name": "uq", "columns": []string{"name", "email"}, "kind": "clustered"})
	mustPush(t, idx, Row{"schema": "dbo", "table": "users", "name": "ix", "columns": []Row{
		{"value": "name", "isExpression": false},
		{"value": "lower(name)", "isExpression": true},
	}})

	uniques.Update(Update{
		Set: map[string]any{"columns": Mapper(func(v any) any {
			if v == "name" {
				return "full_name"
			}
			return v
		})},
		Where: Filter{"table": "users"},
	})
	idx.Update(Update{
		Set: map[string]any{"columns": func(v any) any {
			c := v.(Row)
			if !c.Bool("isExpression") && c.Str("value") == "name" {
				c["value"] = "full_name"
			}
			return c
		}},
		Where: Filter{"table": "users"},
	})

	got := uniques.One(nil).Strings("columns")
	if got[0] != "full_name" || got[1] != "email" {
		t.Errorf("unique columns = %v", got)
	}
	ic := idx.One(nil).Objects("columns")
	if ic[0].Str("value") != "full_name" || ic[1].Str("value") != "lower(name)" {
		t.Errorf("index columns = %v", ic)
	}
}

func TestUpdate_ConflictIsAtomic(t *testing.T) {
	s := newTestStore(t)
	cols := s.Collection("columns")
	mustPush(t, cols, Row{"schema": "dbo", "table": "users", "name": "a", "type": "int"})
	mustPush(t, cols, Row{"schema": "dbo", "table": "users", "name": "b", "type": "int"})
	mustPush(t, cols, Row{"schema": "dbo", "table": "posts", "name": "a", "type": "int"})

	before := cols.List(nil)
	// Renaming every "a" to "b" collides in users but not in posts.
	res := cols.Update(Update{Set: map[string]any{"name": "b"}, Where: Filter{"name": "a"}})
	if res.Status != StatusConflict {
		t.Fatalf("Update() status = %s, want CONFLICT", res.Status)
	}
	if len(res.Data) != 1 || res.Data[0].Str("table") != "users" || res.Data[0].Str("name") != "b" {
		t.Errorf("conflicts = %v, want users.b", res.Data)
	}

	after := cols.List(nil)
	for i := range before {
		if !IsEqual(before[i], after[i]) {
			t.Errorf("row %d changed: %v -> %v", i, before[i], after[i])
		}
	}
}

func TestUpdate_SwapDoesNotConflict(t *testing.T) {
	s := newTestStore(t)
	tables := s.Collection("tables")
	mustPush(t, tables, Row{"schema": "a", "name": "t"})
	mustPush(t, tables, Row{"schema": "b", "name": "t"})

	res := tables.Update(Update{
		Set: map[string]any{FieldSchema: Mapper(func(v any) any {
			if v == "a" {
				return "b"
			}
			return "a"
		})},
		Where: Filter{"name": "t"},
	})
	if res.Status != StatusOK {
		t.Errorf("Update() swap status = %s, want OK", res.Status)
	}
}

func TestUpdate_NoMatch(t *testing.T) {
	s := newTestStore(t)
	res := s.Collection("tables").Update(Update{Set: map[string]any{"name": "x"}, Where: Filter{"name": "nope"}})
	if res.Status != StatusOK || len(res.Data) != 0 {
		t.Errorf("Update() = %+v, want OK with no rows", res)
	}
}

func TestUpdate_UmbrellaAcrossTypes(t *testing.T) {
	s := newTestStore(t)
	mustPush(t, s.Collection("tables"), Row{"schema": "dbo", "name": "users"})
	mustPush(t, s.Collection("columns"), Row{"schema": "dbo", "table": "users", "name": "id"})
	mustPush(t, s.Collection("schemas"), Row{"name": "dbo"})

	res := s.Entities().Update(Update{Set: map[string]any{FieldSchema: "app"}, Where: Filter{FieldSchema: "dbo"}})
	if res.Status != StatusOK || len(res.Data) != 2 {
		t.Fatalf("Update() = %s with %d rows, want OK with 2", res.Status, len(res.Data))
	}
	if s.Collection("schemas").One(Filter{"name": "dbo"}) == nil {
		t.Error("schemas row should not match a schema filter")
	}
}

// -----------------------------------------------------------------------------
// Delete Tests
// -----------------------------------------------------------------------------

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	cols := s.Collection("columns")
	tables := s.Collection("tables")
	mustPush(t, tables, Row{"schema": "dbo", "name": "users"})
	mustPush(t, cols, Row{"schema": "dbo", "table": "users", "name": "id"})
	mustPush(t, cols, Row{"schema": "dbo", "table": "users", "name": "email"})

	removed := cols.Delete(Filter{"name": "id"})
	if len(removed) != 1 {
		t.Errorf("Delete() removed %d, want 1", len(removed))
	}
	cols.Delete(nil)
	if cols.Len() != 0 {
		t.Errorf("columns Len() = %d after wipe", cols.Len())
	}
	if tables.Len() != 1 {
		t.Errorf("wiping columns removed tables")
	}
}

// -----------------------------------------------------------------------------
// Validate Tests
// -----------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	s := newTestStore(t)
	cols := s.Collection("columns")
	uniques := s.Collection("uniques")

	tests := []struct {
		name string
		c    *Collection
		data any
		want bool
	}{
		{"valid column", cols, map[string]any{"entityType": "columns", "schema": "dbo", "table": "t", "name": "id", "type": "int", "notNull": true, "identity": nil}, true},
		{"valid identity", cols, map[string]any{"entityType": "columns", "schema": "dbo", "table": "t", "name": "id", "type": "int", "notNull": true, "identity": map[string]any{"seed": 1.0, "increment": 1}}, true},
		{"wrong entity type", cols, map[string]any{"entityType": "tables", "schema": "dbo", "table": "t", "name": "id", "type": "int", "notNull": true}, false},
		{"missing table", cols, map[string]any{"entityType": "columns", "schema": "dbo", "name": "id", "type": "int", "notNull": true}, false},
		{"bad bool", cols, map[string]any{"entityType": "columns", "schema": "dbo", "table": "t", "name": "id", "type": "int", "notNull": "yes"}, false},
		{"unknown field", cols, map[string]any{"entityType": "columns", "schema": "dbo", "table": "t", "name": "id", "type": "int", "notNull": true, "extra": 1}, false},
		{"bad enum", uniques, map[string]any{"entityType": "uniques", "schema": "dbo", "table": "t", "name": "u", "columns": []any{"a"}, "kind": "heap"}, false},
		{"good enum", uniques, map[string]any{"entityType": "uniques", "schema": "dbo", "table": "t", "name": "u", "columns": []any{"a"}, "kind": "clustered"}, true},
		{"not an object", cols, "columns", false},
		{"umbrella routes", s.Entities(), map[string]any{"entityType": "schemas", "name": "dbo"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Validate(tt.data); got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Equality Tests
// -----------------------------------------------------------------------------

func TestIsEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"nil nil", nil, nil, true},
		{"nil vs empty string", nil, "", false},
		{"int vs float", 1, 1.0, true},
		{"list order", []string{"a", "b"}, []string{"b", "a"}, false},
		{"list length", []string{"a"}, []string{"a", "a"}, false},
		{"typed vs json list", []string{"a"}, []any{"a"}, true},
		{"objects", Row{"a": 1.0}, map[string]any{"a": 1.0}, true},
		{"object missing key is nil", Row{"a": nil}, Row{}, true},
		{"nested", []Row{{"v": "x"}}, []Row{{"v": "y"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("IsEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
