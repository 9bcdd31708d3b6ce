package entity

import (
	"sort"
	"strconv"
	"strings"
)

// Row is one entity. Values are JSON-compatible: string, float64, bool,
// nil, []string, Row and []Row.
type Row map[string]any

// Type returns the entity type tag.
func (r Row) Type() string {
	s, _ := r[FieldEntityType].(string)
	return s
}

// Str returns a string field, or "" when absent or null.
func (r Row) Str(field string) string {
	s, _ := r[field].(string)
	return s
}

// Bool returns a boolean field.
func (r Row) Bool(field string) bool {
	b, _ := r[field].(bool)
	return b
}

// Number returns a number field.
func (r Row) Number(field string) float64 {
	n, _ := r[field].(float64)
	return n
}

// Strings returns a string list field.
func (r Row) Strings(field string) []string {
	l, _ := r[field].([]string)
	return l
}

// Object returns a nested object field, or nil.
func (r Row) Object(field string) Row {
	o, _ := r[field].(Row)
	return o
}

// Objects returns a nested object list field.
func (r Row) Objects(field string) []Row {
	l, _ := r[field].([]Row)
	return l
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []string:
		return append([]string(nil), x...)
	case Row:
		return x.Clone()
	case []Row:
		out := make([]Row, len(x))
		for i, r := range x {
			out[i] = r.Clone()
		}
		return out
	default:
		return v
	}
}

// Key is the composite identity of an entity.
type Key struct {
	Schema     *string
	Table      *string
	Name       string
	EntityType string
}

// KeyOf returns the composite key of a row.
func KeyOf(r Row) Key {
	k := Key{Name: r.Str(FieldName), EntityType: r.Type()}
	if s, ok := r[FieldSchema].(string); ok {
		k.Schema = &s
	}
	if t, ok := r[FieldTable].(string); ok {
		k.Table = &t
	}
	return k
}

// String encodes the key for use as a map key.
func (k Key) String() string {
	var b strings.Builder
	part := func(p *string) {
		if p == nil {
			b.WriteString("\x00null")
		} else {
			b.WriteString(strconv.Quote(*p))
		}
		b.WriteByte(':')
	}
	part(k.Schema)
	part(k.Table)
	b.WriteString(strconv.Quote(k.Name))
	b.WriteByte(':')
	b.WriteString(k.EntityType)
	return b.String()
}

// IsEqual compares two values structurally. Arrays are order and length
// sensitive, objects compare over the union of their keys, and nil equals
// only nil.
func IsEqual(a, b any) bool {
	a, b = canonical(a), canonical(b)
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !IsEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok {
			return false
		}
		for _, k := range unionKeys(x, y) {
			if !IsEqual(x[k], y[k]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// canonical maps the typed containers onto []any / map[string]any and
// numbers onto float64 so IsEqual has a single shape to compare.
func canonical(v any) any {
	switch x := v.(type) {
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []Row:
		out := make([]any, len(x))
		for i, r := range x {
			out[i] = map[string]any(r)
		}
		return out
	case Row:
		return map[string]any(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]bool, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
