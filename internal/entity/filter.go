package entity

// Filter selects rows by exact field equality. Fields absent from the filter
// are ignored; a nil value matches only null. Array fields additionally
// accept Contains.
type Filter map[string]any

// Contains matches array fields holding an element equal to Value.
type Contains struct {
	Value any
}

// Match reports whether the row satisfies the filter.
func (f Filter) Match(r Row) bool {
	for field, want := range f {
		got := r[field]
		if c, ok := want.(Contains); ok {
			if !containsValue(got, c.Value) {
				return false
			}
			continue
		}
		if !IsEqual(got, want) {
			return false
		}
	}
	return true
}

func containsValue(list, v any) bool {
	switch l := list.(type) {
	case []string:
		for _, s := range l {
			if IsEqual(s, v) {
				return true
			}
		}
	case []Row:
		for _, r := range l {
			if IsEqual(r, v) {
				return true
			}
		}
	case []any:
		for _, e := range l {
			if IsEqual(e, v) {
				return true
			}
		}
	}
	return false
}

// with returns a copy of the filter with one more constraint.
func (f Filter) with(field string, value any) Filter {
	out := make(Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out[field] = value
	return out
}
