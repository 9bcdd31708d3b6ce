package entity

import "math"

// normalizeRow coerces JSON-decoded values (float64 numbers, []any lists,
// map[string]any objects) onto the row value shapes and fills every
// declared but missing field with nil.
func (t *typeInfo) normalizeRow(in Row) Row {
	out := make(Row, len(t.fields)+len(t.commons)+1)
	out[FieldEntityType] = t.name
	for _, c := range t.commons {
		out[c] = in[c]
		if s, ok := in[c].(string); ok {
			out[c] = s
		}
	}
	for _, f := range t.fields {
		out[f.Name] = normalizeValue(f, in[f.Name])
	}
	return out
}

func normalizeValue(f Field, v any) any {
	if v == nil {
		return nil
	}
	switch f.Kind {
	case KindNumber:
		switch n := v.(type) {
		case int:
			return float64(n)
		case int64:
			return float64(n)
		case float32:
			return float64(n)
		}
	case KindStringList:
		if l, ok := v.([]any); ok {
			out := make([]string, 0, len(l))
			for _, e := range l {
				s, ok := e.(string)
				if !ok {
					return v
				}
				out = append(out, s)
			}
			return out
		}
		if l, ok := v.([]string); ok {
			return append([]string(nil), l...)
		}
	case KindObject:
		if o := asObject(v); o != nil {
			return normalizeObject(f.Fields, o)
		}
	case KindObjectList:
		switch l := v.(type) {
		case []any:
			out := make([]Row, 0, len(l))
			for _, e := range l {
				o := asObject(e)
				if o == nil {
					return v
				}
				out = append(out, normalizeObject(f.Fields, o))
			}
			return out
		case []Row:
			out := make([]Row, len(l))
			for i, o := range l {
				out[i] = normalizeObject(f.Fields, o)
			}
			return out
		}
	}
	return v
}

func asObject(v any) Row {
	switch o := v.(type) {
	case Row:
		return o
	case map[string]any:
		return Row(o)
	}
	return nil
}

func normalizeObject(fields []Field, in Row) Row {
	out := make(Row, len(fields))
	for _, f := range fields {
		out[f.Name] = normalizeValue(f, in[f.Name])
	}
	return out
}

// validateRow type-checks data against the type declaration.
func (t *typeInfo) validateRow(data any) bool {
	r := asObject(data)
	if r == nil {
		return false
	}
	if r.Type() != t.name {
		return false
	}
	for _, c := range t.commons {
		if _, ok := r[c].(string); !ok {
			return false
		}
	}
	for k := range r {
		if k == FieldEntityType || isCommon(k) {
			continue
		}
		if _, ok := t.byName[k]; !ok {
			return false
		}
	}
	for _, f := range t.fields {
		if !validateValue(f, r[f.Name]) {
			return false
		}
	}
	return true
}

func validateValue(f Field, v any) bool {
	switch f.Kind {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindNullableString:
		if v == nil {
			return true
		}
		_, ok := v.(string)
		return ok
	case KindNumber:
		switch n := v.(type) {
		case float64:
			return !math.IsNaN(n)
		case int, int64, float32:
			return true
		}
		return false
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindStringList:
		switch l := v.(type) {
		case []string:
			return true
		case []any:
			for _, e := range l {
				if _, ok := e.(string); !ok {
					return false
				}
			}
			return true
		}
		return false
	case KindEnum:
		s, ok := v.(string)
		if !ok {
			return false
		}
		for _, allowed := range f.Values {
			if s == allowed {
				return true
			}
		}
		return false
	case KindObject:
		if v == nil {
			return true
		}
		return validateObject(f.Fields, asObject(v))
	case KindObjectList:
		switch l := v.(type) {
		case []Row:
			for _, o := range l {
				if !validateObject(f.Fields, o) {
					return false
				}
			}
			return true
		case []any:
			for _, e := range l {
				if !validateObject(f.Fields, asObject(e)) {
					return false
				}
			}
			return true
		}
		return false
	}
	return false
}

func validateObject(fields []Field, o Row) bool {
	if o == nil {
		return false
	}
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Name] = true
		if !validateValue(f, o[f.Name]) {
			return false
		}
	}
	for k := range o {
		if !known[k] {
			return false
		}
	}
	return true
}
