// Package entity provides a small in-memory entity store driven by a
// declarative definition, and a structural diff over two stores.
//
// Every entity type shares three common fields: schema, table and name.
// The composite key (schema, table, name, entityType) identifies an entity
// within its type.
package entity

import (
	"fmt"

	"github.com/hlop3z/schemadiff/internal/alerr"
)

// Common field names.
const (
	FieldSchema     = "schema"
	FieldTable      = "table"
	FieldName       = "name"
	FieldEntityType = "entityType"
)

// reservedTypes cannot be used as entity type names.
var reservedTypes = map[string]bool{"entities": true, "_": true}

// Kind is the kind of a declared field.
type Kind int

const (
	// KindString is a non-null string.
	KindString Kind = iota
	// KindNullableString is a string or null.
	KindNullableString
	// KindNumber is a float64.
	KindNumber
	// KindBool is a boolean.
	KindBool
	// KindStringList is a list of strings.
	KindStringList
	// KindRequired marks a common field as present and non-null.
	KindRequired
	// KindEnum is one of a fixed set of string values.
	KindEnum
	// KindObject is a nested object, or null.
	KindObject
	// KindObjectList is a list of nested objects of one shape.
	KindObjectList
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNullableString:
		return "string?"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindStringList:
		return "string[]"
	case KindRequired:
		return "required"
	case KindEnum:
		return "enum"
	case KindObject:
		return "object"
	case KindObjectList:
		return "object[]"
	default:
		return "unknown"
	}
}

// Field declares one field of an entity type or nested object.
type Field struct {
	Name   string
	Kind   Kind
	Values []string // KindEnum
	Fields []Field  // KindObject, KindObjectList
}

// IsList reports whether the field holds an array value.
func (f Field) IsList() bool {
	return f.Kind == KindStringList || f.Kind == KindObjectList
}

// String declares a string field.
func String(name string) Field { return Field{Name: name, Kind: KindString} }

// NullableString declares a string field that may be null.
func NullableString(name string) Field { return Field{Name: name, Kind: KindNullableString} }

// Number declares a number field.
func Number(name string) Field { return Field{Name: name, Kind: KindNumber} }

// Bool declares a boolean field.
func Bool(name string) Field { return Field{Name: name, Kind: KindBool} }

// StringList declares a string array field.
func StringList(name string) Field { return Field{Name: name, Kind: KindStringList} }

// Required marks a common field (schema or table) as part of the type.
func Required(name string) Field { return Field{Name: name, Kind: KindRequired} }

// Enum declares a field restricted to values.
func Enum(name string, values ...string) Field {
	return Field{Name: name, Kind: KindEnum, Values: values}
}

// Object declares a nullable nested object field.
func Object(name string, fields ...Field) Field {
	return Field{Name: name, Kind: KindObject, Fields: fields}
}

// ObjectList declares a repeatable nested object field.
func ObjectList(name string, fields ...Field) Field {
	return Field{Name: name, Kind: KindObjectList, Fields: fields}
}

// Type declares one entity type.
type Type struct {
	Name   string
	Fields []Field
}

// NewType declares an entity type with the given fields.
func NewType(name string, fields ...Field) Type {
	return Type{Name: name, Fields: fields}
}

// Definition is the ordered list of entity types a store holds.
type Definition []Type

// typeInfo is the compiled form of a Type.
type typeInfo struct {
	name    string
	fields  []Field // custom fields, declaration order
	commons []string
	byName  map[string]Field
}

func isCommon(name string) bool {
	return name == FieldSchema || name == FieldTable || name == FieldName
}

// compile validates the definition and returns per-type information.
func (d Definition) compile() ([]*typeInfo, error) {
	seen := make(map[string]bool, len(d))
	infos := make([]*typeInfo, 0, len(d))
	for _, t := range d {
		if t.Name == "" {
			return nil, alerr.New(alerr.ErrSchemaInvalid, "entity type name is required")
		}
		if reservedTypes[t.Name] {
			return nil, alerr.Newf(alerr.ErrSchemaInvalid, "%q is a reserved entity type name", t.Name)
		}
		if seen[t.Name] {
			return nil, alerr.New(alerr.ErrSchemaDuplicate, "entity type declared twice").
				With("type", t.Name)
		}
		seen[t.Name] = true

		info := &typeInfo{name: t.Name, byName: make(map[string]Field)}
		hasSchema, hasTable := false, false
		for _, f := range t.Fields {
			if isCommon(f.Name) {
				if f.Kind != KindRequired {
					return nil, alerr.Newf(alerr.ErrSchemaInvalid,
						"common field %q can only be declared as required", f.Name).
						With("type", t.Name)
				}
				switch f.Name {
				case FieldSchema:
					hasSchema = true
				case FieldTable:
					hasTable = true
				}
				continue
			}
			if f.Kind == KindRequired {
				return nil, alerr.Newf(alerr.ErrSchemaInvalid,
					"field %q: required is only legal on common fields", f.Name).
					With("type", t.Name)
			}
			if f.Name == FieldEntityType {
				return nil, alerr.Newf(alerr.ErrSchemaInvalid, "field %q is reserved", f.Name).
					With("type", t.Name)
			}
			if err := checkField(f); err != nil {
				return nil, alerr.Wrap(alerr.ErrSchemaInvalid, err, "invalid field").
					With("type", t.Name).
					With("field", f.Name)
			}
			info.fields = append(info.fields, f)
			info.byName[f.Name] = f
		}
		if hasSchema {
			info.commons = append(info.commons, FieldSchema)
		}
		if hasTable {
			info.commons = append(info.commons, FieldTable)
		}
		info.commons = append(info.commons, FieldName)
		infos = append(infos, info)
	}
	return infos, nil
}

func checkField(f Field) error {
	switch f.Kind {
	case KindEnum:
		if len(f.Values) == 0 {
			return fmt.Errorf("enum %q has no values", f.Name)
		}
	case KindObject, KindObjectList:
		if len(f.Fields) == 0 {
			return fmt.Errorf("object %q has no fields", f.Name)
		}
		for _, nested := range f.Fields {
			if nested.Kind == KindRequired {
				return fmt.Errorf("nested field %q cannot be required", nested.Name)
			}
			if err := checkField(nested); err != nil {
				return err
			}
		}
	}
	return nil
}
