// Package schema declares payload shapes and validates untrusted step data
// against them.
package schema

import (
	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

// Type is the declared type of a field.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
	TypeAny     Type = "any"
)

// Field declares one payload field.
type Field struct {
	Name        string  `json:"name" yaml:"name" koanf:"name"`
	Type        Type    `json:"type" yaml:"type" koanf:"type"`
	Required    bool    `json:"required,omitempty" yaml:"required,omitempty" koanf:"required"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty" koanf:"description"`
	Items       *Field  `json:"items,omitempty" yaml:"items,omitempty" koanf:"items"`
	Fields      []Field `json:"fields,omitempty" yaml:"fields,omitempty" koanf:"fields"`
}

// Schema is a named, ordered set of fields.
type Schema struct {
	Name   string  `json:"name" yaml:"name" koanf:"name"`
	Fields []Field `json:"fields" yaml:"fields" koanf:"fields"`
}

// New creates a schema from fields.
func New(name string, fields ...Field) *Schema {
	return &Schema{Name: name, Fields: fields}
}

// String declares a string field.
func String(name string, required bool) Field {
	return Field{Name: name, Type: TypeString, Required: required}
}

// Integer declares an integer field.
func Integer(name string, required bool) Field {
	return Field{Name: name, Type: TypeInteger, Required: required}
}

// Number declares a number field.
func Number(name string, required bool) Field {
	return Field{Name: name, Type: TypeNumber, Required: required}
}

// Boolean declares a boolean field.
func Boolean(name string, required bool) Field {
	return Field{Name: name, Type: TypeBoolean, Required: required}
}

// Any declares a field of any type.
func Any(name string, required bool) Field {
	return Field{Name: name, Type: TypeAny, Required: required}
}

// Array declares a list whose elements must match items.
func Array(name string, required bool, items Field) Field {
	return Field{Name: name, Type: TypeArray, Required: required, Items: &items}
}

// Object declares a nested object.
func Object(name string, required bool, fields ...Field) Field {
	return Field{Name: name, Type: TypeObject, Required: required, Fields: fields}
}

// Describe sets the field description.
func (f Field) Describe(desc string) Field {
	f.Description = desc
	return f
}

// Lookup returns the field named name.
func (s *Schema) Lookup(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Zero builds the smallest payload that satisfies s. Degraded outputs start
// from it so they stay schema-conformant.
func (s *Schema) Zero() domain.Payload {
	out := domain.Payload{}
	if s == nil {
		return out
	}
	for _, f := range s.Fields {
		if f.Required {
			out[f.Name] = zeroValue(f)
		}
	}
	return out
}

func zeroValue(f Field) any {
	switch f.Type {
	case TypeString:
		return ""
	case TypeNumber:
		return float64(0)
	case TypeInteger:
		return int64(0)
	case TypeBoolean:
		return false
	case TypeArray:
		return []any{}
	case TypeObject:
		obj := map[string]any{}
		for _, nf := range f.Fields {
			if nf.Required {
				obj[nf.Name] = zeroValue(nf)
			}
		}
		return obj
	default:
		return map[string]any{}
	}
}

// Describe renders the schema as a field -> type map, nesting objects and
// array element shapes.
func (s *Schema) Describe() map[string]any {
	out := map[string]any{}
	if s == nil {
		return out
	}
	for _, f := range s.Fields {
		out[f.Name] = describeField(f)
	}
	return out
}

func describeField(f Field) any {
	label := string(f.Type)
	if !f.Required {
		label += "?"
	}
	switch f.Type {
	case TypeArray:
		if f.Items != nil {
			return []any{describeField(*f.Items)}
		}
	case TypeObject:
		if len(f.Fields) > 0 {
			obj := map[string]any{}
			for _, nf := range f.Fields {
				obj[nf.Name] = describeField(nf)
			}
			return obj
		}
	}
	return label
}
