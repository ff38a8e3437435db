package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

// Problem code values.
const (
	CodeMissing   = "missing"
	CodeWrongType = "wrong_type"
)

// Problem describes one offending field.
type Problem struct {
	Path     string `json:"path"`
	Code     string `json:"code"`
	Expected Type   `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

func (p Problem) String() string {
	switch p.Code {
	case CodeMissing:
		return fmt.Sprintf("%s: required field missing", p.Path)
	default:
		return fmt.Sprintf("%s: expected %s, got %s", p.Path, p.Expected, p.Actual)
	}
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Schema   string
	Problems []Problem
}

// Error returns a compact summary of the problems.
func (e *ValidationError) Error() string {
	name := e.Schema
	if name == "" {
		name = "payload"
	}
	switch len(e.Problems) {
	case 0:
		return name + ": no validation errors"
	case 1:
		return fmt.Sprintf("%s: %s", name, e.Problems[0])
	default:
		return fmt.Sprintf("%s: %s (and %d more)", name, e.Problems[0], len(e.Problems)-1)
	}
}

// Kind reports the error kind for domain.KindOf.
func (e *ValidationError) Kind() domain.ErrorKind {
	return domain.KindValidation
}

// Paths returns the offending field paths in the order found.
func (e *ValidationError) Paths() []string {
	out := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = p.Path
	}
	return out
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Validate checks payload against s and returns a copy coerced into the
// declared shape. Unknown fields are carried through untouched. When one or
// more fields fail, the returned error is a *ValidationError naming all of them.
func Validate(payload domain.Payload, s *Schema) (domain.Payload, error) {
	if s == nil {
		return payload.Clone(), nil
	}
	v := &validator{}
	out := v.object(map[string]any(payload), s.Fields, "")
	if len(v.problems) > 0 {
		return nil, &ValidationError{Schema: s.Name, Problems: v.problems}
	}
	return domain.Payload(out), nil
}

type validator struct {
	problems []Problem
}

func (v *validator) fail(path, code string, expected Type, actual any) {
	p := Problem{Path: path, Code: code, Expected: expected}
	if code == CodeWrongType {
		p.Actual = typeName(actual)
	}
	v.problems = append(v.problems, p)
}

func (v *validator) object(in map[string]any, fields []Field, prefix string) map[string]any {
	out := make(map[string]any, len(in))
	for k, val := range in {
		out[k] = val
	}
	for _, f := range fields {
		path := joinPath(prefix, f.Name)
		val, present := in[f.Name]
		if !present || val == nil {
			if f.Required {
				v.fail(path, CodeMissing, f.Type, nil)
			}
			continue
		}
		if coerced, ok := v.value(val, f, path); ok {
			out[f.Name] = coerced
		}
	}
	return out
}

func (v *validator) value(val any, f Field, path string) (any, bool) {
	switch f.Type {
	case TypeAny, "":
		return cloneAny(val), true
	case TypeString:
		s, ok := val.(string)
		if !ok {
			v.fail(path, CodeWrongType, f.Type, val)
			return nil, false
		}
		return s, true
	case TypeBoolean:
		b, ok := val.(bool)
		if !ok {
			v.fail(path, CodeWrongType, f.Type, val)
			return nil, false
		}
		return b, true
	case TypeNumber:
		n, ok := toFloat(val)
		if !ok {
			v.fail(path, CodeWrongType, f.Type, val)
			return nil, false
		}
		return n, true
	case TypeInteger:
		n, err := toInt(val)
		if errors.Is(err, errIntRange) {
			v.problems = append(v.problems, Problem{Path: path, Code: CodeWrongType, Expected: f.Type, Actual: "number out of int64 range"})
			return nil, false
		}
		if err != nil {
			v.fail(path, CodeWrongType, f.Type, val)
			return nil, false
		}
		return n, true
	case TypeArray:
		list, ok := toList(val)
		if !ok {
			v.fail(path, CodeWrongType, f.Type, val)
			return nil, false
		}
		out := make([]any, 0, len(list))
		for i, elem := range list {
			elemPath := fmt.Sprintf("%s[%d]", path, i)
			if f.Items == nil {
				out = append(out, cloneAny(elem))
				continue
			}
			if elem == nil {
				v.fail(elemPath, CodeMissing, f.Items.Type, nil)
				continue
			}
			if coerced, ok := v.value(elem, *f.Items, elemPath); ok {
				out = append(out, coerced)
			}
		}
		return out, true
	case TypeObject:
		obj, ok := toMap(val)
		if !ok {
			v.fail(path, CodeWrongType, f.Type, val)
			return nil, false
		}
		return v.object(obj, f.Fields, path), true
	default:
		v.fail(path, CodeWrongType, f.Type, val)
		return nil, false
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func toFloat(val any) (float64, bool) {
	switch n := val.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

var (
	errNotInt   = errors.New("not an integer")
	errIntRange = errors.New("integer out of range")
)

// float64(math.MaxInt64) rounds up to 2^63, so the upper bound is exclusive.
const (
	minInt64Float = -9223372036854775808.0
	maxInt64Float = 9223372036854775808.0
)

func toInt(val any) (int64, error) {
	switch n := val.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return floatToInt(n)
	case float32:
		return floatToInt(float64(n))
	case json.Number:
		i, err := strconv.ParseInt(n.String(), 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return 0, errIntRange
		}
		if err != nil {
			return 0, errNotInt
		}
		return i, nil
	default:
		return 0, errNotInt
	}
}

func floatToInt(f float64) (int64, error) {
	if math.IsNaN(f) || f != math.Trunc(f) {
		return 0, errNotInt
	}
	if f < minInt64Float || f >= maxInt64Float {
		return 0, errIntRange
	}
	return int64(f), nil
}

func toList(val any) ([]any, bool) {
	switch l := val.(type) {
	case []any:
		return l, true
	case []map[string]any:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func toMap(val any) (map[string]any, bool) {
	switch m := val.(type) {
	case map[string]any:
		return m, true
	case domain.Payload:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

func cloneAny(val any) any {
	switch t := val.(type) {
	case map[string]any:
		return map[string]any(domain.Payload(t).Clone())
	case domain.Payload:
		return t.Clone()
	case []any:
		return domain.Payload{"v": t}.Clone()["v"]
	default:
		return val
	}
}

func typeName(val any) string {
	switch val.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, json.Number:
		return "number"
	case []any, []map[string]any, []string:
		return "array"
	case map[string]any, domain.Payload:
		return "object"
	default:
		return strings.TrimPrefix(reflect.TypeOf(val).String(), "*")
	}
}
