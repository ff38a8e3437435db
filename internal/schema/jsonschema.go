package schema

// JSONSchema renders s as a JSON-Schema object for structured generation.
// Objects are closed and every declared field is listed as required, which is
// what strict structured-output modes expect; optional fields become nullable.
func (s *Schema) JSONSchema() map[string]any {
	if s == nil {
		return map[string]any{"type": "object"}
	}
	return objectSchema(s.Fields)
}

func objectSchema(fields []Field) map[string]any {
	props := map[string]any{}
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func fieldSchema(f Field) map[string]any {
	var out map[string]any
	switch f.Type {
	case TypeArray:
		out = map[string]any{"type": "array"}
		if f.Items != nil {
			out["items"] = fieldSchema(*f.Items)
		} else {
			out["items"] = map[string]any{}
		}
	case TypeObject:
		out = objectSchema(f.Fields)
	case TypeAny, "":
		out = map[string]any{}
	default:
		out = map[string]any{"type": string(f.Type)}
	}
	if !f.Required {
		if t, ok := out["type"].(string); ok {
			out["type"] = []any{t, "null"}
		}
	}
	if f.Description != "" {
		out["description"] = f.Description
	}
	return out
}
