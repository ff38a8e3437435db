package domain

// Payload is the structured data passed into and out of steps.
type Payload map[string]any

// Clone returns a deep copy of the payload. Nested maps and slices are copied;
// scalar values are shared.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Payload:
		return t.Clone()
	case map[string]any:
		return map[string]any(Payload(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = map[string]any(Payload(e).Clone())
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// String returns the string stored at key, or "" if absent or not a string.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Slice returns the list stored at key, or nil.
func (p Payload) Slice(key string) []any {
	s, _ := p[key].([]any)
	return s
}

// Merge returns a copy of p with every key of other added on top.
func (p Payload) Merge(other Payload) Payload {
	out := p.Clone()
	if out == nil {
		out = Payload{}
	}
	for k, v := range other {
		out[k] = cloneValue(v)
	}
	return out
}
