package domain

// MarkerKey is the reserved payload key holding an embedded error marker.
const MarkerKey = "error"

// ErrorMarker is embedded in a degraded output in place of the expected content.
type ErrorMarker struct {
	Kind    ErrorKind `json:"kind"`
	Step    string    `json:"step,omitempty"`
	Message string    `json:"message"`
}

// Map returns the marker in payload form.
func (m ErrorMarker) Map() map[string]any {
	out := map[string]any{
		"kind":    string(m.Kind),
		"message": m.Message,
	}
	if m.Step != "" {
		out["step"] = m.Step
	}
	return out
}

// MarkerFor builds a marker describing err as seen by step.
func MarkerFor(step string, err error) ErrorMarker {
	pe := AsPipelineError(err, KindGeneration)
	msg := pe.Message
	if msg == "" && pe.Err != nil {
		msg = pe.Err.Error()
	}
	if pe.StepID != "" {
		step = pe.StepID
	}
	return ErrorMarker{Kind: pe.Kind, Step: step, Message: msg}
}

// Degrade returns a copy of base carrying a marker for err. base should already
// conform to the step's output schema so the degraded payload does too.
func Degrade(base Payload, step string, err error) Payload {
	out := base.Clone()
	if out == nil {
		out = Payload{}
	}
	out[MarkerKey] = MarkerFor(step, err).Map()
	return out
}

// MarkerFrom returns the marker embedded in p, if any. Both the map form and a
// bare ErrorMarker value are recognised.
func MarkerFrom(p Payload) (ErrorMarker, bool) {
	if p == nil {
		return ErrorMarker{}, false
	}
	switch m := p[MarkerKey].(type) {
	case ErrorMarker:
		return m, true
	case *ErrorMarker:
		if m == nil {
			return ErrorMarker{}, false
		}
		return *m, true
	case map[string]any:
		kind, _ := m["kind"].(string)
		if kind == "" {
			return ErrorMarker{}, false
		}
		step, _ := m["step"].(string)
		msg, _ := m["message"].(string)
		return ErrorMarker{Kind: ErrorKind(kind), Step: step, Message: msg}, true
	default:
		return ErrorMarker{}, false
	}
}

// IsDegraded reports whether p carries a marker.
func IsDegraded(p Payload) bool {
	_, ok := MarkerFrom(p)
	return ok
}
