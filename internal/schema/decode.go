package schema

import (
	"bytes"
	"encoding/json"
	"regexp"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*\\n(.*?)\\n?```$")

// StripFences removes a single surrounding Markdown code fence, if present.
func StripFences(s string) string {
	trimmed := bytes.TrimSpace([]byte(s))
	if m := fencePattern.FindSubmatch(trimmed); m != nil {
		return string(bytes.TrimSpace(m[1]))
	}
	return string(trimmed)
}

// Decode parses generative text that is expected to hold a JSON object.
// Anything else, including valid JSON that is not an object, is reported as
// a malformed payload.
func Decode(data []byte) (domain.Payload, error) {
	text := StripFences(string(data))
	if text == "" {
		return nil, domain.ErrMalformedPayload("empty payload")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.ErrMalformedPayload("payload is not valid JSON").WithErr(err)
	}
	if dec.More() {
		return nil, domain.ErrMalformedPayload("payload has trailing data after the JSON value")
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.ErrMalformedPayload("payload is JSON but not an object, got " + typeName(raw))
	}
	return domain.Payload(obj), nil
}

// DecodeString is Decode for string input.
func DecodeString(s string) (domain.Payload, error) {
	return Decode([]byte(s))
}

// DecodeInto decodes data and validates it against s. Text that parses but
// does not match s is reported as upstream data with the validation problems
// as the cause.
func DecodeInto(data []byte, s *Schema) (domain.Payload, error) {
	p, err := Decode(data)
	if err != nil {
		return nil, err
	}
	out, err := Validate(p, s)
	if err != nil {
		return nil, domain.ErrUpstreamData(err.Error()).WithErr(err)
	}
	return out, nil
}
