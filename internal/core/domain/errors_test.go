package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestPipelineError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *PipelineError
		want string
	}{
		{
			name: "kind and message",
			err:  ErrGeneration("upstream timeout"),
			want: "generation: upstream timeout",
		},
		{
			name: "with step",
			err:  ErrUpstreamData("items missing").WithStep("expand"),
			want: "step expand: upstream_data: items missing",
		},
		{
			name: "with code",
			err:  ErrGeneration("slow down").WithCode("rate_limit_exceeded"),
			want: "generation (rate_limit_exceeded): slow down",
		},
		{
			name: "message falls back to cause",
			err:  NewPipelineError(KindCancelled, "").WithErr(context.Canceled),
			want: "cancelled: context canceled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPipelineError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindInvalidInputFormat, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindGeneration, http.StatusBadGateway},
		{KindCancelled, http.StatusServiceUnavailable},
		{KindMissingDependency, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := NewPipelineError(tt.kind, "x")
			if got := err.HTTPStatusCode(); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

type kindedErr struct{}

func (kindedErr) Error() string   { return "bad shape" }
func (kindedErr) Kind() ErrorKind { return KindValidation }

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("step outline: %w", ErrMalformedPayload("not json"))
	if got := KindOf(wrapped); got != KindMalformedPayload {
		t.Errorf("KindOf(wrapped) = %q, want %q", got, KindMalformedPayload)
	}

	if got := KindOf(fmt.Errorf("outer: %w", kindedErr{})); got != KindValidation {
		t.Errorf("KindOf(kinded) = %q, want %q", got, KindValidation)
	}

	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}

	if !IsKind(ErrCancelled(context.Canceled), KindCancelled) {
		t.Error("expected IsKind to match cancelled")
	}
	if !errors.Is(ErrCancelled(context.Canceled), context.Canceled) {
		t.Error("expected cancelled error to unwrap to context.Canceled")
	}
}

func TestAsPipelineError(t *testing.T) {
	pe := AsPipelineError(errors.New("connection reset"), KindGeneration)
	if pe.Kind != KindGeneration {
		t.Errorf("Kind = %q, want %q", pe.Kind, KindGeneration)
	}

	orig := ErrUpstreamData("wrong shape")
	if got := AsPipelineError(fmt.Errorf("wrap: %w", orig), KindGeneration); got != orig {
		t.Error("expected the original *PipelineError to be returned")
	}
}

func TestDegradeAndMarkerFrom(t *testing.T) {
	base := Payload{"items": []any{}}
	out := Degrade(base, "expand", ErrMalformedPayload("not json"))

	if _, ok := base[MarkerKey]; ok {
		t.Fatal("Degrade must not modify its input")
	}

	m, ok := MarkerFrom(out)
	if !ok {
		t.Fatal("expected marker")
	}
	if m.Kind != KindMalformedPayload || m.Step != "expand" || m.Message != "not json" {
		t.Errorf("unexpected marker %+v", m)
	}
	if !IsDegraded(out) {
		t.Error("IsDegraded() = false, want true")
	}
	if IsDegraded(Payload{"error": "just a string field"}) {
		t.Error("a plain string error field is not a marker")
	}
}

func TestPayloadClone(t *testing.T) {
	orig := Payload{
		"topic": "go",
		"items": []any{map[string]any{"title": "a"}},
	}
	c := orig.Clone()
	c["items"].([]any)[0].(map[string]any)["title"] = "changed"

	got := orig["items"].([]any)[0].(map[string]any)["title"]
	if got != "a" {
		t.Errorf("original mutated through clone: %v", got)
	}
}

func TestResult(t *testing.T) {
	ok := Ok(Payload{"a": 1})
	if !ok.IsOk() || ok.Kind() != "" || ok.Error() != nil {
		t.Errorf("unexpected ok result %+v", ok)
	}

	bad := Err(ErrGeneration("boom"))
	if bad.IsOk() || bad.Kind() != KindGeneration || bad.Payload() != nil {
		t.Errorf("unexpected err result %+v", bad)
	}
}
