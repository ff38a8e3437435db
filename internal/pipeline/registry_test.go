package pipeline

import (
	"testing"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	p1 := mustPipelineID(t, "first")
	p2 := mustPipelineID(t, "second")
	if err := r.Register(p1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(p2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(mustPipelineID(t, "first")); err == nil {
		t.Error("expected duplicate id to be rejected")
	}

	got, err := r.Get("second")
	if err != nil || got != p2 {
		t.Errorf("unexpected Get result: %v, %v", got, err)
	}
	if _, err := r.Get("missing"); !domain.IsKind(err, domain.KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}

	list := r.List()
	if len(list) != 2 || list[0].ID() != "first" || list[1].ID() != "second" {
		t.Errorf("unexpected list order: %v", list)
	}
}

func mustPipelineID(t *testing.T, id string) *Pipeline {
	t.Helper()
	p, err := New(id, "", []ports.Step{&mockStep{id: "only"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}
