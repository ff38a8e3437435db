package pipeline

import (
	"errors"
	"testing"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

func TestContextStore_PutGet(t *testing.T) {
	s := NewContextStore()

	if err := s.Put("outline", domain.Payload{"topic": "go"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Put("expand", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := s.Get("outline")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String("topic") != "go" {
		t.Errorf("unexpected output: %v", out)
	}
	if empty, _ := s.Get("expand"); empty == nil {
		t.Error("expected nil output to be stored as an empty payload")
	}

	if _, err := s.Get("projects"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if s.Has("projects") || !s.Has("outline") {
		t.Error("unexpected Has results")
	}
}

func TestContextStore_AppendOnly(t *testing.T) {
	s := NewContextStore()
	_ = s.Put("a", domain.Payload{"v": 1})

	err := s.Put("a", domain.Payload{"v": 2})
	if !errors.Is(err, ErrDuplicateOutput) {
		t.Fatalf("expected ErrDuplicateOutput, got %v", err)
	}
	out, _ := s.Get("a")
	if out["v"] != 1 {
		t.Errorf("first output should be kept, got %v", out)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", s.Len())
	}
}

func TestContextStore_KeysInInsertionOrder(t *testing.T) {
	s := NewContextStore()
	for _, id := range []string{"z", "a", "m"} {
		_ = s.Put(id, nil)
	}

	keys := s.Keys()
	if len(keys) != 3 || keys[0] != "z" || keys[1] != "a" || keys[2] != "m" {
		t.Errorf("unexpected order: %v", keys)
	}

	keys[0] = "changed"
	if s.Keys()[0] != "z" {
		t.Error("Keys should return a copy")
	}

	all := s.All()
	delete(all, "z")
	if !s.Has("z") {
		t.Error("All should return a new map")
	}
}

func TestContextStore_View(t *testing.T) {
	s := NewContextStore()
	_ = s.Put("a", domain.Payload{"x": "y"})

	v := s.View()
	if !v.Has("a") || len(v.Keys()) != 1 || len(v.All()) != 1 {
		t.Error("view should reflect the store")
	}
	if _, ok := v.(interface {
		Put(string, domain.Payload) error
	}); ok {
		t.Error("view must not expose Put")
	}

	_ = s.Put("b", nil)
	if !v.Has("b") {
		t.Error("view should see later writes")
	}
}
