package pipeline

import (
	"errors"
	"fmt"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
)

var (
	// ErrNotFound is returned by Get for a step that has no output.
	ErrNotFound = errors.New("step output not found")
	// ErrDuplicateOutput is returned by Put when a step already has an output.
	ErrDuplicateOutput = errors.New("step output already recorded")
)

// ContextStore is the append-only record of step outputs for one run.
//
// Entries are never removed or overwritten: a second Put for the same step
// is rejected with ErrDuplicateOutput and the first output is kept. A store
// is owned by a single run and is not safe for concurrent writers; steps only
// ever see it through View.
type ContextStore struct {
	order   []string
	entries map[string]domain.Payload
}

// NewContextStore creates an empty store.
func NewContextStore() *ContextStore {
	return &ContextStore{
		entries: make(map[string]domain.Payload),
	}
}

// Put records the output of stepID.
func (s *ContextStore) Put(stepID string, output domain.Payload) error {
	if _, exists := s.entries[stepID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOutput, stepID)
	}
	if output == nil {
		output = domain.Payload{}
	}
	s.entries[stepID] = output
	s.order = append(s.order, stepID)
	return nil
}

// Get returns the output of stepID.
func (s *ContextStore) Get(stepID string) (domain.Payload, error) {
	out, ok := s.entries[stepID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, stepID)
	}
	return out, nil
}

// Has reports whether stepID has an output.
func (s *ContextStore) Has(stepID string) bool {
	_, ok := s.entries[stepID]
	return ok
}

// All returns a new map over the recorded outputs.
func (s *ContextStore) All() map[string]domain.Payload {
	out := make(map[string]domain.Payload, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Keys returns step ids in insertion order.
func (s *ContextStore) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of recorded outputs.
func (s *ContextStore) Len() int {
	return len(s.order)
}

// View returns a read-only view of the store.
func (s *ContextStore) View() ports.ContextView {
	return contextView{store: s}
}

// contextView hides Put from steps.
type contextView struct {
	store *ContextStore
}

func (v contextView) Get(stepID string) (domain.Payload, error) { return v.store.Get(stepID) }
func (v contextView) Has(stepID string) bool                    { return v.store.Has(stepID) }
func (v contextView) All() map[string]domain.Payload            { return v.store.All() }
func (v contextView) Keys() []string                            { return v.store.Keys() }

var _ ports.ContextView = (*ContextStore)(nil)
