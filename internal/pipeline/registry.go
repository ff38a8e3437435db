package pipeline

import (
	"fmt"
	"sync"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

// Registry holds pipelines by id, in registration order.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*Pipeline
	order []*Pipeline
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Pipeline)}
}

// Register adds p. A second pipeline with the same id is rejected.
func (r *Registry) Register(p *Pipeline) error {
	if p == nil {
		return fmt.Errorf("pipeline cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID()]; exists {
		return fmt.Errorf("pipeline %q already registered", p.ID())
	}
	r.byID[p.ID()] = p
	r.order = append(r.order, p)
	return nil
}

// Get returns the pipeline registered under id.
func (r *Registry) Get(id string) (*Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound(fmt.Sprintf("pipeline %q not found", id))
	}
	return p, nil
}

// List returns every pipeline in registration order.
func (r *Registry) List() []*Pipeline {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Pipeline, len(r.order))
	copy(result, r.order)
	return result
}

// Len returns the number of registered pipelines.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
