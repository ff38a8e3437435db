// Package ports defines the core interfaces for pipelines and their collaborators.
// This file contains the step contract and the read-only context view steps receive.
package ports

import (
	"context"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/schema"
)

// ContextView is a read-only view of the outputs of steps that already ran.
type ContextView interface {
	// Get returns the output of stepID, or an error when it has not run.
	Get(stepID string) (domain.Payload, error)
	// Has reports whether stepID has an output.
	Has(stepID string) bool
	// All returns every output keyed by step id.
	All() map[string]domain.Payload
	// Keys returns step ids in the order their outputs were written.
	Keys() []string
}

// StepInput is the data handed to a step invocation.
type StepInput struct {
	// RunID identifies the run this invocation belongs to.
	RunID string `json:"run_id"`
	// Params are the run parameters, validated against the step's input schema.
	Params domain.Payload `json:"params"`
	// Deps holds the outputs of the steps named by Requires.
	Deps map[string]domain.Payload `json:"deps,omitempty"`
	// Context is the view of all earlier outputs.
	Context ContextView `json:"-"`
}

// Dep returns the output of a required step, or nil.
func (in *StepInput) Dep(stepID string) domain.Payload {
	if in == nil || in.Deps == nil {
		return nil
	}
	return in.Deps[stepID]
}

// Step is one named unit of pipeline work.
type Step interface {
	// ID returns the identifier of the step, unique within its pipeline.
	ID() string
	// Description is a human-readable summary.
	Description() string
	// InputSchema is the contract the run parameters must satisfy.
	InputSchema() *schema.Schema
	// OutputSchema is the contract the step's output must satisfy.
	OutputSchema() *schema.Schema
	// Requires lists the step ids whose outputs this step reads.
	Requires() []string
	// Required reports whether a generation failure in this step fails the run.
	Required() bool
	// Run executes the step.
	Run(ctx context.Context, in *StepInput) (domain.Payload, error)
}
