package pipeline

import (
	"context"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/schema"
)

// StepFunc is the unit of work behind a FuncStep.
type StepFunc func(ctx context.Context, in *ports.StepInput) (domain.Payload, error)

// StepOption configures a FuncStep.
type StepOption func(*FuncStep)

// Requires declares the steps whose outputs the step reads.
func Requires(stepIDs ...string) StepOption {
	return func(s *FuncStep) {
		s.requires = append(s.requires, stepIDs...)
	}
}

// Required makes a generation failure in the step fail the whole run.
func Required() StepOption {
	return func(s *FuncStep) {
		s.required = true
	}
}

// FuncStep is a Step backed by a function.
type FuncStep struct {
	id          string
	description string
	input       *schema.Schema
	output      *schema.Schema
	requires    []string
	required    bool
	fn          StepFunc
}

// NewStep creates a step. Nil schemas accept any payload.
func NewStep(id, description string, input, output *schema.Schema, fn StepFunc, opts ...StepOption) *FuncStep {
	s := &FuncStep{
		id:          id,
		description: description,
		input:       input,
		output:      output,
		fn:          fn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FuncStep) ID() string                   { return s.id }
func (s *FuncStep) Description() string          { return s.description }
func (s *FuncStep) InputSchema() *schema.Schema  { return s.input }
func (s *FuncStep) OutputSchema() *schema.Schema { return s.output }
func (s *FuncStep) Requires() []string           { return s.requires }
func (s *FuncStep) Required() bool               { return s.required }

// Run executes the step function.
func (s *FuncStep) Run(ctx context.Context, in *ports.StepInput) (domain.Payload, error) {
	return s.fn(ctx, in)
}

var _ ports.Step = (*FuncStep)(nil)
