package pipeline

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/schema"
)

const tracerName = "github.com/tjfontaine/polyglot-flow/internal/pipeline"

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		p.logger = logger
		return nil
	}
}

// WithParamsSchema validates run parameters before any step runs.
func WithParamsSchema(s *schema.Schema) Option {
	return func(p *Pipeline) error {
		p.params = s
		return nil
	}
}

// WithRunStore records a summary of every finished run.
func WithRunStore(store ports.RunStore) Option {
	return func(p *Pipeline) error {
		p.store = store
		return nil
	}
}

// WithTracer sets the tracer used for step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) error {
		p.tracer = tracer
		return nil
	}
}

// Pipeline is an ordered, immutable list of steps. A single Pipeline may run
// any number of times concurrently; each run owns its own ContextStore.
type Pipeline struct {
	id          string
	description string
	steps       []ports.Step
	params      *schema.Schema

	store  ports.RunStore
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a pipeline. It rejects an empty id, an empty step list,
// duplicate step ids and dependencies on ids that are not in the pipeline.
// A dependency on a step declared later is accepted here and reported as a
// missing dependency when the run reaches it.
func New(id, description string, steps []ports.Step, opts ...Option) (*Pipeline, error) {
	if id == "" {
		return nil, fmt.Errorf("pipeline id cannot be empty")
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("pipeline %s: at least one step is required", id)
	}

	known := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.ID() == "" {
			return nil, fmt.Errorf("pipeline %s: step id cannot be empty", id)
		}
		if known[s.ID()] {
			return nil, fmt.Errorf("pipeline %s: duplicate step id %q", id, s.ID())
		}
		known[s.ID()] = true
	}
	for _, s := range steps {
		for _, dep := range s.Requires() {
			if !known[dep] {
				return nil, fmt.Errorf("pipeline %s: step %s requires unknown step %q", id, s.ID(), dep)
			}
		}
	}

	p := &Pipeline{
		id:          id,
		description: description,
		steps:       append([]ports.Step(nil), steps...),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	return p, nil
}

// ID returns the pipeline identifier.
func (p *Pipeline) ID() string { return p.id }

// Description returns the human-readable description.
func (p *Pipeline) Description() string { return p.description }

// ParamsSchema returns the run parameter schema, if any.
func (p *Pipeline) ParamsSchema() *schema.Schema { return p.params }

// Steps returns the steps in declared order.
func (p *Pipeline) Steps() []ports.Step {
	return append([]ports.Step(nil), p.steps...)
}

// StepIDs returns the step ids in declared order.
func (p *Pipeline) StepIDs() []string {
	ids := make([]string, len(p.steps))
	for i, s := range p.steps {
		ids[i] = s.ID()
	}
	return ids
}
