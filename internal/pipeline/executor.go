package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/schema"
)

// Run is the record of one pipeline execution.
type Run struct {
	ID         string
	PipelineID string
	Status     domain.RunStatus
	Params     domain.Payload
	Steps      []domain.StepReport
	Context    *ContextStore
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Outputs returns every recorded step output keyed by step id.
func (r *Run) Outputs() map[string]domain.Payload {
	return r.Context.All()
}

// Report returns the report for stepID.
func (r *Run) Report(stepID string) (domain.StepReport, bool) {
	for _, rep := range r.Steps {
		if rep.StepID == stepID {
			return rep, true
		}
	}
	return domain.StepReport{}, false
}

// Record returns the audit summary of the run.
func (r *Run) Record() *domain.RunRecord {
	rec := &domain.RunRecord{
		ID:         r.ID,
		PipelineID: r.PipelineID,
		Status:     r.Status,
		Params:     r.Params.Clone(),
		Steps:      append([]domain.StepReport(nil), r.Steps...),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

// Run executes every step in declared order against a fresh ContextStore.
//
// Recoverable step errors (bad upstream data, invalid step input, generation
// failures in best-effort steps) are recorded as degraded outputs carrying an
// error marker and the run continues. The run stops early in three cases, and
// then both the partial Run and a *domain.PipelineError are returned:
//   - a Required step fails to generate (status failed)
//   - a step depends on output that is not in the context (status failed)
//   - ctx is cancelled (status cancelled, the last attempted step is marked cancelled)
//
// Invalid run parameters are rejected before any step runs and return a nil Run.
func (p *Pipeline) Run(ctx context.Context, params domain.Payload) (*Run, error) {
	params = params.Clone()
	if params == nil {
		params = domain.Payload{}
	}
	if p.params != nil {
		validated, err := schema.Validate(params, p.params)
		if err != nil {
			return nil, domain.ErrValidation("invalid run parameters: " + err.Error()).WithErr(err)
		}
		params = validated
	}

	run := &Run{
		ID:         uuid.New().String(),
		PipelineID: p.id,
		Status:     domain.RunStatusRunning,
		Params:     params,
		Context:    NewContextStore(),
		StartedAt:  time.Now(),
	}

	ctx, span := p.tracer.Start(ctx, "pipeline "+p.id, trace.WithAttributes(
		attribute.String("pipeline.id", p.id),
		attribute.String("run.id", run.ID),
	))
	defer span.End()

	logger := p.logger.With(slog.String("pipeline", p.id), slog.String("run_id", run.ID))
	logger.Info("run started", slog.Int("steps", len(p.steps)))

	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			perr := domain.ErrCancelled(err).WithStep(step.ID())
			report := p.recordFailure(run, step, perr, time.Now())
			report.Status = domain.StepStatusCancelled
			run.Steps = append(run.Steps, report)
			return p.finish(ctx, run, i+1, domain.RunStatusCancelled, perr, span, logger)
		}

		report, stop := p.execStep(ctx, run, step, params, logger)
		run.Steps = append(run.Steps, report)
		if stop != nil {
			status := domain.RunStatusFailed
			if stop.Kind == domain.KindCancelled {
				status = domain.RunStatusCancelled
			}
			return p.finish(ctx, run, i+1, status, stop, span, logger)
		}
	}

	return p.finish(ctx, run, len(p.steps), domain.RunStatusCompleted, nil, span, logger)
}

// execStep runs one step and records its output. A non-nil error means the
// run must stop.
func (p *Pipeline) execStep(ctx context.Context, run *Run, step ports.Step, params domain.Payload, logger *slog.Logger) (domain.StepReport, *domain.PipelineError) {
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "step "+step.ID(), trace.WithAttributes(
		attribute.String("step.id", step.ID()),
	))
	defer span.End()

	deps := make(map[string]domain.Payload, len(step.Requires()))
	for _, dep := range step.Requires() {
		out, err := run.Context.Get(dep)
		if err != nil {
			perr := domain.ErrMissingDependency(step.ID(), dep).WithErr(err)
			span.RecordError(perr)
			span.SetStatus(codes.Error, perr.Error())
			logger.Error("step dependency missing",
				slog.String("step", step.ID()),
				slog.String("dependency", dep))
			report := p.recordFailure(run, step, perr, start)
			report.Status = domain.StepStatusFailed
			return report, perr
		}
		deps[dep] = out
	}

	result := p.invoke(ctx, run, step, params, deps)

	if result.IsOk() {
		out := result.Payload()
		report := domain.StepReport{
			StepID:    step.ID(),
			Status:    domain.StepStatusOK,
			StartedAt: start,
			Duration:  time.Since(start),
		}
		if m, ok := domain.MarkerFrom(out); ok {
			report.Status = domain.StepStatusDegraded
			report.Error = &m
		}
		p.put(run, step.ID(), out, logger)
		span.SetAttributes(attribute.String("step.status", string(report.Status)))
		logger.Info("step completed",
			slog.String("step", step.ID()),
			slog.String("status", string(report.Status)),
			slog.Duration("duration", report.Duration))
		return report, nil
	}

	perr := result.Error()
	span.RecordError(perr)
	span.SetStatus(codes.Error, perr.Error())
	report := p.recordFailure(run, step, perr, start)

	switch {
	case perr.Kind == domain.KindCancelled:
		report.Status = domain.StepStatusCancelled
		logger.Warn("step cancelled", slog.String("step", step.ID()))
		return report, perr
	case perr.Kind == domain.KindGeneration && step.Required():
		report.Status = domain.StepStatusFailed
		logger.Error("required step failed",
			slog.String("step", step.ID()),
			slog.String("error", perr.Error()))
		return report, perr
	default:
		report.Status = domain.StepStatusDegraded
		logger.Warn("step degraded",
			slog.String("step", step.ID()),
			slog.String("kind", string(perr.Kind)),
			slog.String("error", perr.Error()))
		return report, nil
	}
}

// invoke validates the step input, runs the step and validates its output,
// classifying every failure.
func (p *Pipeline) invoke(ctx context.Context, run *Run, step ports.Step, params domain.Payload, deps map[string]domain.Payload) domain.Result {
	input, err := schema.Validate(params, step.InputSchema())
	if err != nil {
		return domain.Err(domain.ErrInvalidInputFormat(err.Error()).WithStep(step.ID()).WithErr(err))
	}

	out, err := step.Run(ctx, &ports.StepInput{
		RunID:   run.ID,
		Params:  input,
		Deps:    deps,
		Context: run.Context.View(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.Err(domain.ErrCancelled(err).WithStep(step.ID()))
		}
		pe := *domain.AsPipelineError(err, domain.KindGeneration)
		if pe.StepID == "" {
			pe.StepID = step.ID()
		}
		return domain.Err(&pe)
	}

	validated, err := schema.Validate(out, step.OutputSchema())
	if err != nil {
		return domain.Err(domain.ErrGeneration("output failed validation: " + err.Error()).
			WithStep(step.ID()).
			WithErr(err))
	}
	return domain.Ok(validated)
}

// recordFailure writes a degraded output for step and returns a report
// carrying its marker. The caller sets the status.
func (p *Pipeline) recordFailure(run *Run, step ports.Step, perr *domain.PipelineError, start time.Time) domain.StepReport {
	marker := domain.MarkerFor(step.ID(), perr)
	p.put(run, step.ID(), domain.Degrade(step.OutputSchema().Zero(), step.ID(), perr), p.logger)
	return domain.StepReport{
		StepID:    step.ID(),
		Error:     &marker,
		StartedAt: start,
		Duration:  time.Since(start),
	}
}

func (p *Pipeline) put(run *Run, stepID string, out domain.Payload, logger *slog.Logger) {
	// Step ids are unique per pipeline, so a duplicate here is a bug.
	if err := run.Context.Put(stepID, out); err != nil {
		logger.Error("failed to record step output",
			slog.String("step", stepID),
			slog.String("error", err.Error()))
	}
}

// finish marks steps from index next onwards as skipped, closes the run and
// records it.
func (p *Pipeline) finish(ctx context.Context, run *Run, next int, status domain.RunStatus, perr *domain.PipelineError, span trace.Span, logger *slog.Logger) (*Run, error) {
	for _, step := range p.steps[next:] {
		run.Steps = append(run.Steps, domain.StepReport{
			StepID: step.ID(),
			Status: domain.StepStatusSkipped,
		})
	}

	run.Status = status
	run.FinishedAt = time.Now()
	span.SetAttributes(attribute.String("run.status", string(status)))

	var err error
	if perr != nil {
		run.Err = perr
		err = perr
		span.SetStatus(codes.Error, perr.Error())
	}

	if p.store != nil {
		// Record even when ctx was cancelled
		if serr := p.store.SaveRun(context.WithoutCancel(ctx), run.Record()); serr != nil {
			logger.Error("failed to record run", slog.String("error", serr.Error()))
		}
	}

	attrs := []any{
		slog.String("status", string(status)),
		slog.Int("outputs", run.Context.Len()),
		slog.Duration("duration", run.FinishedAt.Sub(run.StartedAt)),
	}
	if err != nil {
		logger.Warn("run finished", append(attrs, slog.String("error", err.Error()))...)
	} else {
		logger.Info("run finished", attrs...)
	}

	return run, err
}
