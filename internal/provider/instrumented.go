package provider

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/tokens"
)

const tracerName = "github.com/tjfontaine/polyglot-flow/internal/provider"

// InstrumentedGenerator traces and logs every call and fills token usage
// the provider did not report.
type InstrumentedGenerator struct {
	inner   ports.Generator
	logger  *slog.Logger
	tracer  trace.Tracer
	counter *tokens.Registry
}

// Instrument wraps inner. A nil logger or counter uses the defaults.
func Instrument(inner ports.Generator, logger *slog.Logger, counter *tokens.Registry) *InstrumentedGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	if counter == nil {
		counter = tokens.NewRegistry()
	}
	return &InstrumentedGenerator{
		inner:   inner,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
		counter: counter,
	}
}

func (g *InstrumentedGenerator) Name() string {
	return g.inner.Name()
}

func (g *InstrumentedGenerator) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResponse, error) {
	ctx, span := g.tracer.Start(ctx, "generate "+g.inner.Name(), trace.WithAttributes(
		attribute.String("gen_ai.system", g.inner.Name()),
		attribute.String("gen_ai.request.model", req.Model),
		attribute.Bool("flow.structured", req.Structured()),
	))
	defer span.End()

	start := time.Now()
	resp, err := g.inner.Generate(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("generation failed",
			slog.String("provider", g.inner.Name()),
			slog.String("model", req.Model),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()))
		return nil, err
	}

	estimated := g.counter.FillUsage(req, resp)
	span.SetAttributes(
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.Int("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
	)
	g.logger.Debug("generation completed",
		slog.String("provider", g.inner.Name()),
		slog.String("model", resp.Model),
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
		slog.Bool("usage_estimated", estimated),
		slog.Duration("duration", elapsed))
	return resp, nil
}
