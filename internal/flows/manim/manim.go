// Package manim builds a single-step flow that generates a Manim animation
// script from a prompt.
package manim

import (
	"context"
	"fmt"
	"strings"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/pipeline"
	"github.com/tjfontaine/polyglot-flow/internal/schema"
)

const (
	PipelineID = "manim_flow"
	StepManim  = "manim"
	Artifact   = "manim_animation.py"
)

var (
	ParamsSchema = schema.New("manim_input",
		schema.String("prompt", true).Describe("What the animation should show, e.g. a circle turning into a square"))

	// CodeSchema constrains the generator's structured output.
	CodeSchema = schema.New("manim_code",
		schema.String("code", true).Describe("Complete Python source using the manim library"))
)

const codePrompt = `You are a Manim animation expert.
Return a Python animation code that corresponds to this prompt: "%s"

Respond ONLY using the structured format provided.`

// Config configures the flow.
type Config struct {
	Generator   ports.Generator
	Model       string
	Temperature *float32
	MaxTokens   int
}

// New builds the manim pipeline.
func New(cfg Config, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("%s: generator is required", PipelineID)
	}

	generate := func(ctx context.Context, in *ports.StepInput) (domain.Payload, error) {
		resp, err := cfg.Generator.Generate(ctx, &domain.GenerationRequest{
			Prompt:      fmt.Sprintf(codePrompt, in.Params.String("prompt")),
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Schema:      CodeSchema.JSONSchema(),
			SchemaName:  CodeSchema.Name,
		})
		if err != nil {
			return nil, err
		}

		out, err := schema.DecodeInto([]byte(resp.Text), CodeSchema)
		if err != nil {
			return nil, domain.ErrGeneration("code output rejected").WithErr(err)
		}
		return domain.Payload{"code": schema.StripFences(out.String("code"))}, nil
	}

	steps := []ports.Step{
		pipeline.NewStep(StepManim, "Generates manim animation code for a given prompt.",
			ParamsSchema, CodeSchema, generate, pipeline.Required()),
	}
	opts = append([]pipeline.Option{pipeline.WithParamsSchema(ParamsSchema)}, opts...)
	return pipeline.New(PipelineID, "Manim animation generator", steps, opts...)
}

// Render returns the generated script, or a commented note when the step
// produced nothing usable.
func Render(run *pipeline.Run) string {
	out, err := run.Context.Get(StepManim)
	if err != nil {
		return "# manim code unavailable: step did not run\n"
	}
	if m, ok := domain.MarkerFrom(out); ok {
		return fmt.Sprintf("# manim code unavailable: %s\n", m.Message)
	}
	return strings.TrimSpace(out.String("code")) + "\n"
}
