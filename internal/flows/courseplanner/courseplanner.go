// Package courseplanner builds the course planning flow: a structured
// outline, one expansion per lesson, then capstone project suggestions.
package courseplanner

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
	PipelineID   = "course_planner_flow"
	StepOutline  = "outline"
	StepExpand   = "expand"
	StepProjects = "projects"

	// Artifact is the file the rendered plan is written to.
	Artifact = "course_plan.md"
)

var (
	// ParamsSchema is the run input.
	ParamsSchema = schema.New("course_input",
		schema.String("topic", true).Describe("Course topic, e.g. Data Structures for Beginners"))

	lessonField = schema.Object("", true,
		schema.String("title", true).Describe("The title of the lesson"),
		schema.String("description", true).Describe("A brief description of what the lesson covers"),
	)

	// OutlineSchema is the shape the outline text must parse into.
	OutlineSchema = schema.New("course_outline",
		schema.Array("items", true, lessonField).Describe("A list of lessons for the course outline"))

	// OutlineOutput holds the outline as raw generated text; parsing happens
	// in the expand step.
	OutlineOutput = schema.New("outline",
		schema.String("topic", true),
		schema.String("outline", true))

	expandedItem = schema.Object("", true,
		schema.String("title", true),
		schema.String("content", true),
		schema.Any("error", false),
	)

	ExpandOutput = schema.New("expand",
		schema.String("topic", true),
		schema.Array("items", true, expandedItem))

	ProjectsOutput = schema.New("projects",
		schema.String("projects_md", true))
)

// Config configures the flow.
type Config struct {
	Generator ports.Generator
	// Concurrency bounds parallel lesson expansions. Values below 1 expand
	// lessons one at a time.
	Concurrency int
	Model       string
	Temperature *float32
	MaxTokens   int
}

type flow struct {
	cfg Config
}

// New builds the course planner pipeline.
func New(cfg Config, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("%s: generator is required", PipelineID)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	f := &flow{cfg: cfg}

	steps := []ports.Step{
		pipeline.NewStep(StepOutline, "Generate a course outline.",
			ParamsSchema, OutlineOutput, f.outline, pipeline.Required()),
		pipeline.NewStep(StepExpand, "Expand all lessons from the outline.",
			ParamsSchema, ExpandOutput, f.expand, pipeline.Requires(StepOutline)),
		pipeline.NewStep(StepProjects, "Suggest final capstone projects.",
			ParamsSchema, ProjectsOutput, f.projects, pipeline.Requires(StepOutline, StepExpand)),
	}

	opts = append([]pipeline.Option{pipeline.WithParamsSchema(ParamsSchema)}, opts...)
	return pipeline.New(PipelineID, "Course planning: outline, lesson expansion and capstone projects", steps, opts...)
}

func (f *flow) request(prompt string) *domain.GenerationRequest {
	return &domain.GenerationRequest{
		Prompt:      prompt,
		Model:       f.cfg.Model,
		Temperature: f.cfg.Temperature,
		MaxTokens:   f.cfg.MaxTokens,
	}
}

func (f *flow) outline(ctx context.Context, in *ports.StepInput) (domain.Payload, error) {
	topic := in.Params.String("topic")

	req := f.request(fmt.Sprintf(outlinePrompt, topic))
	req.Schema = OutlineSchema.JSONSchema()
	req.SchemaName = OutlineSchema.Name

	resp, err := f.cfg.Generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return domain.Payload{"topic": topic, "outline": resp.Text}, nil
}

func (f *flow) expand(ctx context.Context, in *ports.StepInput) (domain.Payload, error) {
	topic := in.Params.String("topic")
	empty := domain.Payload{"topic": topic, "items": []any{}}

	outline := in.Dep(StepOutline)
	if m, ok := domain.MarkerFrom(outline); ok {
		return domain.Degrade(empty, StepExpand, domain.ErrUpstreamData("outline unavailable: "+m.Message)), nil
	}
	lessons, err := ParseOutline(outline.String("outline"))
	if err != nil {
		return domain.Degrade(empty, StepExpand, err), nil
	}

	results := pipeline.FanOut(ctx, f.cfg.Concurrency, lessons, func(ctx context.Context, _ int, l Lesson) (string, error) {
		return f.expandLesson(ctx, LessonRequest{Lesson: l.Title, Course: topic})
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := make([]any, len(lessons))
	for i, r := range results {
		item := map[string]any{"title": lessons[i].Title, "content": r.Value}
		if r.Err != nil {
			item["content"] = ""
			item["error"] = domain.MarkerFor(StepExpand, r.Err).Map()
		}
		items[i] = item
	}
	return domain.Payload{"topic": topic, "items": items}, nil
}

func (f *flow) expandLesson(ctx context.Context, lr LessonRequest) (string, error) {
	if err := lr.Validate(); err != nil {
		return "", err
	}
	resp, err := f.cfg.Generator.Generate(ctx, f.request(fmt.Sprintf(lessonPrompt, lr.Lesson, lr.Course)))
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (f *flow) projects(ctx context.Context, in *ports.StepInput) (domain.Payload, error) {
	topic := in.Params.String("topic")

	prompt := fmt.Sprintf(projectsPrompt, topic)
	if missing := unavailable(in.Deps, StepOutline, StepExpand); len(missing) > 0 {
		prompt += fmt.Sprintf(missingNote, strings.Join(missing, ", "))
	}

	resp, err := f.cfg.Generator.Generate(ctx, f.request(prompt))
	if err != nil {
		return nil, err
	}
	return domain.Payload{"projects_md": resp.Text}, nil
}

// unavailable lists the given deps that carry an error marker.
func unavailable(deps map[string]domain.Payload, ids ...string) []string {
	var out []string
	for _, id := range ids {
		if domain.IsDegraded(deps[id]) {
			out = append(out, id)
		}
	}
	return out
}
