package courseplanner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/schema"
	"github.com/tjfontaine/polyglot-flow/internal/testutil"
)

const (
	outlineMarker  = "expert curriculum designer"
	lessonMarker   = "Expand the lesson"
	projectsMarker = "capstone mentor"
)

func newFlow(t *testing.T, gen *testutil.ScriptedGenerator, concurrency int) func(topic string) (map[string]domain.Payload, error) {
	t.Helper()
	p, err := New(Config{Generator: gen, Concurrency: concurrency})
	require.NoError(t, err)
	return func(topic string) (map[string]domain.Payload, error) {
		run, err := p.Run(context.Background(), domain.Payload{"topic": topic})
		if run == nil {
			return nil, err
		}
		return run.Outputs(), err
	}
}

func TestCoursePlanner_ExpandsEachLesson(t *testing.T) {
	gen := testutil.NewScriptedGenerator().
		On(outlineMarker, `{"items":[{"title":"Arrays","description":"Intro to arrays"}]}`).
		On(lessonMarker, "## Learning Objectives\n- arrays").
		On(projectsMarker, "1. Build a dynamic array")

	run := newFlow(t, gen, 1)
	outputs, err := run("Data Structures for Beginners")
	require.NoError(t, err)

	require.Equal(t, 1, gen.CallsContaining(lessonMarker))
	for _, req := range gen.Requests() {
		if strings.Contains(req.Prompt, lessonMarker) {
			assert.Contains(t, req.Prompt, "Arrays")
			assert.Contains(t, req.Prompt, "Data Structures for Beginners")
		}
	}

	expand := outputs[StepExpand]
	assert.False(t, domain.IsDegraded(expand))
	items := expand.Slice("items")
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "Arrays", item["title"])
	assert.Equal(t, "## Learning Objectives\n- arrays", item["content"])

	assert.Equal(t, "1. Build a dynamic array", outputs[StepProjects].String("projects_md"))
	assert.Len(t, outputs, 3)
}

func TestCoursePlanner_OutlineNotJSON(t *testing.T) {
	gen := testutil.NewScriptedGenerator().
		On(outlineMarker, "not json").
		On(projectsMarker, "projects anyway")

	run := newFlow(t, gen, 1)
	outputs, err := run("Go")
	require.NoError(t, err)

	expand := outputs[StepExpand]
	marker, ok := domain.MarkerFrom(expand)
	require.True(t, ok, "expected an error marker on expand")
	assert.Equal(t, domain.KindMalformedPayload, marker.Kind)
	assert.Empty(t, expand.Slice("items"))
	assert.Zero(t, gen.CallsContaining(lessonMarker))

	_, err = schema.Validate(expand, ExpandOutput)
	assert.NoError(t, err, "degraded output should still conform")

	// Projects still runs and is told what is missing
	assert.Equal(t, "projects anyway", outputs[StepProjects].String("projects_md"))
	reqs := gen.Requests()
	last := reqs[len(reqs)-1]
	assert.Contains(t, last.Prompt, "could not be generated: expand")
}

func TestCoursePlanner_OutlineWrongShape(t *testing.T) {
	gen := testutil.NewScriptedGenerator().
		On(outlineMarker, `{"lessons":[{"title":"Arrays"}]}`).
		Otherwise("ok")

	outputs, err := newFlow(t, gen, 1)("Go")
	require.NoError(t, err)

	marker, ok := domain.MarkerFrom(outputs[StepExpand])
	require.True(t, ok)
	assert.Equal(t, domain.KindUpstreamData, marker.Kind)
}

func TestCoursePlanner_LessonFailureIsPerItem(t *testing.T) {
	gen := testutil.NewScriptedGenerator().
		On(outlineMarker, `{"items":[
			{"title":"Arrays","description":"a"},
			{"title":"Trees","description":"t"},
			{"title":"","description":"untitled"},
			{"title":"Graphs","description":"g"}]}`).
		Fail("**Trees**", domain.ErrGeneration("rate limited")).
		On("**Arrays**", "arrays body").
		On("**Graphs**", "graphs body").
		On(projectsMarker, "projects")

	outputs, err := newFlow(t, gen, 3)("Go")
	require.NoError(t, err)

	expand := outputs[StepExpand]
	assert.False(t, domain.IsDegraded(expand), "per-item failures should not degrade the step")

	items := expand.Slice("items")
	require.Len(t, items, 4)
	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = it.(map[string]any)["title"].(string)
	}
	assert.Equal(t, []string{"Arrays", "Trees", "", "Graphs"}, titles)

	arrays := items[0].(map[string]any)
	assert.Equal(t, "arrays body", arrays["content"])
	assert.NotContains(t, arrays, "error")

	trees := domain.Payload(items[1].(map[string]any))
	m, ok := domain.MarkerFrom(trees)
	require.True(t, ok)
	assert.Equal(t, domain.KindGeneration, m.Kind)
	assert.Equal(t, "", trees["content"])

	untitled := domain.Payload(items[2].(map[string]any))
	m, ok = domain.MarkerFrom(untitled)
	require.True(t, ok)
	assert.Equal(t, domain.KindInvalidInputFormat, m.Kind)

	assert.Equal(t, "graphs body", items[3].(map[string]any)["content"])
	assert.Equal(t, 3, gen.CallsContaining(lessonMarker))

	doc := Document("Go").Render(outputs)
	assert.Contains(t, doc, "### Trees\n\n_Lesson unavailable: rate limited_")
	assert.Contains(t, doc, "### Arrays\n\narrays body")
}

func TestCoursePlanner_OutlineGenerationFails(t *testing.T) {
	gen := testutil.NewScriptedGenerator().
		Fail(outlineMarker, errors.New("connection refused"))

	p, err := New(Config{Generator: gen})
	require.NoError(t, err)

	run, err := p.Run(context.Background(), domain.Payload{"topic": "Go"})
	require.Error(t, err)

	var pe *domain.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StepOutline, pe.StepID)
	assert.Equal(t, domain.KindGeneration, pe.Kind)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.False(t, run.Context.Has(StepExpand))
}

func TestCoursePlanner_RequiresTopic(t *testing.T) {
	p, err := New(Config{Generator: testutil.NewScriptedGenerator()})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), domain.Payload{"subject": "Go"})
	assert.True(t, domain.IsKind(err, domain.KindValidation), "got %v", err)
}

func TestCoursePlanner_Deterministic(t *testing.T) {
	gen := testutil.NewScriptedGenerator().
		On(outlineMarker, `{"items":[{"title":"Arrays","description":"a"},{"title":"Lists","description":"l"}]}`).
		On("**Arrays**", "arrays").
		On("**Lists**", "lists").
		On(projectsMarker, "projects")

	run := newFlow(t, gen, 2)
	first, err := run("Go")
	require.NoError(t, err)
	second, err := run("Go")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRender_SectionOrder(t *testing.T) {
	// Inserted in reverse to show declared order wins.
	outputs := map[string]domain.Payload{}
	outputs[StepProjects] = domain.Payload{"projects_md": "- Project A"}
	outputs[StepExpand] = domain.Payload{"topic": "Go", "items": []any{
		map[string]any{"title": "Arrays", "content": "Arrays in depth"},
	}}
	outputs[StepOutline] = domain.Payload{"topic": "Go", "outline": `{"items":[{"title":"Arrays","description":"Intro"}]}`}

	doc := Document("Go").Render(outputs)

	assert.True(t, strings.HasPrefix(doc, "# Course Plan: Go\n"))
	assert.Equal(t, 3, strings.Count(doc, "\n## "))
	iOutline := strings.Index(doc, "## Course Outline")
	iExpand := strings.Index(doc, "## Expanded Lessons")
	iProjects := strings.Index(doc, "## Capstone Project Suggestions")
	assert.True(t, iOutline < iExpand && iExpand < iProjects, doc)
	assert.Contains(t, doc, "### Arrays\n\nIntro")
	assert.Contains(t, doc, "### Arrays\n\nArrays in depth")
	assert.Contains(t, doc, "- Project A")
}

func TestRender_DegradedSections(t *testing.T) {
	outputs := map[string]domain.Payload{
		StepOutline: {"topic": "Go", "outline": "not json"},
		StepExpand:  domain.Degrade(domain.Payload{"topic": "Go", "items": []any{}}, StepExpand, domain.ErrUpstreamData("outline unusable")),
	}

	doc := Document("Go").Render(outputs)

	assert.Contains(t, doc, "## Course Outline\n\n_Section unavailable: payload is not valid JSON_")
	assert.Contains(t, doc, "## Expanded Lessons\n\n_Section unavailable: outline unusable_")
	assert.Contains(t, doc, "## Capstone Project Suggestions\n\n_Section unavailable: step did not run_")
}

func TestLessonRequest_Validate(t *testing.T) {
	assert.NoError(t, LessonRequest{Lesson: "Arrays", Course: "Go"}.Validate())

	err := LessonRequest{Lesson: " ", Course: "Go"}.Validate()
	assert.True(t, domain.IsKind(err, domain.KindInvalidInputFormat))

	var pe *domain.PipelineError
	require.ErrorAs(t, LessonRequest{}.Validate(), &pe)
	assert.Equal(t, "lesson", pe.Field)
	assert.Contains(t, pe.Message, "lesson and course")
}
