package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

func TestDocument_RenderOrder(t *testing.T) {
	doc := Document{
		Title: "Plan",
		Sections: []Section{
			{StepID: "outline", Heading: "Outline"},
			{StepID: "expand", Heading: "Expanded"},
			{StepID: "projects", Heading: "Projects"},
		},
	}

	// Built in reverse so map and insertion order disagree with declared order.
	outputs := map[string]domain.Payload{}
	outputs["projects"] = domain.Payload{"text": "P"}
	outputs["expand"] = domain.Payload{"text": "E"}
	outputs["outline"] = domain.Payload{"text": "O"}

	got := doc.Render(outputs)

	assert.True(t, strings.HasPrefix(got, "# Plan\n"))
	assert.Equal(t, 3, strings.Count(got, "\n## "))
	iO := strings.Index(got, "## Outline")
	iE := strings.Index(got, "## Expanded")
	iP := strings.Index(got, "## Projects")
	require.True(t, iO >= 0 && iE >= 0 && iP >= 0, got)
	assert.Less(t, iO, iE)
	assert.Less(t, iE, iP)
}

func TestDocument_RenderUnavailable(t *testing.T) {
	doc := Generic("Run", []string{"a", "b", "c"})
	outputs := map[string]domain.Payload{
		"a": {"text": "fine"},
		"b": domain.Degrade(domain.Payload{"text": ""}, "b", domain.ErrGeneration("rate limited")),
	}

	got := doc.Render(outputs)

	assert.Contains(t, got, "## a\n\nfine\n")
	assert.Contains(t, got, "## b\n\n_Section unavailable: rate limited_")
	assert.Contains(t, got, "## c\n\n_Section unavailable: step did not run_")
}

func TestDefault(t *testing.T) {
	assert.Equal(t, "hello", Default(domain.Payload{"text": "hello"}))

	got := Default(domain.Payload{"score": 3})
	assert.True(t, strings.HasPrefix(got, "```json\n"))
	assert.Contains(t, got, `"score": 3`)
}
