package manim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/testutil"
)

func TestManim_StripsFences(t *testing.T) {
	gen := testutil.NewScriptedGenerator().
		Otherwise(`{"code": "` + "```python\\nfrom manim import *\\n\\nclass Cat(Scene):\\n    pass\\n```" + `"}`)

	p, err := New(Config{Generator: gen})
	require.NoError(t, err)

	run, err := p.Run(context.Background(), domain.Payload{"prompt": "a cat"})
	require.NoError(t, err)

	assert.Equal(t, "from manim import *\n\nclass Cat(Scene):\n    pass\n", Render(run))

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, `"a cat"`)
	assert.True(t, reqs[0].Structured())
	assert.Equal(t, "manim_code", reqs[0].SchemaName)
}

func TestManim_BadStructuredOutputFailsRun(t *testing.T) {
	gen := testutil.NewScriptedGenerator().Otherwise("here is your code: print(1)")

	p, err := New(Config{Generator: gen})
	require.NoError(t, err)

	run, err := p.Run(context.Background(), domain.Payload{"prompt": "a cat"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindGeneration))
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, Render(run), "# manim code unavailable:")
}

func TestManim_RequiresPrompt(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	p, err := New(Config{Generator: testutil.NewScriptedGenerator()})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), domain.Payload{"topic": "cats"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}
