package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

type rule struct {
	contains string
	text     string
	err      error
}

// ScriptedGenerator is a deterministic ports.Generator for tests. Responses
// are chosen by the first rule whose substring appears in the prompt.
type ScriptedGenerator struct {
	mu       sync.Mutex
	rules    []rule
	fallback *rule
	requests []*domain.GenerationRequest
}

// NewScriptedGenerator creates a generator with no rules.
func NewScriptedGenerator() *ScriptedGenerator {
	return &ScriptedGenerator{}
}

// On answers prompts containing substr with text.
func (g *ScriptedGenerator) On(substr, text string) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules = append(g.rules, rule{contains: substr, text: text})
	return g
}

// Fail answers prompts containing substr with err.
func (g *ScriptedGenerator) Fail(substr string, err error) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules = append(g.rules, rule{contains: substr, err: err})
	return g
}

// Otherwise answers every unmatched prompt with text.
func (g *ScriptedGenerator) Otherwise(text string) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fallback = &rule{text: text}
	return g
}

func (g *ScriptedGenerator) Name() string { return "scripted" }

// Generate implements ports.Generator.
func (g *ScriptedGenerator) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.requests = append(g.requests, req)
	var match *rule
	for i := range g.rules {
		if strings.Contains(req.Prompt, g.rules[i].contains) {
			match = &g.rules[i]
			break
		}
	}
	if match == nil {
		match = g.fallback
	}
	g.mu.Unlock()

	if match == nil {
		return nil, domain.ErrGeneration("no scripted response for prompt").WithCode("unscripted")
	}
	if match.err != nil {
		return nil, match.err
	}
	return &domain.GenerationResponse{
		Text:     match.text,
		Model:    req.Model,
		Provider: "scripted",
	}, nil
}

// Requests returns every request received, in arrival order.
func (g *ScriptedGenerator) Requests() []*domain.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*domain.GenerationRequest(nil), g.requests...)
}

// CallsContaining counts requests whose prompt contains substr.
func (g *ScriptedGenerator) CallsContaining(substr string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, r := range g.requests {
		if strings.Contains(r.Prompt, substr) {
			n++
		}
	}
	return n
}
