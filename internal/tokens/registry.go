// Package tokens counts prompt and completion tokens for providers that do
// not report usage.
package tokens

import (
	"strings"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

// Counter counts tokens in text for the models it supports.
type Counter interface {
	SupportsModel(model string) bool
	CountText(model, text string) (int, error)
}

// Registry picks a Counter per model and falls back to an Estimator.
type Registry struct {
	counters []Counter
	fallback *Estimator
}

// NewRegistry creates a registry with the tiktoken counter registered.
func NewRegistry() *Registry {
	r := &Registry{fallback: NewEstimator()}
	r.Register(NewOpenAICounter())
	return r
}

// Register adds a counter. Earlier registrations win.
func (r *Registry) Register(c Counter) {
	r.counters = append(r.counters, c)
}

// CountText counts text for model. estimated is true when no exact counter
// supports the model.
func (r *Registry) CountText(model, text string) (n int, estimated bool) {
	for _, c := range r.counters {
		if !c.SupportsModel(model) {
			continue
		}
		if n, err := c.CountText(model, text); err == nil {
			return n, false
		}
		break
	}
	return r.fallback.Count(text), true
}

// FillUsage sets zero usage fields on resp by counting req's prompt and
// resp's text. It reports whether any field was estimated.
func (r *Registry) FillUsage(req *domain.GenerationRequest, resp *domain.GenerationResponse) bool {
	model := resp.Model
	if model == "" {
		model = req.Model
	}
	estimated := false
	if resp.Usage.InputTokens == 0 {
		in, e1 := r.CountText(model, req.System)
		p, e2 := r.CountText(model, req.Prompt)
		resp.Usage.InputTokens = in + p
		estimated = estimated || e1 || e2
	}
	if resp.Usage.OutputTokens == 0 && resp.Text != "" {
		out, e := r.CountText(model, resp.Text)
		resp.Usage.OutputTokens = out
		estimated = estimated || e
	}
	return estimated
}

// Estimator approximates token counts from character length.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

// Count estimates the tokens in text.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	n := int(float64(len(text)) / e.CharsPerToken)
	if n == 0 {
		n = 1
	}
	return n
}

// ModelMatcher helps match model names to provider patterns.
type ModelMatcher struct {
	prefixes []string
	exact    []string
}

// NewModelMatcher creates a new model matcher.
func NewModelMatcher(prefixes, exact []string) *ModelMatcher {
	return &ModelMatcher{prefixes: prefixes, exact: exact}
}

// Matches returns true if the model matches any pattern.
func (m *ModelMatcher) Matches(model string) bool {
	for _, e := range m.exact {
		if model == e {
			return true
		}
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
