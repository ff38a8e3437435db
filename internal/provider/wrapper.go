package provider

import (
	"context"
	"time"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
)

// Defaults are applied to requests that leave the corresponding field unset.
type Defaults struct {
	Model       string
	Temperature *float32
	MaxTokens   int
	// Timeout bounds each call. Zero means no per-call bound.
	Timeout time.Duration
}

// DefaultsGenerator wraps a generator and fills unset request fields.
type DefaultsGenerator struct {
	inner    ports.Generator
	defaults Defaults
}

// NewDefaultsGenerator creates a new DefaultsGenerator.
func NewDefaultsGenerator(inner ports.Generator, defaults Defaults) *DefaultsGenerator {
	return &DefaultsGenerator{inner: inner, defaults: defaults}
}

func (g *DefaultsGenerator) Name() string {
	return g.inner.Name()
}

func (g *DefaultsGenerator) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResponse, error) {
	// Clone request to avoid side effects
	newReq := *req
	if newReq.Model == "" {
		newReq.Model = g.defaults.Model
	}
	if newReq.Temperature == nil {
		newReq.Temperature = g.defaults.Temperature
	}
	if newReq.MaxTokens == 0 {
		newReq.MaxTokens = g.defaults.MaxTokens
	}

	if g.defaults.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.defaults.Timeout)
		defer cancel()
	}
	return g.inner.Generate(ctx, &newReq)
}

// Unavailable is a generator that always fails. It stands in for a
// provider that could not be built so that flows can still be listed and
// described without credentials.
type Unavailable struct {
	name   string
	reason error
}

// NewUnavailable creates a generator that reports reason on every call.
func NewUnavailable(name string, reason error) *Unavailable {
	return &Unavailable{name: name, reason: reason}
}

func (u *Unavailable) Name() string {
	return u.name
}

func (u *Unavailable) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResponse, error) {
	return nil, domain.ErrGeneration("provider " + u.name + " unavailable").
		WithCode(domain.CodeInvalidAPIKey).
		WithErr(u.reason)
}
