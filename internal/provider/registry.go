package provider

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/polyglot-flow/internal/config"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/provider/registry"
	"github.com/tjfontaine/polyglot-flow/internal/tokens"
)

// Registry creates instrumented generators from configuration using the
// factories in the registry package. See factory.go for how to add a
// provider.
type Registry struct {
	logger  *slog.Logger
	counter *tokens.Registry
}

// NewRegistry creates a new provider registry and registers the built-in
// provider types.
func NewRegistry(logger *slog.Logger) *Registry {
	RegisterBuiltins()
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger, counter: tokens.NewRegistry()}
}

// CreateGenerator creates an instrumented generator from cfg. Request
// defaults come from gen, with the provider's own model taking precedence
// over the generation-wide one. Errors come from registry.Build.
func (r *Registry) CreateGenerator(cfg config.ProviderConfig, gen config.GenerationConfig) (ports.Generator, error) {
	base, err := registry.Build(cfg)
	if err != nil {
		return nil, err
	}

	defaults := Defaults{
		Model:       gen.Model,
		Temperature: gen.Temperature,
		MaxTokens:   gen.MaxTokens,
		Timeout:     gen.Timeout,
	}
	if cfg.Model != "" && gen.Model == "" {
		defaults.Model = cfg.Model
	}

	return NewDefaultsGenerator(Instrument(base, r.logger, r.counter), defaults), nil
}

// ForConfig returns the generator the flows should use: the provider named
// by generation.provider. An unknown name or type is an error. A provider
// the registry reports as unavailable, typically for lack of an API key,
// yields an Unavailable generator so that listing and describing flows
// still works.
func (r *Registry) ForConfig(cfg *config.Config) (ports.Generator, error) {
	name := cfg.Generation.Provider
	pc, ok := cfg.Provider(name)
	if !ok {
		return nil, fmt.Errorf("generation.provider %q is not a configured provider", name)
	}

	g, err := r.CreateGenerator(pc, cfg.Generation)
	var unavailable *registry.UnavailableError
	switch {
	case errors.As(err, &unavailable):
		r.logger.Warn("provider unavailable",
			slog.String("provider", name),
			slog.String("type", unavailable.Type),
			slog.String("error", unavailable.Reason.Error()))
		return NewUnavailable(name, unavailable.Reason), nil
	case err != nil:
		return nil, err
	}
	return g, nil
}
