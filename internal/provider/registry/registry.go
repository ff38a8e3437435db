// Package registry maps provider types from configuration to the factories
// that build generators for them.
//
// Provider packages register themselves through an explicit function rather
// than init(), for example:
//
//	func RegisterProviderFactory() {
//	    registry.Register(registry.Factory{
//	        Type:     ProviderType,
//	        Describe: "Google Gemini API",
//	        Validate: ValidateConfig,
//	        Create:   CreateFromConfig,
//	    })
//	}
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/tjfontaine/polyglot-flow/internal/config"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
)

// ErrUnknownType is returned by Build for a provider type nobody registered.
var ErrUnknownType = errors.New("unknown provider type")

// Factory builds generators for one provider type.
type Factory struct {
	// Type matches config.ProviderConfig.Type, e.g. "openai".
	Type     string
	Describe string

	// Validate rejects configurations the generator cannot run with, such
	// as a missing API key. Optional.
	Validate func(cfg config.ProviderConfig) error
	Create   func(cfg config.ProviderConfig) (ports.Generator, error)
}

// UnavailableError reports a known provider type whose configuration
// cannot produce a working generator.
type UnavailableError struct {
	Provider string
	Type     string
	Reason   error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider %q (%s) unavailable: %v", e.Provider, e.Type, e.Reason)
}

func (e *UnavailableError) Unwrap() error {
	return e.Reason
}

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds f unless its type is already taken, and reports whether it
// was added. Registering a factory without a type or Create panics.
func Register(f Factory) bool {
	if f.Type == "" {
		panic("provider factory type cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("provider factory %q must have a Create function", f.Type))
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[f.Type]; exists {
		return false
	}
	factories[f.Type] = f
	return true
}

// Lookup returns the factory registered for providerType.
func Lookup(providerType string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[providerType]
	return f, ok
}

// Factories returns the registered factories sorted by type.
func Factories() []Factory {
	mu.RLock()
	out := make([]Factory, 0, len(factories))
	for _, f := range factories {
		out = append(out, f)
	}
	mu.RUnlock()

	slices.SortFunc(out, func(a, b Factory) int {
		switch {
		case a.Type < b.Type:
			return -1
		case a.Type > b.Type:
			return 1
		}
		return 0
	})
	return out
}

// Types returns the registered provider types in sorted order.
func Types() []string {
	fs := Factories()
	types := make([]string, len(fs))
	for i, f := range fs {
		types[i] = f.Type
	}
	return types
}

// Build creates the generator for cfg. An unregistered type wraps
// ErrUnknownType. A configuration the factory rejects, or fails to build,
// comes back as *UnavailableError.
func Build(cfg config.ProviderConfig) (ports.Generator, error) {
	f, ok := Lookup(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("provider %q: %w %q (registered types: %v)", cfg.Name, ErrUnknownType, cfg.Type, Types())
	}
	if f.Validate != nil {
		if err := f.Validate(cfg); err != nil {
			return nil, &UnavailableError{Provider: cfg.Name, Type: cfg.Type, Reason: err}
		}
	}
	g, err := f.Create(cfg)
	if err != nil {
		return nil, &UnavailableError{Provider: cfg.Name, Type: cfg.Type, Reason: err}
	}
	return g, nil
}
