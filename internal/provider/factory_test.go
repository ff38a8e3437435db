package provider_test

import (
	"errors"
	"testing"

	"github.com/tjfontaine/polyglot-flow/internal/config"
	"github.com/tjfontaine/polyglot-flow/internal/provider"
	"github.com/tjfontaine/polyglot-flow/internal/provider/registry"
)

func TestRegisterBuiltins(t *testing.T) {
	provider.RegisterBuiltins()

	typeSet := make(map[string]bool)
	for _, tp := range registry.Types() {
		typeSet[tp] = true
	}
	for _, exp := range []string{"anthropic", "openai", "openai-compatible"} {
		if !typeSet[exp] {
			t.Errorf("expected provider type %q to be registered", exp)
		}
	}

	for _, f := range registry.Factories() {
		if f.Describe == "" {
			t.Errorf("factory %q has empty Describe", f.Type)
		}
		if f.Validate == nil {
			t.Errorf("factory %q has no Validate", f.Type)
		}
	}
}

func TestRegisterBuiltins_Idempotent(t *testing.T) {
	provider.RegisterBuiltins()
	before := len(registry.Factories())
	provider.RegisterBuiltins()
	if after := len(registry.Factories()); after != before {
		t.Errorf("factories = %d after second registration, want %d", after, before)
	}
}

func TestBuild_Builtins(t *testing.T) {
	provider.RegisterBuiltins()

	tests := []struct {
		name            string
		cfg             config.ProviderConfig
		wantUnavailable bool
		wantUnknown     bool
	}{
		{name: "openai with key", cfg: config.ProviderConfig{Name: "o", Type: "openai", APIKey: "k"}},
		{name: "openai without key", cfg: config.ProviderConfig{Name: "o", Type: "openai"}, wantUnavailable: true},
		{name: "compatible without key", cfg: config.ProviderConfig{Name: "c", Type: "openai-compatible", BaseURL: "http://localhost/v1"}},
		{name: "compatible without url", cfg: config.ProviderConfig{Name: "c", Type: "openai-compatible"}, wantUnavailable: true},
		{name: "anthropic without key", cfg: config.ProviderConfig{Name: "a", Type: "anthropic"}, wantUnavailable: true},
		{name: "unknown type", cfg: config.ProviderConfig{Name: "x", Type: "gemini", APIKey: "k"}, wantUnknown: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := registry.Build(tt.cfg)

			var unavailable *registry.UnavailableError
			if got := errors.As(err, &unavailable); got != tt.wantUnavailable {
				t.Errorf("Build() error = %v, want unavailable %v", err, tt.wantUnavailable)
			}
			if got := errors.Is(err, registry.ErrUnknownType); got != tt.wantUnknown {
				t.Errorf("Build() error = %v, want unknown type %v", err, tt.wantUnknown)
			}
			if err == nil && g.Name() != tt.cfg.Name {
				t.Errorf("Name() = %q, want %q", g.Name(), tt.cfg.Name)
			}
		})
	}
}
