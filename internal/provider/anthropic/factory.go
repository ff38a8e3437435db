package anthropic

import (
	"fmt"

	"github.com/tjfontaine/polyglot-flow/internal/config"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/provider/registry"
)

// ProviderType is the provider type identifier used in configuration.
const ProviderType = "anthropic"

// RegisterProviderFactory registers the anthropic provider type.
func RegisterProviderFactory() {
	registry.Register(registry.Factory{
		Type:     ProviderType,
		Describe: "Anthropic Messages API (Claude models)",
		Validate: ValidateConfig,
		Create:   CreateFromConfig,
	})
}

// CreateFromConfig creates a new Anthropic provider from configuration.
func CreateFromConfig(cfg config.ProviderConfig) (ports.Generator, error) {
	var opts []ProviderOption
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.Name != "" {
		opts = append(opts, WithName(cfg.Name))
	}
	return New(cfg.APIKey, opts...), nil
}

// ValidateConfig validates the provider configuration.
func ValidateConfig(cfg config.ProviderConfig) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("provider %q: api_key is required", cfg.Name)
	}
	return nil
}
