package openai

import (
	"fmt"

	"github.com/tjfontaine/polyglot-flow/internal/config"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/provider/registry"
)

// ProviderType is the provider type identifier used in configuration.
const ProviderType = "openai"

// ProviderTypeCompatible is the provider type for OpenAI-compatible APIs.
const ProviderTypeCompatible = "openai-compatible"

// RegisterProviderFactory registers the openai and openai-compatible types.
func RegisterProviderFactory() {
	registry.Register(registry.Factory{
		Type:     ProviderType,
		Describe: "OpenAI Chat Completions API",
		Validate: ValidateConfig,
		Create:   CreateFromConfig,
	})
	registry.Register(registry.Factory{
		Type:     ProviderTypeCompatible,
		Describe: "OpenAI-compatible Chat Completions API (local or hosted)",
		Validate: ValidateCompatibleConfig,
		Create:   CreateFromConfig,
	})
}

// CreateFromConfig creates a new OpenAI provider from configuration.
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

// ValidateConfig requires an API key for the hosted API.
func ValidateConfig(cfg config.ProviderConfig) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("provider %q: api_key is required", cfg.Name)
	}
	return nil
}

// ValidateCompatibleConfig requires a base URL. The API key is optional since
// some local models don't need one.
func ValidateCompatibleConfig(cfg config.ProviderConfig) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("provider %q: base_url is required for %s", cfg.Name, ProviderTypeCompatible)
	}
	return nil
}
