// Package config loads polyglot-flow configuration from a YAML file and
// FLOW_-prefixed environment variables.
package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/polyglot-flow/internal/schema"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes every environment override, e.g. FLOW_SERVER__PORT.
const EnvPrefix = "FLOW_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Providers  []ProviderConfig `koanf:"providers"`
	Generation GenerationConfig `koanf:"generation"`
	Output     OutputConfig     `koanf:"output"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Pipelines  []PipelineConfig `koanf:"pipelines"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // memory, sqlite, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type ProviderConfig struct {
	Name    string `koanf:"name"`
	Type    string `koanf:"type"` // openai, anthropic
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"` // Optional: default model for this provider
}

// GenerationConfig controls how flows call their generator.
type GenerationConfig struct {
	Provider    string        `koanf:"provider"` // Name of the provider used by the built-in flows
	Model       string        `koanf:"model"`
	Temperature *float32      `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
	Concurrency int           `koanf:"concurrency"` // Bound on parallel calls inside one step
	Timeout     time.Duration `koanf:"timeout"`     // Per-call timeout
}

type OutputConfig struct {
	Dir string `koanf:"dir"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

// PipelineConfig declares an additional pipeline built from prompt and webhook steps.
type PipelineConfig struct {
	ID          string         `koanf:"id"`
	Description string         `koanf:"description"`
	Params      []schema.Field `koanf:"params"`
	Steps       []StepConfig   `koanf:"steps"`
}

// StepConfig declares one step of a configured pipeline.
type StepConfig struct {
	ID          string         `koanf:"id"`
	Type        string         `koanf:"type"` // prompt, webhook
	Description string         `koanf:"description"`
	Requires    []string       `koanf:"requires"`
	Required    bool           `koanf:"required"`
	Output      []schema.Field `koanf:"output"`

	// prompt steps
	Prompt string `koanf:"prompt"` // text/template over .params and .deps
	System string `koanf:"system"`
	Mode   string `koanf:"mode"` // text (default) or structured
	Model  string `koanf:"model"`

	// webhook steps
	URL     string            `koanf:"url"`
	Timeout time.Duration     `koanf:"timeout"`
	Retries int               `koanf:"retries"`
	Headers map[string]string `koanf:"headers"`
	OnError string            `koanf:"on_error"` // degrade (default) or fail
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (DefaultPath when empty), then applies environment
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Environment variables override the file; "__" separates nesting levels
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = defaultProviders()
	}
	for i := range cfg.Providers {
		cfg.Providers[i].APIKey = substituteEnvVars(cfg.Providers[i].APIKey)
		cfg.Providers[i].BaseURL = substituteEnvVars(cfg.Providers[i].BaseURL)
	}
	for i := range cfg.Pipelines {
		for j := range cfg.Pipelines[i].Steps {
			step := &cfg.Pipelines[i].Steps[j]
			step.URL = substituteEnvVars(step.URL)
			for name, v := range step.Headers {
				step.Headers[name] = substituteEnvVars(v)
			}
		}
	}

	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":            8080,
		"server.request_timeout": "5m",
		"storage.type":           "memory",
		"storage.sqlite.path":    "./data/flow.db",
		"generation.provider":    "openai",
		"generation.max_tokens":  4096,
		"generation.concurrency": 4,
		"generation.timeout":     "2m",
		"output.dir":             ".",
	}
	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}
}

func defaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Name: "openai", Type: "openai", APIKey: "${OPENAI_API_KEY}", Model: "gpt-4o"},
		{Name: "anthropic", Type: "anthropic", APIKey: "${ANTHROPIC_API_KEY}", Model: "claude-sonnet-4-20250514"},
	}
}

// Provider returns the provider config named name.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
