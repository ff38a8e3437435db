package pipeline

import (
	"fmt"
	"time"

	"github.com/tjfontaine/polyglot-flow/internal/config"
	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/schema"
)

// Step types accepted in configuration.
const (
	StepTypePrompt  = "prompt"
	StepTypeWebhook = "webhook"
)

const defaultWebhookTimeout = 5 * time.Second

// NewFromConfig builds a pipeline declared in configuration. Prompt steps
// use gen; it may be nil when the pipeline only has webhook steps.
func NewFromConfig(cfg config.PipelineConfig, gen ports.Generator, opts ...Option) (*Pipeline, error) {
	if len(cfg.Steps) == 0 {
		return nil, fmt.Errorf("pipeline %s: no steps configured", cfg.ID)
	}

	steps := make([]ports.Step, 0, len(cfg.Steps))
	for _, stepCfg := range cfg.Steps {
		step, err := newStepFromConfig(stepCfg, gen)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: step %s: %w", cfg.ID, stepCfg.ID, err)
		}
		steps = append(steps, step)
	}

	if len(cfg.Params) > 0 {
		opts = append([]Option{WithParamsSchema(schema.New(cfg.ID+".params", cfg.Params...))}, opts...)
	}
	return New(cfg.ID, cfg.Description, steps, opts...)
}

func newStepFromConfig(cfg config.StepConfig, gen ports.Generator) (ports.Step, error) {
	var output *schema.Schema
	if len(cfg.Output) > 0 {
		output = schema.New(cfg.ID, cfg.Output...)
		if _, reserved := output.Lookup(domain.MarkerKey); reserved {
			return nil, fmt.Errorf("output field %q is reserved for error markers", domain.MarkerKey)
		}
	}

	switch cfg.Type {
	case StepTypePrompt:
		if gen == nil {
			return nil, fmt.Errorf("prompt steps need a generation provider")
		}
		return NewPromptStep(PromptStepConfig{
			ID:          cfg.ID,
			Description: cfg.Description,
			Prompt:      cfg.Prompt,
			System:      cfg.System,
			Mode:        cfg.Mode,
			Model:       cfg.Model,
			Requires:    cfg.Requires,
			Required:    cfg.Required,
			Output:      output,
			Generator:   gen,
		})

	case StepTypeWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("webhook url is required")
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultWebhookTimeout
		}

		onError := cfg.OnError
		switch onError {
		case "", OnErrorDegrade:
			onError = OnErrorDegrade
		case OnErrorFail:
		default:
			return nil, fmt.Errorf("invalid on_error %q (must be 'degrade' or 'fail')", cfg.OnError)
		}

		return NewWebhookStep(WebhookStepConfig{
			ID:          cfg.ID,
			Description: cfg.Description,
			URL:         cfg.URL,
			Timeout:     timeout,
			OnError:     onError,
			Retries:     cfg.Retries,
			Headers:     cfg.Headers,
			Requires:    cfg.Requires,
			Output:      output,
		}), nil

	default:
		return nil, fmt.Errorf("invalid type %q (must be 'prompt' or 'webhook')", cfg.Type)
	}
}
