package pipeline

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/schema"
)

// Prompt step modes.
const (
	ModeText       = "text"
	ModeStructured = "structured"
)

// textOutput is the output schema of a text-mode prompt step.
var textOutput = schema.New("text", schema.String("text", true))

// PromptStepConfig configures a prompt step.
type PromptStepConfig struct {
	ID          string
	Description string
	Prompt      string // text/template over .params and .deps
	System      string
	Mode        string
	Model       string
	Temperature *float32
	MaxTokens   int
	Requires    []string
	Required    bool
	Output      *schema.Schema // structured mode only
	Generator   ports.Generator
}

// PromptStep renders a prompt from run parameters and dependency outputs and
// sends it to a Generator.
type PromptStep struct {
	cfg    PromptStepConfig
	tmpl   *template.Template
	output *schema.Schema
}

// NewPromptStep parses the prompt template and creates the step.
func NewPromptStep(cfg PromptStepConfig) (*PromptStep, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("prompt step %s: generator is required", cfg.ID)
	}
	if strings.TrimSpace(cfg.Prompt) == "" {
		return nil, fmt.Errorf("prompt step %s: prompt cannot be empty", cfg.ID)
	}

	tmpl, err := template.New(cfg.ID).Option("missingkey=zero").Parse(cfg.Prompt)
	if err != nil {
		return nil, fmt.Errorf("prompt step %s: parse template: %w", cfg.ID, err)
	}

	s := &PromptStep{cfg: cfg, tmpl: tmpl}
	switch cfg.Mode {
	case "", ModeText:
		s.cfg.Mode = ModeText
		s.output = textOutput
	case ModeStructured:
		if cfg.Output == nil || len(cfg.Output.Fields) == 0 {
			return nil, fmt.Errorf("prompt step %s: structured mode needs an output schema", cfg.ID)
		}
		s.output = cfg.Output
	default:
		return nil, fmt.Errorf("prompt step %s: invalid mode %q (must be 'text' or 'structured')", cfg.ID, cfg.Mode)
	}
	return s, nil
}

func (s *PromptStep) ID() string                   { return s.cfg.ID }
func (s *PromptStep) Description() string          { return s.cfg.Description }
func (s *PromptStep) InputSchema() *schema.Schema  { return nil }
func (s *PromptStep) OutputSchema() *schema.Schema { return s.output }
func (s *PromptStep) Requires() []string           { return s.cfg.Requires }
func (s *PromptStep) Required() bool               { return s.cfg.Required }

// Run renders the prompt and calls the generator.
func (s *PromptStep) Run(ctx context.Context, in *ports.StepInput) (domain.Payload, error) {
	var prompt strings.Builder
	data := map[string]any{
		"params": map[string]any(in.Params),
		"deps":   toAnyMap(in.Deps),
	}
	if err := s.tmpl.Execute(&prompt, data); err != nil {
		return nil, domain.ErrInvalidInputFormat(fmt.Sprintf("render prompt: %v", err)).WithErr(err)
	}

	req := &domain.GenerationRequest{
		Prompt:      prompt.String(),
		System:      s.cfg.System,
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}
	if s.cfg.Mode == ModeStructured {
		req.Schema = s.output.JSONSchema()
		req.SchemaName = s.cfg.ID
	}

	resp, err := s.cfg.Generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.cfg.Mode == ModeText {
		return domain.Payload{"text": resp.Text}, nil
	}

	out, err := schema.DecodeInto([]byte(resp.Text), s.output)
	if err != nil {
		// The model itself produced the bad payload
		return nil, domain.ErrGeneration("structured output rejected").WithErr(err)
	}
	return out, nil
}

func toAnyMap(deps map[string]domain.Payload) map[string]any {
	out := make(map[string]any, len(deps))
	for k, v := range deps {
		out[k] = map[string]any(v)
	}
	return out
}

var _ ports.Step = (*PromptStep)(nil)
