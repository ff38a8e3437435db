// Package anthropic implements ports.Generator on the Anthropic Messages API.
package anthropic

import (
	"context"
	"net/http"

	anthropicapi "github.com/tjfontaine/polyglot-flow/internal/api/anthropic"
	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

const (
	// DefaultModel is used when neither the request nor the config names one.
	DefaultModel = "claude-sonnet-4-20250514"
	// DefaultMaxTokens is sent when the request leaves max_tokens unset,
	// since the Messages API requires it.
	DefaultMaxTokens = 4096
)

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithName overrides the reported provider name.
func WithName(name string) ProviderOption {
	return func(p *Provider) {
		p.name = name
	}
}

// Provider implements ports.Generator using the Anthropic client.
type Provider struct {
	client     *anthropicapi.Client
	name       string
	baseURL    string
	httpClient *http.Client
}

// New creates a new Anthropic provider.
func New(apiKey string, opts ...ProviderOption) *Provider {
	p := &Provider{name: ProviderType}
	for _, opt := range opts {
		opt(p)
	}

	var clientOpts []anthropicapi.ClientOption
	if p.baseURL != "" {
		clientOpts = append(clientOpts, anthropicapi.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, anthropicapi.WithHTTPClient(p.httpClient))
	}

	p.client = anthropicapi.NewClient(apiKey, clientOpts...)
	return p
}

func (p *Provider) Name() string {
	return p.name
}

// Generate performs one messages call. Structured requests force a single
// tool whose input schema is the requested schema, and the tool input is
// returned as the response text.
func (p *Provider) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResponse, error) {
	apiReq := toAPIRequest(req)

	resp, err := p.client.CreateMessage(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	if resp.StopReason == "max_tokens" {
		return nil, domain.ErrGeneration("output truncated at max tokens").WithCode(domain.CodeOutputTruncated)
	}

	var text string
	if req.Structured() {
		input, ok := resp.ToolInput(apiReq.ToolChoice.Name)
		if !ok {
			return nil, domain.ErrGeneration("model did not call " + apiReq.ToolChoice.Name).WithCode(domain.CodeEmptyResponse)
		}
		text = string(input)
	} else {
		text = resp.Text()
	}
	if text == "" {
		return nil, domain.ErrGeneration("empty response").WithCode(domain.CodeEmptyResponse)
	}

	return &domain.GenerationResponse{
		Text:     text,
		Model:    resp.Model,
		Provider: p.name,
		Usage: domain.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

// toAPIRequest converts a generation request to an Anthropic API request.
func toAPIRequest(req *domain.GenerationRequest) *anthropicapi.MessagesRequest {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	apiReq := &anthropicapi.MessagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Messages: []anthropicapi.Message{{
			Role:    "user",
			Content: anthropicapi.ContentBlock{{Type: "text", Text: req.Prompt}},
		}},
	}
	if req.System != "" {
		apiReq.System = anthropicapi.SystemMessages{{Type: "text", Text: req.System}}
	}

	if req.Structured() {
		name := req.SchemaName
		if name == "" {
			name = "output"
		}
		apiReq.Tools = []anthropicapi.Tool{{
			Name:        name,
			Description: "Record the response in the required structure.",
			InputSchema: req.Schema,
		}}
		apiReq.ToolChoice = &anthropicapi.ToolChoice{Type: "tool", Name: name}
	}

	return apiReq
}
