// Package openai implements ports.Generator on the OpenAI Chat Completions API.
package openai

import (
	"context"
	"net/http"

	openaiapi "github.com/tjfontaine/polyglot-flow/internal/api/openai"
	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

// DefaultModel is used when neither the request nor the config names one.
const DefaultModel = "gpt-4o"

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

// Provider implements ports.Generator using the OpenAI client.
type Provider struct {
	client     *openaiapi.Client
	name       string
	baseURL    string
	httpClient *http.Client
}

// New creates a new OpenAI provider.
func New(apiKey string, opts ...ProviderOption) *Provider {
	p := &Provider{name: ProviderType}
	for _, opt := range opts {
		opt(p)
	}

	var clientOpts []openaiapi.ClientOption
	if p.baseURL != "" {
		clientOpts = append(clientOpts, openaiapi.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, openaiapi.WithHTTPClient(p.httpClient))
	}

	p.client = openaiapi.NewClient(apiKey, clientOpts...)
	return p
}

func (p *Provider) Name() string {
	return p.name
}

// Generate performs one chat completion. Structured requests use the
// json_schema response format in strict mode.
func (p *Provider) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, toAPIRequest(req))
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, domain.ErrGeneration("no choices in response").WithCode(domain.CodeEmptyResponse)
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, domain.ErrGeneration("model refused: " + choice.Message.Refusal).WithCode(domain.CodeInvalidRequest)
	}
	if choice.FinishReason == "length" {
		return nil, domain.ErrGeneration("output truncated at max tokens").WithCode(domain.CodeOutputTruncated)
	}
	if choice.Message.Content == "" {
		return nil, domain.ErrGeneration("empty response").WithCode(domain.CodeEmptyResponse)
	}

	return &domain.GenerationResponse{
		Text:     choice.Message.Content,
		Model:    resp.Model,
		Provider: p.name,
		Usage: domain.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// toAPIRequest converts a generation request to an OpenAI API request.
func toAPIRequest(req *domain.GenerationRequest) *openaiapi.ChatCompletionRequest {
	var messages []openaiapi.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openaiapi.ChatCompletionMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openaiapi.ChatCompletionMessage{Role: "user", Content: req.Prompt})

	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	apiReq := &openaiapi.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		// Newer models prefer max_completion_tokens
		apiReq.MaxCompletionTokens = req.MaxTokens
	}

	if req.Structured() {
		name := req.SchemaName
		if name == "" {
			name = "output"
		}
		apiReq.ResponseFormat = &openaiapi.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &openaiapi.JSONSchemaSpec{
				Name:   name,
				Schema: req.Schema,
				Strict: true,
			},
		}
	}

	return apiReq
}
