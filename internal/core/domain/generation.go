package domain

// GenerationRequest is a single call to a generative model.
type GenerationRequest struct {
	// Prompt is the user prompt.
	Prompt string `json:"prompt"`
	// System is an optional system instruction.
	System string `json:"system,omitempty"`
	// Model overrides the generator's default model when set.
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`

	// Schema is a JSON-Schema document. When set the generator runs in
	// structured mode and Text holds a JSON object conforming to it.
	Schema map[string]any `json:"schema,omitempty"`
	// SchemaName names the schema for APIs that require one.
	SchemaName string `json:"schema_name,omitempty"`
}

// Structured reports whether the request asks for structured output.
func (r *GenerationRequest) Structured() bool {
	return r.Schema != nil
}

// Usage reports token consumption for one generation.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// GenerationResponse is what a generator returns.
type GenerationResponse struct {
	Text     string `json:"text"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
	Usage    Usage  `json:"usage"`
}

// Generation error codes shared by the provider clients.
const (
	CodeInvalidRequest        = "invalid_request"
	CodeInvalidAPIKey         = "invalid_api_key"
	CodePermissionDenied      = "permission_denied"
	CodeModelNotFound         = "model_not_found"
	CodeRateLimitExceeded     = "rate_limit_exceeded"
	CodeContextLengthExceeded = "context_length_exceeded"
	CodeMaxTokensExceeded     = "max_tokens_exceeded"
	CodeOutputTruncated       = "output_truncated"
	CodeOverloaded            = "overloaded"
	CodeServerError           = "server_error"
	CodeEmptyResponse         = "empty_response"
)
