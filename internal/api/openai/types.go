// Package openai provides the types and HTTP client for the OpenAI Chat
// Completions API.
package openai

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

// ChatCompletionRequest represents an OpenAI chat completion request.
type ChatCompletionRequest struct {
	Model               string                  `json:"model"`
	Messages            []ChatCompletionMessage `json:"messages"`
	MaxTokens           int                     `json:"max_tokens,omitempty"`
	MaxCompletionTokens int                     `json:"max_completion_tokens,omitempty"`
	Temperature         *float32                `json:"temperature,omitempty"`
	TopP                *float32                `json:"top_p,omitempty"`
	Stop                []string                `json:"stop,omitempty"`
	User                string                  `json:"user,omitempty"`
	ResponseFormat      *ResponseFormat         `json:"response_format,omitempty"`
	Seed                *int                    `json:"seed,omitempty"`
}

// ChatCompletionMessage represents a message in the chat completion request/response.
type ChatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	Refusal string `json:"refusal,omitempty"`
}

// ResponseFormat specifies the format of the response.
type ResponseFormat struct {
	Type       string          `json:"type"` // text, json_object, json_schema
	JSONSchema *JSONSchemaSpec `json:"json_schema,omitempty"`
}

// JSONSchemaSpec constrains output in json_schema mode.
type JSONSchemaSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
	Strict      bool           `json:"strict"`
}

// ChatCompletionResponse represents an OpenAI chat completion response.
type ChatCompletionResponse struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"`
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	SystemFingerprint string   `json:"system_fingerprint,omitempty"`
	Choices           []Choice `json:"choices"`
	Usage             Usage    `json:"usage,omitempty"`
}

// Choice represents a completion choice.
type Choice struct {
	Index        int                   `json:"index"`
	Message      ChatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorResponse represents an OpenAI API error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError contains error details.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// ToCanonical converts the OpenAI API error to a generation error.
func (e *APIError) ToCanonical(status int) *domain.PipelineError {
	return domain.ErrGeneration(e.Message).
		WithCode(mapOpenAIErrorCode(e.Type, e.Code, e.Message)).
		WithField(e.Param).
		WithStatus(status).
		WithErr(e)
}

// mapOpenAIErrorCode maps OpenAI error types/codes to generation error codes.
func mapOpenAIErrorCode(errType, errCode, message string) string {
	// First check specific error codes
	switch errCode {
	case "context_length_exceeded":
		return domain.CodeContextLengthExceeded
	case "rate_limit_exceeded":
		return domain.CodeRateLimitExceeded
	case "invalid_api_key":
		return domain.CodeInvalidAPIKey
	case "model_not_found":
		return domain.CodeModelNotFound
	}

	// Check message for patterns
	msgLower := strings.ToLower(message)
	if strings.Contains(msgLower, "max_tokens") || strings.Contains(msgLower, "maximum tokens") {
		if strings.Contains(msgLower, "truncated") || strings.Contains(msgLower, "could not finish") ||
			strings.Contains(msgLower, "output limit") {
			return domain.CodeOutputTruncated
		}
		return domain.CodeMaxTokensExceeded
	}
	if strings.Contains(msgLower, "context length") || strings.Contains(msgLower, "context window") {
		return domain.CodeContextLengthExceeded
	}

	// Map by error type
	switch errType {
	case "invalid_request_error":
		return domain.CodeInvalidRequest
	case "authentication_error":
		return domain.CodeInvalidAPIKey
	case "permission_denied":
		return domain.CodePermissionDenied
	case "not_found":
		return domain.CodeModelNotFound
	case "rate_limit_error", "rate_limit_exceeded":
		return domain.CodeRateLimitExceeded
	case "service_unavailable":
		return domain.CodeOverloaded
	default:
		return domain.CodeServerError
	}
}

// ParseErrorResponse attempts to parse an error response from JSON.
func ParseErrorResponse(data []byte) (*APIError, error) {
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return nil, err
	}
	if errResp.Error == nil {
		return nil, nil
	}
	return errResp.Error, nil
}

// statusError classifies a non-JSON error body by status alone.
func statusError(status int, body []byte) *domain.PipelineError {
	code := domain.CodeServerError
	switch {
	case status == http.StatusTooManyRequests:
		code = domain.CodeRateLimitExceeded
	case status == http.StatusUnauthorized:
		code = domain.CodeInvalidAPIKey
	case status == http.StatusNotFound:
		code = domain.CodeModelNotFound
	case status >= 400 && status < 500:
		code = domain.CodeInvalidRequest
	}
	return domain.ErrGeneration(strings.TrimSpace(string(body))).WithCode(code).WithStatus(status)
}
