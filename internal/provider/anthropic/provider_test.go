package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	anthropicapi "github.com/tjfontaine/polyglot-flow/internal/api/anthropic"
	"github.com/tjfontaine/polyglot-flow/internal/config"
	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/testutil"
)

func TestProvider_Generate(t *testing.T) {
	if os.Getenv("ANTHROPIC_API_KEY") == "" && os.Getenv("VCR_MODE") == "record" {
		t.Skip("Skipping test: ANTHROPIC_API_KEY not set")
	}

	recorder, cleanup := testutil.NewVCRRecorder(t, "anthropic_generate")
	defer cleanup()

	p := New(testutil.APIKey("ANTHROPIC_API_KEY"), WithHTTPClient(testutil.VCRHTTPClient(recorder)))

	resp, err := p.Generate(context.Background(), &domain.GenerationRequest{
		Model:     "claude-3-5-haiku-20241022",
		Prompt:    "Say hello in French.",
		MaxTokens: 32,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Text != "Bonjour !" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 13 || resp.Usage.OutputTokens != 6 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
}

func TestProvider_GenerateStructured(t *testing.T) {
	var got anthropicapi.MessagesRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected x-api-key header to be 'test-key', got %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("expected anthropic-version header to be set")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-20250514",
  "content": [
    {"type": "text", "text": "Here is the outline."},
    {"type": "tool_use", "id": "toolu_1", "name": "outline", "input": {"items": [{"title": "Intro", "description": "Basics"}]}}
  ],
  "stop_reason": "tool_use",
  "usage": {"input_tokens": 40, "output_tokens": 25}
}`)
	}))
	defer ts.Close()

	p := New("test-key", WithBaseURL(ts.URL))
	resp, err := p.Generate(context.Background(), &domain.GenerationRequest{
		System:     "You are a course planner.",
		Prompt:     "Outline Go",
		Schema:     map[string]any{"type": "object"},
		SchemaName: "outline",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(resp.Text), &out); err != nil {
		t.Fatalf("response text is not JSON: %q", resp.Text)
	}
	if _, ok := out["items"]; !ok {
		t.Errorf("tool input not returned: %q", resp.Text)
	}

	if got.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", got.MaxTokens, DefaultMaxTokens)
	}
	if len(got.System) != 1 || got.System[0].Text != "You are a course planner." {
		t.Errorf("System = %+v", got.System)
	}
	if got.ToolChoice == nil || got.ToolChoice.Type != "tool" || got.ToolChoice.Name != "outline" {
		t.Errorf("ToolChoice = %+v", got.ToolChoice)
	}
	if len(got.Tools) != 1 || got.Tools[0].Name != "outline" {
		t.Errorf("Tools = %+v", got.Tools)
	}
}

func TestProvider_GenerateErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{
			name:     "overloaded",
			status:   529,
			body:     `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			wantCode: domain.CodeOverloaded,
		},
		{
			name:     "auth",
			status:   http.StatusUnauthorized,
			body:     `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			wantCode: domain.CodeInvalidAPIKey,
		},
		{
			name:     "prompt too long",
			status:   http.StatusBadRequest,
			body:     `{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long: 210000 tokens > 200000 maximum"}}`,
			wantCode: domain.CodeContextLengthExceeded,
		},
		{
			name:     "max tokens stop",
			status:   http.StatusOK,
			body:     `{"content":[{"type":"text","text":"partial"}],"stop_reason":"max_tokens"}`,
			wantCode: domain.CodeOutputTruncated,
		},
		{
			name:     "no tool call",
			status:   http.StatusOK,
			body:     `{"content":[{"type":"text","text":"I cannot"}],"stop_reason":"end_turn"}`,
			wantCode: domain.CodeEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			req := &domain.GenerationRequest{Prompt: "hi", Schema: map[string]any{"type": "object"}, SchemaName: "out"}
			_, err := New("test-key", WithBaseURL(ts.URL)).Generate(context.Background(), req)
			if !domain.IsKind(err, domain.KindGeneration) {
				t.Fatalf("error kind = %v, want generation (err=%v)", domain.KindOf(err), err)
			}
			if pe := domain.AsPipelineError(err, domain.KindGeneration); pe.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", pe.Code, tt.wantCode)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(config.ProviderConfig{Name: "anthropic"}); err == nil {
		t.Error("expected error for missing api_key")
	}
	if err := ValidateConfig(config.ProviderConfig{Name: "anthropic", APIKey: "k"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
