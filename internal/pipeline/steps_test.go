package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-flow/internal/config"
	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/schema"
)

// fakeGenerator returns canned text and records requests.
type fakeGenerator struct {
	text string
	err  error
	reqs []*domain.GenerationRequest
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(_ context.Context, req *domain.GenerationRequest) (*domain.GenerationResponse, error) {
	g.reqs = append(g.reqs, req)
	if g.err != nil {
		return nil, g.err
	}
	return &domain.GenerationResponse{Text: g.text, Provider: "fake"}, nil
}

func TestWebhookStep_Success(t *testing.T) {
	var got WebhookRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("expected auth header, got %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"score": 7, "label": "ok"}`))
	}))
	defer server.Close()

	step := NewWebhookStep(WebhookStepConfig{
		ID:      "score",
		URL:     server.URL,
		Timeout: time.Second,
		Headers: map[string]string{"Authorization": "Bearer token"},
	})

	out, err := step.Run(context.Background(), &ports.StepInput{
		RunID:  "run-1",
		Params: domain.Payload{"topic": "go"},
		Deps:   map[string]domain.Payload{"outline": {"text": "x"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String("label") != "ok" {
		t.Errorf("unexpected output: %v", out)
	}
	if got.RunID != "run-1" || got.Step != "score" || got.Params.String("topic") != "go" {
		t.Errorf("unexpected request body: %+v", got)
	}
	if got.Deps["outline"].String("text") != "x" {
		t.Errorf("expected deps in request, got %v", got.Deps)
	}
	if step.Required() {
		t.Error("default on_error should be degrade")
	}
}

func TestWebhookStep_Retries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	step := NewWebhookStep(WebhookStepConfig{ID: "hook", URL: server.URL, Retries: 2, Timeout: time.Second})
	if _, err := step.Run(context.Background(), &ports.StepInput{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestWebhookStep_Failure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	step := NewWebhookStep(WebhookStepConfig{ID: "hook", URL: server.URL, Retries: 3, OnError: OnErrorFail})
	_, err := step.Run(context.Background(), &ports.StepInput{})

	if !domain.IsKind(err, domain.KindGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	var pe *domain.PipelineError
	if !errors.As(err, &pe) || pe.StepID != "hook" {
		t.Errorf("expected step id on error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("malformed body should not be retried, got %d calls", calls.Load())
	}
	if !step.Required() {
		t.Error("on_error fail should make the step required")
	}
}

func TestWebhookStep_OversizedResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"text": "`))
		_, _ = w.Write(bytes.Repeat([]byte("a"), maxWebhookResponseBytes))
		_, _ = w.Write([]byte(`"}`))
	}))
	defer server.Close()

	step := NewWebhookStep(WebhookStepConfig{ID: "hook", URL: server.URL, Retries: 2, Timeout: 5 * time.Second})
	_, err := step.Run(context.Background(), &ports.StepInput{})
	if !domain.IsKind(err, domain.KindGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	cause := errors.Unwrap(err)
	if !domain.IsKind(cause, domain.KindMalformedPayload) || !strings.Contains(cause.Error(), "exceeds") {
		t.Errorf("expected size limit cause, got %v", cause)
	}
	if calls.Load() != 1 {
		t.Errorf("oversized body should not be retried, got %d calls", calls.Load())
	}
}

func TestPromptStep_Text(t *testing.T) {
	gen := &fakeGenerator{text: "an outline"}
	step, err := NewPromptStep(PromptStepConfig{
		ID:        "outline",
		Prompt:    "Outline {{.params.topic}} using {{.deps.seed.text}}",
		System:    "You are concise.",
		Generator: gen,
		Requires:  []string{"seed"},
	})
	if err != nil {
		t.Fatalf("NewPromptStep: %v", err)
	}

	out, err := step.Run(context.Background(), &ports.StepInput{
		Params: domain.Payload{"topic": "Go"},
		Deps:   map[string]domain.Payload{"seed": {"text": "notes"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String("text") != "an outline" {
		t.Errorf("unexpected output: %v", out)
	}
	req := gen.reqs[0]
	if req.Prompt != "Outline Go using notes" {
		t.Errorf("unexpected prompt: %q", req.Prompt)
	}
	if req.System != "You are concise." || req.Structured() {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestPromptStep_Structured(t *testing.T) {
	out := schema.New("summary", schema.String("title", true), schema.Integer("words", false))

	tests := []struct {
		name     string
		text     string
		wantKind domain.ErrorKind
	}{
		{"valid", "```json\n{\"title\": \"Go\", \"words\": 3}\n```", ""},
		{"not json", "sorry, I cannot", domain.KindGeneration},
		{"wrong shape", `{"words": "many"}`, domain.KindGeneration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{text: tt.text}
			step, err := NewPromptStep(PromptStepConfig{
				ID:        "summary",
				Prompt:    "Summarize {{.params.topic}}",
				Mode:      ModeStructured,
				Output:    out,
				Generator: gen,
			})
			if err != nil {
				t.Fatalf("NewPromptStep: %v", err)
			}

			got, err := step.Run(context.Background(), &ports.StepInput{Params: domain.Payload{"topic": "Go"}})
			if tt.wantKind != "" {
				if !domain.IsKind(err, tt.wantKind) {
					t.Fatalf("expected %s, got %v", tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String("title") != "Go" {
				t.Errorf("unexpected output: %v", got)
			}
			if gen.reqs[0].SchemaName != "summary" || gen.reqs[0].Schema == nil {
				t.Errorf("expected structured request, got %+v", gen.reqs[0])
			}
		})
	}
}

func TestNewPromptStep_Rejects(t *testing.T) {
	gen := &fakeGenerator{}
	tests := []struct {
		name string
		cfg  PromptStepConfig
	}{
		{"no generator", PromptStepConfig{ID: "a", Prompt: "x"}},
		{"empty prompt", PromptStepConfig{ID: "a", Generator: gen}},
		{"bad template", PromptStepConfig{ID: "a", Prompt: "{{.params", Generator: gen}},
		{"structured without output", PromptStepConfig{ID: "a", Prompt: "x", Mode: ModeStructured, Generator: gen}},
		{"unknown mode", PromptStepConfig{ID: "a", Prompt: "x", Mode: "audio", Generator: gen}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPromptStep(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req WebhookRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		text := req.Deps["draft"].String("text")
		_, _ = w.Write([]byte(`{"length": ` + strings.Repeat("1", len(text)%9+1) + `}`))
	}))
	defer server.Close()

	gen := &fakeGenerator{text: "draft text"}
	cfg := config.PipelineConfig{
		ID:          "blog",
		Description: "Draft then score",
		Params:      []schema.Field{schema.String("topic", true)},
		Steps: []config.StepConfig{
			{ID: "draft", Type: StepTypePrompt, Prompt: "Write about {{.params.topic}}", Required: true},
			{ID: "score", Type: StepTypeWebhook, URL: server.URL, Requires: []string{"draft"},
				Output: []schema.Field{schema.Integer("length", true)}},
		},
	}

	p, err := NewFromConfig(cfg, gen)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if p.ParamsSchema() == nil {
		t.Fatal("expected params schema")
	}

	if _, err := p.Run(context.Background(), domain.Payload{}); !domain.IsKind(err, domain.KindValidation) {
		t.Errorf("expected params validation, got %v", err)
	}

	run, err := p.Run(context.Background(), domain.Payload{"topic": "Go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	score := mustGet(t, run, "score")
	if _, ok := score["length"].(int64); !ok {
		t.Errorf("expected integer length, got %#v", score["length"])
	}
}

func TestNewFromConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PipelineConfig
		gen  ports.Generator
	}{
		{"no steps", config.PipelineConfig{ID: "p"}, nil},
		{"prompt without generator", config.PipelineConfig{ID: "p", Steps: []config.StepConfig{
			{ID: "a", Type: StepTypePrompt, Prompt: "x"}}}, nil},
		{"webhook without url", config.PipelineConfig{ID: "p", Steps: []config.StepConfig{
			{ID: "a", Type: StepTypeWebhook}}}, nil},
		{"bad on_error", config.PipelineConfig{ID: "p", Steps: []config.StepConfig{
			{ID: "a", Type: StepTypeWebhook, URL: "http://localhost", OnError: "allow"}}}, nil},
		{"unknown type", config.PipelineConfig{ID: "p", Steps: []config.StepConfig{
			{ID: "a", Type: "shell"}}}, nil},
		{"reserved output field", config.PipelineConfig{ID: "p", Steps: []config.StepConfig{
			{ID: "a", Type: StepTypeWebhook, URL: "http://localhost", Output: []schema.Field{
				schema.String("summary", true),
				schema.String(domain.MarkerKey, false),
			}}}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFromConfig(tt.cfg, tt.gen); err == nil {
				t.Error("expected error")
			}
		})
	}
}
