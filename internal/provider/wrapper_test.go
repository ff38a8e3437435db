package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

type recordingGenerator struct {
	last     *domain.GenerationRequest
	deadline bool
	resp     *domain.GenerationResponse
	err      error
}

func (r *recordingGenerator) Name() string { return "recording" }

func (r *recordingGenerator) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResponse, error) {
	r.last = req
	_, r.deadline = ctx.Deadline()
	if r.err != nil {
		return nil, r.err
	}
	resp := *r.resp
	return &resp, nil
}

func TestDefaultsGenerator(t *testing.T) {
	inner := &recordingGenerator{resp: &domain.GenerationResponse{Text: "ok"}}
	temp := float32(0.2)
	g := NewDefaultsGenerator(inner, Defaults{Model: "gpt-4o", Temperature: &temp, MaxTokens: 100, Timeout: time.Minute})

	req := &domain.GenerationRequest{Prompt: "hi"}
	if _, err := g.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if inner.last.Model != "gpt-4o" || inner.last.MaxTokens != 100 || *inner.last.Temperature != 0.2 {
		t.Errorf("defaults not applied: %+v", inner.last)
	}
	if !inner.deadline {
		t.Error("expected a per-call deadline")
	}
	if req.Model != "" {
		t.Error("caller's request was mutated")
	}

	// Explicit values win.
	hot := float32(0.9)
	_, _ = g.Generate(context.Background(), &domain.GenerationRequest{Prompt: "hi", Model: "gpt-4.1", MaxTokens: 5, Temperature: &hot})
	if inner.last.Model != "gpt-4.1" || inner.last.MaxTokens != 5 || *inner.last.Temperature != 0.9 {
		t.Errorf("explicit values overridden: %+v", inner.last)
	}
}

func TestInstrumentedGenerator_FillsUsage(t *testing.T) {
	inner := &recordingGenerator{resp: &domain.GenerationResponse{Text: "abcdefgh", Model: "claude-x"}}
	g := Instrument(inner, nil, nil)

	resp, err := g.Generate(context.Background(), &domain.GenerationRequest{Prompt: "abcd"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Usage.InputTokens != 1 || resp.Usage.OutputTokens != 2 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if g.Name() != "recording" {
		t.Errorf("Name() = %q", g.Name())
	}
}

func TestInstrumentedGenerator_PassesErrors(t *testing.T) {
	want := domain.ErrGeneration("boom").WithCode(domain.CodeServerError)
	g := Instrument(&recordingGenerator{err: want}, nil, nil)

	_, err := g.Generate(context.Background(), &domain.GenerationRequest{Prompt: "x"})
	if !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("api_key is required")
	u := NewUnavailable("openai", cause)

	_, err := u.Generate(context.Background(), &domain.GenerationRequest{Prompt: "x"})
	if !domain.IsKind(err, domain.KindGeneration) {
		t.Fatalf("kind = %v", domain.KindOf(err))
	}
	if !errors.Is(err, cause) {
		t.Error("cause not wrapped")
	}
}
