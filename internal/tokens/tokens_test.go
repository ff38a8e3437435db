package tokens

import (
	"testing"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

func TestEstimator_Count(t *testing.T) {
	e := NewEstimator()

	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hi", 1},
		{"abcdefgh", 2},
		{"Hello, how are you today?", 6},
	}
	for _, tt := range tests {
		if got := e.Count(tt.text); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestOpenAICounter_SupportsModel(t *testing.T) {
	c := NewOpenAICounter()

	tests := []struct {
		model string
		want  bool
	}{
		{"gpt-4o", true},
		{"gpt-4o-mini", true},
		{"GPT-4", true},
		{"o3-mini", true},
		{"claude-sonnet-4-20250514", false},
		{"llama-3", false},
	}
	for _, tt := range tests {
		if got := c.SupportsModel(tt.model); got != tt.want {
			t.Errorf("SupportsModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestOpenAICounter_CountText(t *testing.T) {
	c := NewOpenAICounter()

	n, err := c.CountText("gpt-4o", "")
	if err != nil || n != 0 {
		t.Fatalf("empty text = %d, %v", n, err)
	}

	n, err = c.CountText("gpt-4o", "Hello, world!")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	if n < 2 || n > 6 {
		t.Errorf("CountText() = %d, want between 2 and 6", n)
	}
}

func TestEncodingFor(t *testing.T) {
	tests := []struct {
		model string
		want  tokenizer.Encoding
	}{
		{"gpt-4o", tokenizer.O200kBase},
		{"gpt-4.1-mini", tokenizer.O200kBase},
		{"o1-preview", tokenizer.O200kBase},
		{"gpt-4-turbo", tokenizer.Cl100kBase},
		{"gpt-3.5-turbo", tokenizer.Cl100kBase},
		{"something-new", tokenizer.O200kBase},
	}
	for _, tt := range tests {
		if got := encodingFor(tt.model); got != tt.want {
			t.Errorf("encodingFor(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestRegistry_CountText(t *testing.T) {
	r := NewRegistry()

	_, estimated := r.CountText("gpt-4o", "some text here")
	if estimated {
		t.Error("gpt-4o should be counted exactly")
	}

	n, estimated := r.CountText("claude-sonnet-4-20250514", "abcdefgh")
	if !estimated {
		t.Error("claude models should fall back to the estimator")
	}
	if n != 2 {
		t.Errorf("estimated count = %d, want 2", n)
	}
}

func TestRegistry_FillUsage(t *testing.T) {
	r := NewRegistry()

	req := &domain.GenerationRequest{Model: "claude-x", System: "abcd", Prompt: "abcdefgh"}
	resp := &domain.GenerationResponse{Text: "abcdefghijkl"}
	if !r.FillUsage(req, resp) {
		t.Error("FillUsage() should report estimation")
	}
	if resp.Usage.InputTokens != 3 || resp.Usage.OutputTokens != 3 {
		t.Errorf("usage = %+v, want 3/3", resp.Usage)
	}

	// Reported usage is kept.
	resp = &domain.GenerationResponse{Text: "abcd", Usage: domain.Usage{InputTokens: 10, OutputTokens: 20}}
	if r.FillUsage(req, resp) {
		t.Error("nothing should be estimated when usage is reported")
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 20 {
		t.Errorf("usage overwritten: %+v", resp.Usage)
	}
}

func TestModelMatcher(t *testing.T) {
	m := NewModelMatcher([]string{"gpt-"}, []string{"davinci"})
	if !m.Matches("gpt-4o") || !m.Matches("davinci") {
		t.Error("expected matches")
	}
	if m.Matches("davinci-2") || m.Matches("claude") {
		t.Error("unexpected match")
	}
}
