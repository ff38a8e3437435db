package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/schema"
)

// maxWebhookResponseBytes bounds a webhook response body.
const maxWebhookResponseBytes = 4 << 20

// OnError values for webhook steps.
const (
	OnErrorDegrade = "degrade"
	OnErrorFail    = "fail"
)

// WebhookRequest is the body POSTed to a webhook step's URL.
type WebhookRequest struct {
	RunID  string                    `json:"run_id"`
	Step   string                    `json:"step"`
	Params domain.Payload            `json:"params"`
	Deps   map[string]domain.Payload `json:"deps"`
}

// WebhookStep calls an external HTTP endpoint and records its JSON response
// as the step output.
type WebhookStep struct {
	id          string
	description string
	url         string
	timeout     time.Duration
	onError     string
	retries     int
	headers     map[string]string
	requires    []string
	output      *schema.Schema
	client      *http.Client
}

// WebhookStepConfig configures a webhook step.
type WebhookStepConfig struct {
	ID          string
	Description string
	URL         string
	Timeout     time.Duration
	OnError     string // "degrade" or "fail" (default: degrade)
	Retries     int
	Headers     map[string]string
	Requires    []string
	Output      *schema.Schema
	Client      *http.Client
}

// NewWebhookStep creates a new webhook step.
func NewWebhookStep(cfg WebhookStepConfig) *WebhookStep {
	onError := cfg.OnError
	if onError == "" {
		onError = OnErrorDegrade
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &WebhookStep{
		id:          cfg.ID,
		description: cfg.Description,
		url:         cfg.URL,
		timeout:     cfg.Timeout,
		onError:     onError,
		retries:     cfg.Retries,
		headers:     cfg.Headers,
		requires:    cfg.Requires,
		output:      cfg.Output,
		client:      client,
	}
}

func (s *WebhookStep) ID() string                   { return s.id }
func (s *WebhookStep) Description() string          { return s.description }
func (s *WebhookStep) InputSchema() *schema.Schema  { return nil }
func (s *WebhookStep) OutputSchema() *schema.Schema { return s.output }
func (s *WebhookStep) Requires() []string           { return s.requires }

// Required reports whether a webhook failure fails the run.
func (s *WebhookStep) Required() bool { return s.onError == OnErrorFail }

// Run executes the webhook call.
func (s *WebhookStep) Run(ctx context.Context, in *ports.StepInput) (domain.Payload, error) {
	var lastErr error

	attempts := s.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := s.doRequest(ctx, in)
		if err == nil {
			return out, nil
		}
		lastErr = err

		// A bad body will not get better on retry
		if ctx.Err() != nil || domain.IsKind(err, domain.KindMalformedPayload) {
			break
		}
	}

	return nil, domain.ErrGeneration(fmt.Sprintf("webhook %s failed after %d attempt(s)", s.id, attempts)).
		WithStep(s.id).
		WithErr(lastErr)
}

func (s *WebhookStep) doRequest(ctx context.Context, in *ports.StepInput) (domain.Payload, error) {
	body, err := json.Marshal(WebhookRequest{
		RunID:  in.RunID,
		Step:   s.id,
		Params: in.Params,
		Deps:   in.Deps,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(respBody) > maxWebhookResponseBytes {
		return nil, domain.ErrMalformedPayload(fmt.Sprintf("webhook response exceeds %d bytes", maxWebhookResponseBytes))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return schema.Decode(respBody)
}

var _ ports.Step = (*WebhookStep)(nil)
