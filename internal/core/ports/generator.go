package ports

import (
	"context"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

// Generator is the generative-model collaborator steps call.
// Implementations: OpenAI, Anthropic, and test doubles.
type Generator interface {
	// Name returns the provider name.
	Name() string
	// Generate performs one call. In structured mode the response text is a JSON object.
	Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResponse, error)
}
