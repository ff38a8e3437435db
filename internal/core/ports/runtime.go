package ports

import (
	"context"

	"github.com/tjfontaine/polyglot-flow/internal/config"
	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
)

// ConfigProvider loads and manages configuration.
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}

// RunStore records run summaries for later inspection.
// Implementations: memory, SQLite. Stores never hold step outputs.
type RunStore interface {
	SaveRun(ctx context.Context, run *domain.RunRecord) error
	GetRun(ctx context.Context, id string) (*domain.RunRecord, error)
	// ListRuns returns the most recent runs first. An empty pipelineID lists all.
	ListRuns(ctx context.Context, pipelineID string, limit int) ([]*domain.RunRecord, error)
	Close() error
}
