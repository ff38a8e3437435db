package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
)

// Store is an in-memory implementation of ports.RunStore.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*domain.RunRecord
}

var _ ports.RunStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{runs: make(map[string]*domain.RunRecord)}
}

// SaveRun stores a copy of run, replacing any earlier record with the same ID.
func (s *Store) SaveRun(ctx context.Context, run *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = clone(run)
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, domain.ErrNotFound("run " + id + " not found")
	}
	return clone(run), nil
}

func (s *Store) ListRuns(ctx context.Context, pipelineID string, limit int) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.RunRecord{}
	for _, run := range s.runs {
		if pipelineID != "" && run.PipelineID != pipelineID {
			continue
		}
		result = append(result, clone(run))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) Close() error {
	return nil
}

func clone(run *domain.RunRecord) *domain.RunRecord {
	out := *run
	out.Params = run.Params.Clone()
	out.Steps = append([]domain.StepReport(nil), run.Steps...)
	return &out
}
