// Package storagetest holds the behavior every ports.RunStore must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
)

// Record builds a finished run record started at start.
func Record(id, pipelineID string, start time.Time) *domain.RunRecord {
	return &domain.RunRecord{
		ID:         id,
		PipelineID: pipelineID,
		Status:     domain.RunStatusCompleted,
		Params:     domain.Payload{"topic": "Go", "nested": map[string]any{"n": float64(1)}},
		Steps: []domain.StepReport{
			{StepID: "outline", Status: domain.StepStatusOK, StartedAt: start, Duration: 120 * time.Millisecond},
			{
				StepID:    "expand",
				Status:    domain.StepStatusDegraded,
				StartedAt: start.Add(time.Second),
				Duration:  time.Second,
				Error:     &domain.ErrorMarker{Kind: domain.KindUpstreamData, Step: "expand", Message: "outline has no items"},
			},
			{StepID: "projects", Status: domain.StepStatusSkipped},
		},
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
	}
}

// Run exercises store against the shared RunStore contract.
func Run(t *testing.T, store ports.RunStore) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("save and get", func(t *testing.T) {
		rec := Record("run-1", "course_planner_flow", base)
		require.NoError(t, store.SaveRun(ctx, rec))

		got, err := store.GetRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, rec.PipelineID, got.PipelineID)
		assert.Equal(t, rec.Status, got.Status)
		assert.Equal(t, "Go", got.Params["topic"])
		assert.True(t, rec.StartedAt.Equal(got.StartedAt))
		assert.Equal(t, 3*time.Second, got.Duration())

		require.Len(t, got.Steps, 3)
		assert.Equal(t, "outline", got.Steps[0].StepID)
		assert.Equal(t, 120*time.Millisecond, got.Steps[0].Duration)
		require.NotNil(t, got.Steps[1].Error)
		assert.Equal(t, domain.KindUpstreamData, got.Steps[1].Error.Kind)
		assert.Nil(t, got.Steps[2].Error)
		assert.True(t, got.Steps[2].StartedAt.IsZero())
	})

	t.Run("save replaces", func(t *testing.T) {
		rec := Record("run-2", "manim_flow", base.Add(time.Minute))
		require.NoError(t, store.SaveRun(ctx, rec))

		rec.Status = domain.RunStatusFailed
		rec.Error = "step manim failed"
		rec.Steps = rec.Steps[:1]
		require.NoError(t, store.SaveRun(ctx, rec))

		got, err := store.GetRun(ctx, "run-2")
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatusFailed, got.Status)
		assert.Equal(t, "step manim failed", got.Error)
		assert.Len(t, got.Steps, 1)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		got, err := store.GetRun(ctx, "run-1")
		require.NoError(t, err)
		got.Params["topic"] = "changed"
		got.Steps[0].Status = domain.StepStatusFailed

		again, err := store.GetRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, "Go", again.Params["topic"])
		assert.Equal(t, domain.StepStatusOK, again.Steps[0].Status)
	})

	t.Run("list newest first", func(t *testing.T) {
		require.NoError(t, store.SaveRun(ctx, Record("run-3", "course_planner_flow", base.Add(2*time.Minute))))

		all, err := store.ListRuns(ctx, "", 0)
		require.NoError(t, err)
		ids := make([]string, len(all))
		for i, r := range all {
			ids[i] = r.ID
		}
		assert.Equal(t, []string{"run-3", "run-2", "run-1"}, ids)
		assert.Len(t, all[0].Steps, 3)

		planner, err := store.ListRuns(ctx, "course_planner_flow", 1)
		require.NoError(t, err)
		require.Len(t, planner, 1)
		assert.Equal(t, "run-3", planner[0].ID)

		none, err := store.ListRuns(ctx, "unknown_flow", 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := store.GetRun(ctx, "missing")
		assert.True(t, domain.IsKind(err, domain.KindNotFound), "error = %v", err)
	})
}
