package domain

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// StepStatus is the outcome of one step within a run.
type StepStatus string

const (
	StepStatusOK        StepStatus = "ok"
	StepStatusDegraded  StepStatus = "degraded"
	StepStatusFailed    StepStatus = "failed"
	StepStatusCancelled StepStatus = "cancelled"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepReport records how one step of a run went.
type StepReport struct {
	StepID    string        `json:"step" db:"step_id"`
	Status    StepStatus    `json:"status" db:"status"`
	Error     *ErrorMarker  `json:"error,omitempty" db:"-"`
	StartedAt time.Time     `json:"started_at,omitempty" db:"started_at"`
	Duration  time.Duration `json:"duration_ns,omitempty" db:"duration_ns"`
}

// RunRecord is the audit summary of a run. It never carries step outputs.
type RunRecord struct {
	ID         string       `json:"id"`
	PipelineID string       `json:"pipeline_id"`
	Status     RunStatus    `json:"status"`
	Params     Payload      `json:"params,omitempty"`
	Steps      []StepReport `json:"steps"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at,omitempty"`
}

// Duration returns how long the run took.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
