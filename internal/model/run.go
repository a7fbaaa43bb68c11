package model

import "time"

// RunStatus is the lifecycle state of a pipeline run. A run only ever moves
// running -> succeeded or running -> failed.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one ledgered pipeline execution.
type Run struct {
	ID         string     `json:"run_id"`
	RunType    string     `json:"run_type"`
	BatchName  string     `json:"batch_name,omitempty"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// Checkpoint records the last processed key for one phase of a run so an
// interrupted phase can resume instead of reprocessing from the start.
type Checkpoint struct {
	RunID      string    `json:"run_id"`
	Phase      string    `json:"phase"`
	LastOrgnr  string    `json:"last_orgnr,omitempty"`
	LastOffset int64     `json:"last_offset"`
	LastCursor string    `json:"last_cursor,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}
