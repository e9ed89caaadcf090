package domain

import (
	"fmt"
	"time"
)

// RunStatus tracks a pipeline run through its lifecycle.
type RunStatus string

const (
	RunQueued  RunStatus = "queued"
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
)

var runTransitions = map[RunStatus][]RunStatus{
	RunQueued:  {RunRunning, RunFailure},
	RunRunning: {RunSuccess, RunFailure},
}

// Terminal reports whether no further transition is allowed.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunFailure
}

// CanTransition reports whether moving from s to next is allowed.
func (s RunStatus) CanTransition(next RunStatus) bool {
	for _, allowed := range runTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PipelineRun is one triggered execution for a workspace.
type PipelineRun struct {
	ID         int64      `json:"id"`
	Workspace  string     `json:"workspace"`
	TaskID     string     `json:"task_id"`
	Status     RunStatus  `json:"status"`
	Message    string     `json:"message,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Transition moves the run to next, stamping start and finish times.
func (r *PipelineRun) Transition(next RunStatus, message string, at time.Time) error {
	if !r.Status.CanTransition(next) {
		return fmt.Errorf("%w: run %s cannot move from %s to %s", ErrConflict, r.TaskID, r.Status, next)
	}
	r.Status = next
	r.Message = message
	switch {
	case next == RunRunning:
		r.StartedAt = &at
	case next.Terminal():
		r.FinishedAt = &at
	}
	return nil
}
