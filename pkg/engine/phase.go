package engine

import "fmt"

// Phase represents the lifecycle operation a single reconciliation call
// performs on a resource.
type Phase string

const (
	// PhaseCreate indicates the resource does not exist yet and should
	// be created on the control plane.
	PhaseCreate Phase = "create"

	// PhaseUpdate indicates the resource exists and its remote
	// configuration should converge toward the desired configuration.
	PhaseUpdate Phase = "update"

	// PhaseDelete indicates the resource should be torn down and the
	// orchestrator should stop tracking it.
	PhaseDelete Phase = "delete"
)

// IsDestructive returns true if the phase removes remote objects.
func (p Phase) IsDestructive() bool {
	return p == PhaseDelete
}

// Validate checks if the phase is valid.
func (p Phase) Validate() error {
	switch p {
	case PhaseCreate, PhaseUpdate, PhaseDelete:
		return nil
	default:
		return fmt.Errorf("invalid phase: %s", p)
	}
}

// TaskState represents the lifecycle state of an asynchronous
// control-plane task.
type TaskState string

const (
	// TaskStateRunning indicates the task has not reached a terminal
	// state yet.
	TaskStateRunning TaskState = "running"

	// TaskStateSucceeded indicates the task finished successfully.
	TaskStateSucceeded TaskState = "succeeded"

	// TaskStateFailed indicates the task finished unsuccessfully.
	TaskStateFailed TaskState = "failed"
)

// TaskStatus is a point-in-time observation of an asynchronous task.
// ExitInfo carries whatever diagnostic text the control plane returned
// for a failed task; it is empty otherwise.
type TaskStatus struct {
	State    TaskState `json:"state"`
	ExitInfo string    `json:"exit_info,omitempty"`
}

// IsTerminal returns true if the task has reached a final state.
func (s TaskStatus) IsTerminal() bool {
	return s.State == TaskStateSucceeded || s.State == TaskStateFailed
}
