package engine

import "time"

// ResourceConfig is the desired, resource-type-specific configuration:
// a flat map of unique keys to mixed primitive values. Field mapping
// from these keys to control-plane parameters is owned by the provider
// implementations, not by the engine.
type ResourceConfig map[string]any

// Clone returns a shallow copy of the configuration.
func (c ResourceConfig) Clone() ResourceConfig {
	if c == nil {
		return nil
	}
	out := make(ResourceConfig, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// NormalizedOutput is the record returned to the orchestrator after a
// reconciliation: authoritative remote fields merged with caller
// defaults, keyed identically across repeated calls so diffing stays
// stable. An empty output is the terminal form returned after a
// successful delete; the orchestrator stops persisting the resource
// when it sees one.
type NormalizedOutput map[string]any

// IsTerminal returns true if the output signals that the resource is
// gone and should no longer be tracked.
func (o NormalizedOutput) IsTerminal() bool {
	return len(o) == 0
}

// ReconcileRequest is the input to one reconciliation call, supplied by
// the outer orchestrator.
type ReconcileRequest struct {
	// Phase is the lifecycle operation to perform. Immutable per call.
	Phase Phase

	// ResourceID is the orchestrator's identity for the resource.
	ResourceID string

	// ResourceType is the provider type name (e.g. "vm", "storage").
	ResourceType string

	// DesiredConfig is the desired configuration for the resource.
	DesiredConfig ResourceConfig

	// PreviousOutput is the prior normalized output, absent on first
	// create. Orchestrators supply it for update and delete; when it
	// is missing on update the engine substitutes defaults.
	PreviousOutput NormalizedOutput

	// DeleteRequested controls whether a delete phase issues the
	// destructive remote call. When false the teardown is skipped
	// entirely and the orchestrator merely stops tracking the
	// resource. Defaults are per resource type; data-destructive
	// backends such as storage pools default to false.
	DeleteRequested bool
}

// TaskHandle identifies a long-running control-plane operation. It is
// owned transiently by the task poller for the duration of one wait and
// never persisted.
type TaskHandle string

// TaskScope identifies a coarse polling scope for control planes that
// only expose an "any running task" query per node.
type TaskScope struct {
	// Node is the node whose task queue is observed.
	Node string
}

// OperationClass buckets mutations by how long their asynchronous
// tasks are expected to take, which selects the polling budget.
type OperationClass string

const (
	// ClassDefault covers ordinary mutations.
	ClassDefault OperationClass = "default"

	// ClassSlow covers clone and migrate operations, which routinely
	// outlive the default budget.
	ClassSlow OperationClass = "slow"

	// ClassDownload covers ISO/template downloads into storage.
	ClassDownload OperationClass = "download"
)

// Budgets holds the polling time budget per operation class.
type Budgets struct {
	Default  time.Duration
	Slow     time.Duration
	Download time.Duration
}

// DefaultBudgets returns the reference polling budgets.
func DefaultBudgets() Budgets {
	return Budgets{
		Default:  300 * time.Second,
		Slow:     600 * time.Second,
		Download: 1800 * time.Second,
	}
}

// For returns the budget for the given operation class. Unknown
// classes fall back to the default budget.
func (b Budgets) For(class OperationClass) time.Duration {
	switch class {
	case ClassSlow:
		return b.Slow
	case ClassDownload:
		return b.Download
	default:
		return b.Default
	}
}

// MutationAck is what a provider mutation returns: optionally a task to
// await, or a coarse idle scope for control planes that do not hand
// back a task identifier, plus the operation class that selects the
// polling budget.
type MutationAck struct {
	// Task is the asynchronous task to await, empty if the mutation
	// completed synchronously.
	Task TaskHandle

	// IdleScope, when set and Task is empty, asks the poller to wait
	// until the scoped node reports no running tasks.
	IdleScope *TaskScope

	// Class selects the polling budget. Zero value means default.
	Class OperationClass
}

// RemoteSnapshot is a fresh read of the remote object, the
// authoritative input to normalization.
type RemoteSnapshot struct {
	// Exists reports whether the remote object was found.
	Exists bool

	// Fields are the authoritative field values the control plane
	// reported. Keys use the same naming as ResourceConfig.
	Fields map[string]any
}
