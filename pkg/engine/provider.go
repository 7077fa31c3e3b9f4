package engine

import "context"

// ProviderOps is the per-resource-type surface the engine consumes.
// One implementation exists per resource kind (vm, container, storage,
// ...); each wraps the control-plane client with that kind's endpoint
// paths and field mapping. Implementations return errors classified
// into the engine taxonomy so the dispatcher and teardown guard can
// recover the cases they own.
type ProviderOps interface {
	// Create creates the remote object from the desired configuration.
	Create(ctx context.Context, cfg ResourceConfig) (*MutationAck, error)

	// Update converges the remote object toward the desired
	// configuration. Providers whose resource kind has no update
	// endpoint return ErrUpdateUnsupported; the caller then performs
	// a pure read instead.
	Update(ctx context.Context, cfg ResourceConfig, previous NormalizedOutput) (*MutationAck, error)

	// Delete removes the remote object. Idempotence is layered on top
	// by DestroyIfPresent; Delete itself reports not_found when the
	// target is already absent.
	Delete(ctx context.Context) error

	// Read fetches a fresh snapshot of the remote object for
	// normalization. Kinds with no meaningful current-state read
	// return a snapshot carrying only a verified marker.
	Read(ctx context.Context) (*RemoteSnapshot, error)
}

// TaskQuerier queries the terminal status of a specific asynchronous
// task. The control-plane client implements it.
type TaskQuerier interface {
	QueryTask(ctx context.Context, handle TaskHandle) (TaskStatus, error)
}

// RunningTaskCounter counts running tasks within a scope, for control
// planes that expose only a coarse "any running task on this node"
// query instead of per-task status.
type RunningTaskCounter interface {
	CountRunningTasks(ctx context.Context, scope TaskScope) (int, error)
}

// Defaulter is an optional ProviderOps extension supplying the static
// defaults that rank below desired configuration during normalization.
type Defaulter interface {
	Defaults() ResourceConfig
}
