package runner

import (
	"time"

	"github.com/openhyve/openhyve/pkg/stores"
)

// RunResult is the outcome of one apply or destroy run.
type RunResult struct {
	// RunID identifies the run in the store.
	RunID string `json:"run_id"`

	// Phase is "apply" or "destroy".
	Phase string `json:"phase"`

	// Summary aggregates per-resource outcomes.
	Summary Summary `json:"summary"`

	// Results holds one entry per manifest resource, in manifest order.
	Results []ResourceResult `json:"results"`

	// Duration is the total wall time of the run.
	Duration time.Duration `json:"duration"`
}

// Failed reports whether any reconciliation failed.
func (r *RunResult) Failed() bool {
	return r.Summary.Failed > 0
}

// Summary aggregates reconciliation outcomes.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ResourceResult is the outcome of one resource reconciliation.
type ResourceResult struct {
	// ResourceID is the manifest identity.
	ResourceID string `json:"resource_id"`

	// Phase is the lifecycle phase that ran (create, update, delete).
	Phase string `json:"phase"`

	// Status is the terminal reconciliation status.
	Status stores.ReconcileStatus `json:"status"`

	// Error is the failure or skip reason, if any.
	Error string `json:"error,omitempty"`

	// ErrorClass is the engine error classification, if any.
	ErrorClass string `json:"error_class,omitempty"`

	// Duration is how long the reconciliation took.
	Duration time.Duration `json:"duration"`
}
