package stores

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// RunStatus represents the status of an apply or destroy run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// ReconcileStatus represents the status of one resource reconciliation
type ReconcileStatus string

const (
	ReconcileStatusPending   ReconcileStatus = "pending"
	ReconcileStatusRunning   ReconcileStatus = "running"
	ReconcileStatusSucceeded ReconcileStatus = "succeeded"
	ReconcileStatusFailed    ReconcileStatus = "failed"
	ReconcileStatusSkipped   ReconcileStatus = "skipped"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Run represents one apply or destroy invocation
type Run struct {
	ID           string     `json:"id"`
	ManifestPath string     `json:"manifest_path"`
	Phase        string     `json:"phase"` // apply or destroy
	Status       RunStatus  `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Error        *string    `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Reconciliation represents one resource reconciliation within a run
type Reconciliation struct {
	ID           string          `json:"id"`
	RunID        string          `json:"run_id"`
	ResourceID   string          `json:"resource_id"`
	ResourceType string          `json:"resource_type"`
	Phase        string          `json:"phase"` // create, update, delete
	Status       ReconcileStatus `json:"status"`
	TaskHandle   *string         `json:"task_handle,omitempty"`
	Error        *string         `json:"error,omitempty"`
	ErrorClass   *string         `json:"error_class,omitempty"`
	DurationMS   int64           `json:"duration_ms"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Output represents the last normalized output of a managed resource.
// An empty Output JSON object marks a resource whose teardown
// completed; the row is removed instead of stored.
type Output struct {
	ResourceID   string    `json:"resource_id"`
	ResourceType string    `json:"resource_type"`
	Output       string    `json:"output"` // JSON blob
	Version      int64     `json:"version"`
	LastRunID    string    `json:"last_run_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Event represents an append-only log event
type Event struct {
	ID         int64      `json:"id"`
	RunID      *string    `json:"run_id,omitempty"`
	ResourceID *string    `json:"resource_id,omitempty"`
	Level      EventLevel `json:"level"`
	Message    string     `json:"message"`
	Details    *string    `json:"details,omitempty"` // JSON blob
	Timestamp  time.Time  `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRunStatus(ctx context.Context, id string, status RunStatus, err *string) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)

	// Reconciliation operations
	CreateReconciliation(ctx context.Context, rec *Reconciliation) error
	UpdateReconciliation(ctx context.Context, id string, status ReconcileStatus, taskHandle, errMsg, errClass *string, durationMS int64) error
	ListReconciliationsByRun(ctx context.Context, runID string) ([]*Reconciliation, error)

	// Output operations
	UpsertOutput(ctx context.Context, output *Output) error
	GetOutput(ctx context.Context, resourceID string) (*Output, error)
	ListOutputs(ctx context.Context, limit, offset int) ([]*Output, error)
	DeleteOutput(ctx context.Context, resourceID string) error

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, runID *string, resourceID *string, level *EventLevel, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
