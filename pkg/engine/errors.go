package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrorClass classifies a reconciliation error for recovery logic.
type ErrorClass string

const (
	// ErrorClassNotFound indicates the target object is absent on the
	// control plane. Ignorable during delete, fatal elsewhere.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassTransient indicates a transport-level failure of a
	// single call. Safe to retry for read-only status queries only.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassRejected indicates the control plane refused the
	// request (validation, conflict, permission). Always fatal.
	ErrorClassRejected ErrorClass = "rejected"

	// ErrorClassTaskFailed indicates the remote asynchronous task
	// itself completed unsuccessfully. Fatal.
	ErrorClassTaskFailed ErrorClass = "task_failed"

	// ErrorClassTimeout indicates polling exceeded its budget without
	// the task reaching a terminal state. Fatal, but distinct from
	// task_failed: the remote operation may still be running and the
	// caller should investigate rather than assume rollback.
	ErrorClassTimeout ErrorClass = "timeout"
)

// ReconcileError is a classified error surfaced by the engine.
type ReconcileError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Resource is the resource ID involved, if known.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error
	// occurred (e.g. "create", "poll").
	Operation string `json:"operation,omitempty"`

	// ExitInfo carries the control plane's diagnostic text for a
	// failed task.
	ExitInfo string `json:"exit_info,omitempty"`

	// Task is the handle of the remote task being awaited, if any.
	Task string `json:"task,omitempty"`

	// Budget is the polling budget in force when a timeout occurred.
	Budget time.Duration `json:"budget,omitempty"`

	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ReconcileError) Error() string {
	msg := e.Message
	if e.ExitInfo != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.ExitInfo)
	}
	if e.Resource != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (resource=%s, operation=%s)%s",
			e.Class, msg, e.Resource, e.Operation, e.unwrapSuffix())
	}
	if e.Resource != "" {
		return fmt.Sprintf("[%s] %s (resource=%s)%s", e.Class, msg, e.Resource, e.unwrapSuffix())
	}
	return fmt.Sprintf("[%s] %s%s", e.Class, msg, e.unwrapSuffix())
}

func (e *ReconcileError) unwrapSuffix() string {
	if e.Err != nil {
		return ": " + e.Err.Error()
	}
	return ""
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// Is implements class-based equality for errors.Is.
func (e *ReconcileError) Is(target error) bool {
	t, ok := target.(*ReconcileError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithResource adds resource context to the error.
func (e *ReconcileError) WithResource(resourceID string) *ReconcileError {
	e.Resource = resourceID
	return e
}

// WithOperation adds operation context to the error.
func (e *ReconcileError) WithOperation(operation string) *ReconcileError {
	e.Operation = operation
	return e
}

// WithTask adds the remote task handle and polling budget to the error.
func (e *ReconcileError) WithTask(task string, budget time.Duration) *ReconcileError {
	e.Task = task
	e.Budget = budget
	return e
}

// NewNotFoundError creates a not_found error.
func NewNotFoundError(message string, err error) *ReconcileError {
	return &ReconcileError{Class: ErrorClassNotFound, Message: message, Err: err}
}

// NewTransientError creates a transient error.
func NewTransientError(message string, err error) *ReconcileError {
	return &ReconcileError{Class: ErrorClassTransient, Message: message, Err: err}
}

// NewRejectedError creates a rejected error.
func NewRejectedError(message string, err error) *ReconcileError {
	return &ReconcileError{Class: ErrorClassRejected, Message: message, Err: err}
}

// NewTaskFailedError creates a task_failed error carrying the control
// plane's diagnostic text.
func NewTaskFailedError(exitInfo string) *ReconcileError {
	return &ReconcileError{
		Class:    ErrorClassTaskFailed,
		Message:  "remote task failed",
		ExitInfo: exitInfo,
	}
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(message string, err error) *ReconcileError {
	return &ReconcileError{Class: ErrorClassTimeout, Message: message, Err: err}
}

// IsNotFound returns true if the error represents "target already
// absent". This is the not-found classifier: it is consulted only on
// the delete path, where an absent target means the teardown already
// converged. On create/update paths a not-found error usually points
// at a missing parent object and must propagate.
func IsNotFound(err error) bool {
	var e *ReconcileError
	if errors.As(err, &e) {
		return e.Class == ErrorClassNotFound
	}
	return false
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *ReconcileError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsRejected returns true if the control plane refused the request.
func IsRejected(err error) bool {
	var e *ReconcileError
	if errors.As(err, &e) {
		return e.Class == ErrorClassRejected
	}
	return false
}

// IsTaskFailed returns true if a remote task completed unsuccessfully.
func IsTaskFailed(err error) bool {
	var e *ReconcileError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTaskFailed
	}
	return false
}

// IsTimeout returns true if polling exhausted its budget.
func IsTimeout(err error) bool {
	var e *ReconcileError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTimeout
	}
	return false
}

// ErrUpdateUnsupported is returned by providers whose resource kind has
// no update endpoint on the control plane. The dispatcher degrades the
// update phase to a pure read in that case.
var ErrUpdateUnsupported = errors.New("provider does not support update")
