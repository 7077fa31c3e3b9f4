package policy

import (
	"time"

	"github.com/openhyve/openhyve/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that block the operation.
	SeverityError Severity = "error"

	// SeverityCritical is for violations that must never be overridden.
	SeverityCritical Severity = "critical"
)

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Resource is the resource ID that violated the policy.
	Resource string `json:"resource,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result represents the outcome of a policy evaluation.
type Result struct {
	// Allowed indicates if the operation may proceed.
	Allowed bool `json:"allowed"`

	// Violations lists blocking policy violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists violations that do not block the operation.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation occurred.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Reason returns a single-line summary of the blocking violations.
func (r *Result) Reason() string {
	if len(r.Violations) == 0 {
		return ""
	}
	return r.Violations[0].Message
}

// TeardownResource describes the resource a teardown evaluation targets.
type TeardownResource struct {
	// ID is the manifest resource identifier.
	ID string `json:"id"`

	// Type is the resource type (vm, container, storage, ...).
	Type string `json:"type"`

	// Node is the cluster node the resource lives on, if node-scoped.
	Node string `json:"node,omitempty"`

	// DeleteRequested is the manifest-level teardown opt-in for
	// resource types that do not tear down by default.
	DeleteRequested bool `json:"delete_requested"`

	// TeardownDefault is whether this resource type tears down
	// without an explicit opt-in.
	TeardownDefault bool `json:"teardown_default"`

	// Config is the desired configuration from the manifest.
	Config engine.ResourceConfig `json:"config,omitempty"`
}

// TeardownInput is the input document for teardown policy evaluation.
type TeardownInput struct {
	// Resource is the resource whose teardown is being gated.
	Resource *TeardownResource `json:"resource"`

	// Output is the previously stored normalized output, if any.
	Output engine.NormalizedOutput `json:"output,omitempty"`

	// Context provides evaluation context.
	Context *EvalContext `json:"context"`
}

// EvalContext provides context information for policy evaluation.
type EvalContext struct {
	// Environment is the deployment environment (e.g. "production").
	Environment string `json:"environment,omitempty"`

	// Operation is always "delete" for teardown evaluations.
	Operation string `json:"operation"`

	// DryRun indicates if this is a dry-run evaluation.
	DryRun bool `json:"dry_run"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`
}
