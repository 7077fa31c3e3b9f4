package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in teardown policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		storageTeardownPolicy(),
		protectedResourcePolicy(),
		productionTeardownPolicy(),
	}
}

// storageTeardownPolicy warns when a data-bearing resource is about to
// be destructively removed. Deletes without the opt-in never issue a
// remote call, so they pass through without a verdict.
func storageTeardownPolicy() Policy {
	return Policy{
		Name:        "storage-teardown",
		Description: "Warns when a storage definition is destructively removed from the control plane",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"teardown", "storage", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openhyve.policies.storage

import rego.v1

deny contains violation if {
	input.resource
	resource := input.resource

	resource.type == "storage"
	resource.delete_requested

	violation := {
		"message": sprintf("Removing storage definition %s; volumes on the backing store are left in place", [resource.id]),
		"severity": "warning",
		"resource": resource.id,
	}
}`,
	}
}

// protectedResourcePolicy blocks teardown of resources marked protected.
func protectedResourcePolicy() Policy {
	return Policy{
		Name:        "protected-resources",
		Description: "Blocks teardown of resources with protection enabled in their configuration",
		Severity:    SeverityCritical,
		Enabled:     true,
		Tags:        []string{"teardown", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openhyve.policies.protected

import rego.v1

deny contains violation if {
	input.resource
	resource := input.resource

	resource.config.protection in [true, 1, "1", "true"]

	violation := {
		"message": sprintf("Cannot tear down resource %s with protection enabled", [resource.id]),
		"severity": "critical",
		"resource": resource.id,
	}
}

deny contains violation if {
	input.output
	input.resource
	resource := input.resource

	input.output.protection in [true, 1, "1", "true"]

	violation := {
		"message": sprintf("Cannot tear down resource %s: remote state reports protection enabled", [resource.id]),
		"severity": "critical",
		"resource": resource.id,
	}
}`,
	}
}

// productionTeardownPolicy warns about teardowns in production.
func productionTeardownPolicy() Policy {
	return Policy{
		Name:        "production-teardown",
		Description: "Warns when resources are torn down in a production environment",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"teardown", "production"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openhyve.policies.production

import rego.v1

deny contains violation if {
	input.context
	context := input.context

	context.environment == "production"
	context.operation == "delete"
	not context.dry_run

	violation := {
		"message": sprintf("Tearing down resource %s in production environment", [input.resource.id]),
		"severity": "warning",
		"resource": input.resource.id,
	}
}`,
	}
}
