// Package runner orchestrates reconciliation runs over a manifest.
//
// A run walks every manifest resource through the engine behind a
// bounded worker pool. The phase per resource is derived from stored
// state: destroy runs always delete; apply runs create resources with
// no stored output and update the rest. Teardowns pass through the
// policy gate before any destructive call is issued, and per-type
// teardown defaults (storage does not tear down without an explicit
// deleteRequested) are resolved from the provider registry.
//
// Successful reconciliations persist the normalized output; a terminal
// (empty) output removes the stored record so the resource is no
// longer tracked. Every reconciliation is recorded in the store with
// its status, error class, and duration, alongside an append-only
// event log.
package runner
