// Package engine implements the per-resource reconciliation core of
// OpenHyve: phase dispatch (create/update/delete), bounded polling for
// asynchronous control-plane tasks, idempotent teardown, and
// normalization of remote state into a stable output record.
//
// The engine is stateless. All continuity between reconciliations of
// the same resource travels through the previous output the caller
// passes back in, which makes a reconciliation trivially restartable
// after a crash. The caller guarantees at most one in-flight
// reconciliation per resource identity; see package runner.
package engine
