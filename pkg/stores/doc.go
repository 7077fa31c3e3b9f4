// Package stores provides persistence layer implementations for OpenHyve.
// It includes SQLite-based storage with WAL mode, connection pooling,
// and CRUD operations for runs, reconciliations, resource outputs,
// and events.
package stores
