// Package registry holds the authoritative per-job state for the
// orchestration core and enforces the job state machine.
//
// The Store keeps rows in a private in-memory SQLite database: one pinned
// connection, nothing written to disk, so job history never survives a
// restart. Transitions are validated and applied inside a single transaction
// so readers always observe a consistent row. The registry never holds
// process handles; inspecting it cannot affect a running encode.
//
// Valid transitions are queued->running, running->{done,error,cancelled}, and
// error->running. Everything else is rejected with ErrInvalidTransition.
package registry
