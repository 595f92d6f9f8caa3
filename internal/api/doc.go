// Package api defines the wire types for the daemon's HTTP API and a client
// for it.
//
// # Key Types
//
// Job: transport representation of a job with progress, output, and error
// details.
//
// SubmitRequest: body of POST /api/jobs. Zero-valued settings fall back to
// the daemon's [jobs] defaults.
//
// EventsResponse: a page of outward events from GET /api/events together
// with the cursor for the next long-poll.
//
// DaemonStatus: runtime, admission, and dependency information.
//
// # Design Notes
//
// Field names are snake_case to match the event payloads. Timestamps use
// RFC3339 with milliseconds. Client maps HTTP 404 to ErrNotFound and
// connection failures to ErrDaemonUnavailable so callers can branch with
// errors.Is.
package api
