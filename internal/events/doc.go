// Package events buffers outward job notifications and fans them out to
// long-poll readers and sinks.
//
// Two event types exist: progress (job id plus percent) and finished (job id
// plus outcome, output size on success, message on error). Every event gets
// a monotonically increasing sequence number so readers can resume with
// Fetch(since).
package events
