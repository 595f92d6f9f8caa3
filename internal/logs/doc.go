// Package logs reads the daemon log file for the CLI: the last N lines, and
// an optional follow loop that picks up appended lines, optionally filtered
// to a single job.
package logs
