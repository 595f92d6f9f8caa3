// Package daemon coordinates the long-running vidsqueeze process.
//
// It wires configuration, the job orchestrator, the outward event hub, and
// ntfy notifications into a single lifecycle with flock-based locking to
// prevent multiple instances. The HTTP API exposes submission, cancellation,
// removal, job listing, and a long-poll event stream. Stop cancels every
// running encode before releasing the lock.
package daemon
