// Package main hosts the vidsqueeze CLI entrypoint and command graph.
//
// The Cobra command tree either talks to a running daemon over its HTTP API
// (submit, list, show, cancel, remove, watch) or drives an in-process
// orchestrator for one-shot batches (encode). Daemon lifecycle commands
// launch and stop the background process; config commands scaffold and
// validate the TOML file.
//
// Keep this package lean: behavior belongs in internal packages and is only
// surfaced here through flags and rendering.
package main
