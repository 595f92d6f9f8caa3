// Package preflight provides readiness checks for the binaries, directories,
// and services vidsqueeze depends on.
//
// The daemon runs RunAll and CheckSystemDeps at startup and logs failures
// without refusing to start; a missing encoder surfaces later as a process
// start error on each job. The CLI "vidsqueeze status" command renders the
// same results as a table. CLI submissions validate --output-dir with
// CheckDirectoryAccess before contacting the daemon.
package preflight
