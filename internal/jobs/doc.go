// Package jobs defines the transcoding job model shared by the orchestration
// core: statuses, resolution targets, submission settings, and the error
// markers used to classify failures.
//
// The types here carry no behaviour beyond validation and small derivations
// (scale heights, display names). State changes are owned by the registry and
// orchestrator packages.
package jobs
