// Package orchestrator is the job façade: it validates submissions, resolves
// output paths, starts encoder processes, and turns their signals into
// registry transitions and outward events.
//
// Every state change for a job id runs under that id's lock, so Cancel and
// the signal drain for the same job never interleave. A job's encoder signals
// are applied only while its handle is the job's current run; signals from a
// superseded run are dropped.
//
// Concurrency is unbounded unless MaxConcurrent is set, in which case extra
// submissions wait in a FIFO backlog in the Queued state.
package orchestrator
