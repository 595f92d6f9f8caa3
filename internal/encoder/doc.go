// Package encoder launches and supervises external ffmpeg processes, one per
// job.
//
// Supervisor owns the job id to process handle map. Each Handle delivers zero
// or more progress signals followed by exactly one terminal signal
// (completed, failed, or cancelled) on its Signals channel, which is then
// closed. Cancellation is recorded on the handle before the process group is
// killed, so a cancelled run is always reported as cancelled and never as a
// failure.
package encoder
