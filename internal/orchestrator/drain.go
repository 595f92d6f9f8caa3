package orchestrator

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"vidsqueeze/internal/encoder"
	"vidsqueeze/internal/events"
	"vidsqueeze/internal/jobs"
	"vidsqueeze/internal/logging"
	"vidsqueeze/internal/registry"
)

const progressLogBucket = 10

// drain applies a run's signals until its channel closes.
func (o *Orchestrator) drain(handle *encoder.Handle) {
	defer o.wg.Done()
	sampler := logging.NewProgressSampler(progressLogBucket)
	for sig := range handle.Signals() {
		o.applySignal(handle, sig, sampler)
	}
	o.releaseSlot()
}

func (o *Orchestrator) applySignal(handle *encoder.Handle, sig encoder.Signal, sampler *logging.ProgressSampler) {
	unlock := o.locks.Lock(handle.JobID)
	defer unlock()

	if sig.Kind.Terminal() {
		defer o.resolver.Release(handle.OutputPath)
	}
	// A superseded run's file is still this run's leftovers.
	if sig.Kind == encoder.SignalFailed || sig.Kind == encoder.SignalCancelled {
		o.removePartialOutput(handle)
	}
	if !o.isCurrentRun(handle) {
		return
	}
	if sig.Kind.Terminal() {
		defer o.clearRun(handle)
	}

	switch sig.Kind {
	case encoder.SignalProgress:
		o.applyProgress(handle, sig.Percent, sampler)
	case encoder.SignalCompleted:
		o.applyCompleted(handle)
	case encoder.SignalFailed:
		o.applyFailed(handle, sig.Message)
	case encoder.SignalCancelled:
		o.applyCancelled(handle)
	}
}

func (o *Orchestrator) applyProgress(handle *encoder.Handle, percent int, sampler *logging.ProgressSampler) {
	updated, err := o.store.UpdateProgress(o.baseCtx, handle.JobID, percent)
	if err != nil {
		o.jobLogger(handle.JobID).Debug("progress update skipped", logging.Error(err))
		return
	}
	if !updated {
		return
	}
	o.hub.Publish(events.Progress(handle.JobID, percent))
	if sampler.ShouldLog(percent) {
		o.jobLogger(handle.JobID).Info("encode progress",
			logging.String(logging.FieldEventType, "job_progress"),
			logging.Int("percent", percent),
		)
	}
}

func (o *Orchestrator) applyCompleted(handle *encoder.Handle) {
	logger := o.jobLogger(handle.JobID)
	size := o.outputSize(handle)
	if _, err := o.store.Transition(o.baseCtx, handle.JobID, jobs.StatusDone, registry.Fields{OutputSizeBytes: size}); err != nil {
		logging.ErrorWithContext(logger, "record completion failed", "job_transition_failed", logging.Error(err))
		return
	}
	o.hub.Publish(events.Finished(handle.JobID, events.OutcomeSuccess, size, ""))
	logger.Info("encode completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.String("output", handle.OutputPath),
		logging.Int64("output_size_bytes", size),
		logging.Duration("elapsed", time.Since(handle.StartedAt).Round(time.Millisecond)),
	)
}

func (o *Orchestrator) applyFailed(handle *encoder.Handle, message string) {
	logger := o.jobLogger(handle.JobID)
	cause := jobs.Wrap(jobs.ErrEncode, "encode", message, nil)
	if message == "" {
		message = cause.Error()
	}
	if _, err := o.store.Transition(o.baseCtx, handle.JobID, jobs.StatusError, registry.Fields{ErrorMessage: message}); err != nil {
		logging.ErrorWithContext(logger, "record failure failed", "job_transition_failed", logging.Error(err))
		return
	}
	o.hub.Publish(events.Finished(handle.JobID, events.OutcomeError, 0, message))
	logging.ErrorWithContext(logger, "encode failed", "job_failed",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "inspect the source with ffprobe and resubmit"),
	)
}

// applyCancelled confirms a termination the orchestrator requested. A
// cancellation that bypassed Cancel still leaves the job Cancelled.
func (o *Orchestrator) applyCancelled(handle *encoder.Handle) {
	logger := o.jobLogger(handle.JobID)
	job, err := o.store.Get(o.baseCtx, handle.JobID)
	if errors.Is(err, registry.ErrNotFound) {
		logger.Debug("encoder termination confirmed for removed job")
		return
	}
	if err != nil {
		logger.Debug("load job after termination failed", logging.Error(err))
		return
	}
	if job.Status == jobs.StatusRunning {
		if _, err := o.store.Transition(o.baseCtx, handle.JobID, jobs.StatusCancelled, registry.Fields{}); err != nil {
			logging.ErrorWithContext(logger, "record cancellation failed", "job_transition_failed", logging.Error(err))
			return
		}
		o.hub.Publish(events.Finished(handle.JobID, events.OutcomeCancelled, 0, ""))
	}
	logger.Debug("encoder termination confirmed", logging.String(logging.FieldEventType, "job_cancel_confirmed"))
}

func (o *Orchestrator) outputSize(handle *encoder.Handle) int64 {
	info, err := os.Stat(handle.OutputPath)
	if err != nil {
		logging.WarnWithContext(o.jobLogger(handle.JobID), "output size unavailable", "output_stat_failed",
			logging.Error(jobs.Wrap(jobs.ErrOutputStat, "stat output", handle.OutputPath, err)),
			logging.String(logging.FieldImpact, "output size reported as 0"),
			logging.String(logging.FieldErrorHint, "confirm the output file exists"),
		)
		return 0
	}
	return info.Size()
}

func (o *Orchestrator) removePartialOutput(handle *encoder.Handle) {
	if !o.removePartial || handle.OutputPath == "" {
		return
	}
	if err := os.Remove(handle.OutputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(o.jobLogger(handle.JobID), "remove partial output failed", "partial_output_cleanup_failed",
			logging.Error(err),
			logging.String("output", handle.OutputPath),
			logging.String(logging.FieldImpact, "an incomplete file remains on disk"),
			logging.String(logging.FieldErrorHint, "delete the file manually"),
		)
	}
}
