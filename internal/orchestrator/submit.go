package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"vidsqueeze/internal/encoder"
	"vidsqueeze/internal/events"
	"vidsqueeze/internal/jobs"
	"vidsqueeze/internal/logging"
	"vidsqueeze/internal/registry"
)

// Request is one submission. Empty fields fall back to the orchestrator
// defaults; an empty ID gets a generated one.
type Request struct {
	ID         string          `json:"id,omitempty"`
	SourcePath string          `json:"source_path"`
	Name       string          `json:"name,omitempty"`
	Resolution jobs.Resolution `json:"resolution,omitempty"`
	OutputDir  string          `json:"output_dir,omitempty"`
	// RemoveMetadata is nil when the caller did not choose; an explicit
	// false keeps metadata even when the default strips it.
	RemoveMetadata *bool `json:"remove_metadata,omitempty"`
}

// Submit validates req, records the job, and starts its encoder unless the
// admission limit parks it in the backlog. Bad input is reported synchronously
// with jobs.ErrSubmission; a failed process launch is not an error here but
// leaves the job in Error and emits a finished event.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (jobs.Job, error) {
	job, err := o.prepare(req)
	if err != nil {
		return jobs.Job{}, err
	}

	unlock := o.locks.Lock(job.ID)
	defer unlock()

	if o.isClosed() {
		return jobs.Job{}, jobs.Wrap(jobs.ErrSubmission, "submit", "orchestrator is shutting down", nil)
	}

	existing, err := o.store.Get(ctx, job.ID)
	switch {
	case errors.Is(err, registry.ErrNotFound):
	case err != nil:
		return jobs.Job{}, fmt.Errorf("submit %s: %w", job.ID, err)
	case existing.Status == jobs.StatusRunning:
		return jobs.Job{}, jobs.Wrap(jobs.ErrSubmission, "submit", fmt.Sprintf("job %s is already running", job.ID), nil)
	case o.inBacklog(job.ID):
		return jobs.Job{}, jobs.Wrap(jobs.ErrSubmission, "submit", fmt.Sprintf("job %s is already queued", job.ID), nil)
	case existing.Status.Resumable():
		// Same entity, restarted from Queued.
		job.CreatedAt = existing.CreatedAt
		o.jobLogger(job.ID).Info("resubmitting job",
			logging.String("previous_status", string(existing.Status)),
		)
	default:
		o.jobLogger(job.ID).Info("replacing finished job with new submission",
			logging.String("previous_status", string(existing.Status)),
		)
	}

	stored, err := o.store.Put(ctx, job)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("submit %s: %w", job.ID, err)
	}

	if !o.admit(stored.ID) {
		o.jobLogger(stored.ID).Info("job queued behind concurrency limit",
			logging.String("source", stored.SourcePath),
			logging.Int("max_concurrent", o.maxConcurrent),
		)
		return stored, nil
	}
	return o.launch(ctx, stored), nil
}

func (o *Orchestrator) prepare(req Request) (jobs.Job, error) {
	source := strings.TrimSpace(req.SourcePath)
	if source == "" {
		return jobs.Job{}, jobs.Wrap(jobs.ErrSubmission, "submit", "source path is required", nil)
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return jobs.Job{}, jobs.Wrap(jobs.ErrSubmission, "submit", "resolve source path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return jobs.Job{}, jobs.Wrap(jobs.ErrSubmission, "submit", "source is not readable", err)
	}
	if !info.Mode().IsRegular() {
		return jobs.Job{}, jobs.Wrap(jobs.ErrSubmission, "submit", abs+" is not a regular file", nil)
	}
	file, err := os.Open(abs)
	if err != nil {
		return jobs.Job{}, jobs.Wrap(jobs.ErrSubmission, "submit", "source is not readable", err)
	}
	_ = file.Close()

	requested := req.Resolution
	if requested == "" {
		requested = o.defaults.Resolution
	}
	resolution, err := jobs.ParseResolution(string(requested))
	if err != nil {
		return jobs.Job{}, jobs.Wrap(jobs.ErrSubmission, "submit", "", err)
	}
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		outputDir = o.defaults.OutputDir
	}
	if outputDir != "" {
		if outputDir, err = filepath.Abs(outputDir); err != nil {
			return jobs.Job{}, jobs.Wrap(jobs.ErrSubmission, "submit", "resolve output directory", err)
		}
		dirInfo, err := os.Stat(outputDir)
		if err != nil {
			return jobs.Job{}, jobs.Wrap(jobs.ErrSubmission, "submit", "output directory unavailable", err)
		}
		if !dirInfo.IsDir() {
			return jobs.Job{}, jobs.Wrap(jobs.ErrSubmission, "submit", outputDir+" is not a directory", nil)
		}
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = filepath.Base(abs)
	}
	removeMetadata := o.defaults.RemoveMetadata
	if req.RemoveMetadata != nil {
		removeMetadata = *req.RemoveMetadata
	}

	return jobs.Job{
		ID:              id,
		SourcePath:      abs,
		Name:            name,
		Resolution:      resolution,
		OutputDir:       outputDir,
		RemoveMetadata:  removeMetadata,
		Status:          jobs.StatusQueued,
		SourceSizeBytes: info.Size(),
	}, nil
}

// launch starts the encoder for job. The caller holds the job lock and an
// admission slot, which is handed back if the process never starts.
func (o *Orchestrator) launch(ctx context.Context, job jobs.Job) jobs.Job {
	logger := o.jobLogger(job.ID)

	output, err := o.resolver.Resolve(job.SourcePath, job.OutputDir, job.Resolution)
	if err != nil {
		return o.failStart(ctx, job, "", jobs.Wrap(jobs.ErrProcessStart, "resolve output path", "", err))
	}

	opts := encoder.OptionsFromConfig(o.encoder, job.Settings())
	handle, err := o.supervisor.Start(ctx, job.ID, job.SourcePath, output, opts)
	if err != nil {
		o.resolver.Discard(output)
		return o.failStart(ctx, job, output, err)
	}

	o.setRun(job.ID, handle)
	o.wg.Add(1)
	go o.drain(handle)

	running, err := o.store.Transition(ctx, job.ID, jobs.StatusRunning, registry.Fields{OutputPath: output})
	if err != nil {
		logging.ErrorWithContext(logger, "record running state failed; stopping encoder", "job_transition_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "resubmit the job"),
		)
		o.supervisor.Cancel(job.ID)
		return job
	}

	logger.Info("encode started",
		logging.String(logging.FieldEventType, "job_started"),
		logging.String("source", job.SourcePath),
		logging.String("output", output),
		logging.String("resolution", string(job.Resolution)),
		logging.Int("pid", handle.PID()),
	)
	return running
}

// failStart records a process start failure. The job never held a process,
// so it moves from Queued straight to Error.
func (o *Orchestrator) failStart(ctx context.Context, job jobs.Job, output string, cause error) jobs.Job {
	defer o.releaseSlot()
	logger := o.jobLogger(job.ID)
	message := cause.Error()

	failed, err := o.store.RecordStartFailure(ctx, job.ID, registry.Fields{OutputPath: output, ErrorMessage: message})
	if err != nil {
		logging.ErrorWithContext(logger, "record start failure failed", "job_transition_failed", logging.Error(err))
		failed = job
	}
	o.hub.Publish(events.Finished(job.ID, events.OutcomeError, 0, message))
	logging.ErrorWithContext(logger, "encoder failed to start", "job_start_failed",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "check encoder.ffmpeg_binary and the output directory"),
	)
	return failed
}
