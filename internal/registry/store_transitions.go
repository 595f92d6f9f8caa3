package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vidsqueeze/internal/jobs"
)

// Fields carries the values a transition records alongside the new status.
// Only the fields relevant to the target status are applied.
type Fields struct {
	OutputPath      string
	OutputSizeBytes int64
	ErrorMessage    string
}

var validTransitions = map[jobs.Status][]jobs.Status{
	jobs.StatusQueued:  {jobs.StatusRunning},
	jobs.StatusRunning: {jobs.StatusDone, jobs.StatusError, jobs.StatusCancelled},
	jobs.StatusError:   {jobs.StatusRunning},
}

// CanTransition reports whether from -> to is an edge of the job state machine.
func CanTransition(from, to jobs.Status) bool {
	for _, candidate := range validTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Transition moves a job to status and applies the progress rules of the
// target state: running resets progress to 0, done forces 100, error resets
// to 0, and cancelled keeps the last observed value.
func (s *Store) Transition(ctx context.Context, id string, status jobs.Status, fields Fields) (jobs.Job, error) {
	ctx = ensureContext(ctx)
	var updated jobs.Job
	err := retryOnBusy(ctx, func() error {
		job, err := s.transitionTx(ctx, id, status, fields, func(from jobs.Status) bool {
			return CanTransition(from, status)
		})
		if err != nil {
			return err
		}
		updated = job
		return nil
	})
	if err != nil {
		return jobs.Job{}, err
	}
	return updated, nil
}

// RecordStartFailure moves a Queued job whose encoder never launched straight
// to Error. It is the one route into Error that skips Running.
func (s *Store) RecordStartFailure(ctx context.Context, id string, fields Fields) (jobs.Job, error) {
	ctx = ensureContext(ctx)
	var updated jobs.Job
	err := retryOnBusy(ctx, func() error {
		job, err := s.transitionTx(ctx, id, jobs.StatusError, fields, func(from jobs.Status) bool {
			return from == jobs.StatusQueued
		})
		if err != nil {
			return err
		}
		updated = job
		return nil
	})
	if err != nil {
		return jobs.Job{}, err
	}
	return updated, nil
}

func (s *Store) transitionTx(ctx context.Context, id string, status jobs.Status, fields Fields, allowed func(jobs.Status) bool) (jobs.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	job, err := scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return jobs.Job{}, fmt.Errorf("load job for transition: %w", err)
	}
	if !allowed(job.Status) {
		return jobs.Job{}, fmt.Errorf("%w: job %s %s -> %s", ErrInvalidTransition, id, job.Status, status)
	}

	applyTransition(&job, status, fields)
	job.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE jobs
        SET status = ?, output_path = ?, progress_percent = ?, output_size_bytes = ?,
            error_message = ?, updated_at = ?
        WHERE id = ?`,
		string(job.Status),
		nullableString(job.OutputPath),
		job.ProgressPercent,
		job.OutputSizeBytes,
		nullableString(job.ErrorMessage),
		formatTime(job.UpdatedAt),
		id,
	); err != nil {
		return jobs.Job{}, fmt.Errorf("apply transition: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return jobs.Job{}, fmt.Errorf("commit transition: %w", err)
	}
	return job, nil
}

func applyTransition(job *jobs.Job, status jobs.Status, fields Fields) {
	job.Status = status
	switch status {
	case jobs.StatusRunning:
		if fields.OutputPath != "" {
			job.OutputPath = fields.OutputPath
		}
		job.ProgressPercent = 0
		job.OutputSizeBytes = 0
		job.ErrorMessage = ""
	case jobs.StatusDone:
		job.ProgressPercent = 100
		job.OutputSizeBytes = fields.OutputSizeBytes
		job.ErrorMessage = ""
	case jobs.StatusError:
		if fields.OutputPath != "" {
			job.OutputPath = fields.OutputPath
		}
		job.ProgressPercent = 0
		job.ErrorMessage = fields.ErrorMessage
		if job.ErrorMessage == "" {
			job.ErrorMessage = "encode failed"
		}
	case jobs.StatusCancelled:
		job.ErrorMessage = ""
	}
}

// UpdateProgress records percent for a running job. It reports false without
// error when the job is no longer running or the value would move backwards.
func (s *Store) UpdateProgress(ctx context.Context, id string, percent int) (bool, error) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET progress_percent = ?, updated_at = ?
        WHERE id = ? AND status = ? AND progress_percent <= ?`,
		percent,
		formatTime(time.Now()),
		id,
		string(jobs.StatusRunning),
		percent,
	)
	if err != nil {
		return false, fmt.Errorf("update progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update progress rows: %w", err)
	}
	return affected > 0, nil
}
