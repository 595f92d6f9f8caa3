package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"vidsqueeze/internal/jobs"
)

// Put inserts job, replacing any existing row with the same id. A zero status
// is stored as queued.
func (s *Store) Put(ctx context.Context, job jobs.Job) (jobs.Job, error) {
	if strings.TrimSpace(job.ID) == "" {
		return jobs.Job{}, errors.New("put job: id is required")
	}
	if strings.TrimSpace(job.SourcePath) == "" {
		return jobs.Job{}, errors.New("put job: source path is required")
	}
	if job.Status == "" {
		job.Status = jobs.StatusQueued
	}
	if _, ok := jobs.ParseStatus(string(job.Status)); !ok {
		return jobs.Job{}, fmt.Errorf("put job: unknown status %q", job.Status)
	}
	if job.Resolution == "" {
		job.Resolution = jobs.DefaultResolution
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            source_path = excluded.source_path,
            name = excluded.name,
            output_path = excluded.output_path,
            resolution = excluded.resolution,
            output_dir = excluded.output_dir,
            remove_metadata = excluded.remove_metadata,
            status = excluded.status,
            progress_percent = excluded.progress_percent,
            source_size_bytes = excluded.source_size_bytes,
            output_size_bytes = excluded.output_size_bytes,
            error_message = excluded.error_message,
            created_at = excluded.created_at,
            updated_at = excluded.updated_at`,
		job.ID,
		job.SourcePath,
		nullableString(job.Name),
		nullableString(job.OutputPath),
		string(job.Resolution),
		nullableString(job.OutputDir),
		boolToInt(job.RemoveMetadata),
		string(job.Status),
		job.ProgressPercent,
		job.SourceSizeBytes,
		job.OutputSizeBytes,
		nullableString(job.ErrorMessage),
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("put job: %w", err)
	}
	return s.Get(ctx, job.ID)
}

// Get fetches a job by id, returning ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, id string) (jobs.Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return jobs.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs in submission order, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...jobs.Status) ([]jobs.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []jobs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// Remove deletes a job. It reports whether a row existed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove job rows: %w", err)
	}
	return affected > 0, nil
}

// Stats returns job counts keyed by status.
func (s *Store) Stats(ctx context.Context) (map[jobs.Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[jobs.Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[jobs.Status(status)] = count
	}
	return stats, rows.Err()
}
