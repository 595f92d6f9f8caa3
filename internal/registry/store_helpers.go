package registry

import (
	"strings"
	"time"

	"vidsqueeze/internal/jobs"
)

const jobColumns = `id, source_path, name, output_path, resolution, output_dir, remove_metadata,
    status, progress_percent, source_size_bytes, output_size_bytes, error_message,
    created_at, updated_at`

func scanJob(scanner interface{ Scan(dest ...any) error }) (jobs.Job, error) {
	var (
		job          jobs.Job
		name         *string
		outputPath   *string
		outputDir    *string
		errorMessage *string
		resolution   string
		status       string
		removeMeta   int
		createdAt    string
		updatedAt    string
	)
	if err := scanner.Scan(
		&job.ID,
		&job.SourcePath,
		&name,
		&outputPath,
		&resolution,
		&outputDir,
		&removeMeta,
		&status,
		&job.ProgressPercent,
		&job.SourceSizeBytes,
		&job.OutputSizeBytes,
		&errorMessage,
		&createdAt,
		&updatedAt,
	); err != nil {
		return jobs.Job{}, err
	}
	job.Name = derefString(name)
	job.OutputPath = derefString(outputPath)
	job.OutputDir = derefString(outputDir)
	job.ErrorMessage = derefString(errorMessage)
	job.Resolution = jobs.Resolution(resolution)
	job.Status = jobs.Status(status)
	job.RemoveMetadata = removeMeta != 0
	job.CreatedAt = parseTimeString(createdAt)
	job.UpdatedAt = parseTimeString(updatedAt)
	return job, nil
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
