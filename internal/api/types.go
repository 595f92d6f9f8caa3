package api

import (
	"time"

	"vidsqueeze/internal/events"
	"vidsqueeze/internal/jobs"
	"vidsqueeze/internal/orchestrator"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a job in a transport-friendly format.
type Job struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	SourcePath      string `json:"source_path"`
	OutputPath      string `json:"output_path,omitempty"`
	OutputDir       string `json:"output_dir,omitempty"`
	Resolution      string `json:"resolution"`
	RemoveMetadata  bool   `json:"remove_metadata"`
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	SourceSizeBytes int64  `json:"source_size_bytes"`
	OutputSizeBytes int64  `json:"output_size_bytes,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// FromJob converts a registry job to its wire form.
func FromJob(job jobs.Job) Job {
	return Job{
		ID:              job.ID,
		Name:            job.DisplayName(),
		SourcePath:      job.SourcePath,
		OutputPath:      job.OutputPath,
		OutputDir:       job.OutputDir,
		Resolution:      string(job.Resolution),
		RemoveMetadata:  job.RemoveMetadata,
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent,
		SourceSizeBytes: job.SourceSizeBytes,
		OutputSizeBytes: job.OutputSizeBytes,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       formatTime(job.CreatedAt),
		UpdatedAt:       formatTime(job.UpdatedAt),
	}
}

// FromJobs converts a slice of registry jobs.
func FromJobs(list []jobs.Job) []Job {
	out := make([]Job, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// SubmitRequest is the body of a job submission.
type SubmitRequest struct {
	ID             string `json:"id,omitempty"`
	SourcePath     string `json:"source_path"`
	Name           string `json:"name,omitempty"`
	Resolution     string `json:"resolution,omitempty"`
	OutputDir      string `json:"output_dir,omitempty"`
	RemoveMetadata *bool  `json:"remove_metadata,omitempty"`
}

// OrchestratorRequest converts the wire request for Orchestrator.Submit.
func (r SubmitRequest) OrchestratorRequest() orchestrator.Request {
	return orchestrator.Request{
		ID:         r.ID,
		SourcePath: r.SourcePath,
		Name:       r.Name,
		Resolution:     jobs.Resolution(r.Resolution),
		OutputDir:      r.OutputDir,
		RemoveMetadata: r.RemoveMetadata,
	}
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// CancelResponse reports whether a running process was terminated.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// EventsResponse is one page of the outward event stream.
type EventsResponse struct {
	Events []events.Event `json:"events"`
	Next   uint64         `json:"next"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool                  `json:"running"`
	PID          int                   `json:"pid"`
	LockFilePath string                `json:"lock_file_path"`
	LogPath      string                `json:"log_path,omitempty"`
	Counts       map[string]int        `json:"counts"`
	Admission    orchestrator.Snapshot `json:"admission"`
	Dependencies []DependencyStatus    `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
