package jobs

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusDone,
	StatusError,
	StatusCancelled,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus normalizes a user-supplied status string.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further signals are expected for the run.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDone, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// Resumable reports whether a fresh submit may move the job into Running
// without replacing the job entity.
func (s Status) Resumable() bool {
	return s == StatusQueued || s == StatusError
}

// Resolution is the target output height preset.
type Resolution string

const (
	Resolution480p  Resolution = "480p"
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

// DefaultResolution is used when a submission does not name a target.
const DefaultResolution = Resolution720p

var resolutionHeights = map[Resolution]int{
	Resolution480p:  480,
	Resolution720p:  720,
	Resolution1080p: 1080,
}

// Resolutions lists supported targets from smallest to largest.
func Resolutions() []Resolution {
	return []Resolution{Resolution480p, Resolution720p, Resolution1080p}
}

// ParseResolution accepts "720p", "720", or "720P".
func ParseResolution(value string) (Resolution, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return DefaultResolution, nil
	}
	if !strings.HasSuffix(trimmed, "p") {
		trimmed += "p"
	}
	res := Resolution(trimmed)
	if _, ok := resolutionHeights[res]; !ok {
		return "", fmt.Errorf("unsupported resolution %q (want 480p, 720p, or 1080p)", value)
	}
	return res, nil
}

// Height returns the nominal output height in pixels, or 0 for unknown values.
func (r Resolution) Height() int {
	return resolutionHeights[r]
}

// Valid reports whether r is a supported target.
func (r Resolution) Valid() bool {
	_, ok := resolutionHeights[r]
	return ok
}

// Settings captures per-submission encode choices.
type Settings struct {
	Resolution     Resolution `json:"resolution"`
	OutputDir      string     `json:"output_dir,omitempty"`
	RemoveMetadata bool       `json:"remove_metadata"`
}

// Job is one transcoding unit tied to a single source file.
type Job struct {
	ID              string     `json:"id"`
	SourcePath      string     `json:"source_path"`
	Name            string     `json:"name"`
	OutputPath      string     `json:"output_path,omitempty"`
	Resolution      Resolution `json:"resolution"`
	OutputDir       string     `json:"output_dir,omitempty"`
	RemoveMetadata  bool       `json:"remove_metadata"`
	Status          Status     `json:"status"`
	ProgressPercent int        `json:"progress_percent"`
	SourceSizeBytes int64      `json:"source_size_bytes"`
	OutputSizeBytes int64      `json:"output_size_bytes,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Settings returns the submission settings recorded on the job.
func (j Job) Settings() Settings {
	return Settings{
		Resolution:     j.Resolution,
		OutputDir:      j.OutputDir,
		RemoveMetadata: j.RemoveMetadata,
	}
}

// DisplayName returns the caller-supplied name or the source base name.
func (j Job) DisplayName() string {
	if name := strings.TrimSpace(j.Name); name != "" {
		return name
	}
	return filepath.Base(j.SourcePath)
}
