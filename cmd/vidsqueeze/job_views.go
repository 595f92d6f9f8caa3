package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vidsqueeze/internal/api"
	"vidsqueeze/internal/jobs"
)

var titleCaser = cases.Title(language.English)

// statusLabel renders a job status for humans ("running" -> "Running").
func statusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return "Unknown"
	}
	return titleCaser.String(status)
}

func formatSize(bytes int64) string {
	if bytes <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(bytes))
}

// formatAge renders an API timestamp relative to now.
func formatAge(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return humanize.Time(ts)
}

// formatRatio compares output to source size, e.g. "38%".
func formatRatio(job api.Job) string {
	if job.SourceSizeBytes <= 0 || job.OutputSizeBytes <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", float64(job.OutputSizeBytes)*100/float64(job.SourceSizeBytes))
}

func buildJobListRows(list []api.Job) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			job.ID,
			job.Name,
			statusLabel(job.Status),
			fmt.Sprintf("%d%%", job.ProgressPercent),
			job.Resolution,
			formatSize(job.SourceSizeBytes),
			formatSize(job.OutputSizeBytes),
			formatAge(job.CreatedAt),
		})
	}
	return rows
}

var jobListHeaders = []string{"ID", "Name", "Status", "Progress", "Res", "Source", "Output", "Created"}

var jobListAligns = []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft}

// buildStatusCountRows orders counts by lifecycle and skips empty statuses.
func buildStatusCountRows(counts map[string]int) [][]string {
	rows := make([][]string, 0, len(counts))
	for _, status := range jobs.AllStatuses() {
		count := counts[string(status)]
		if count == 0 {
			continue
		}
		rows = append(rows, []string{statusLabel(string(status)), fmt.Sprintf("%d", count)})
	}
	return rows
}

func printJobDetail(out io.Writer, job api.Job) {
	fields := [][2]string{
		{"ID", job.ID},
		{"Name", job.Name},
		{"Status", statusLabel(job.Status)},
		{"Progress", fmt.Sprintf("%d%%", job.ProgressPercent)},
		{"Resolution", job.Resolution},
		{"Source", job.SourcePath},
		{"Source size", formatSize(job.SourceSizeBytes)},
		{"Output", job.OutputPath},
		{"Output size", formatSize(job.OutputSizeBytes)},
		{"Ratio", formatRatio(job)},
		{"Strip metadata", yesNo(job.RemoveMetadata)},
		{"Created", formatAge(job.CreatedAt)},
		{"Updated", formatAge(job.UpdatedAt)},
	}
	if job.OutputDir != "" {
		fields = append(fields, [2]string{"Output dir", job.OutputDir})
	}
	if job.ErrorMessage != "" {
		fields = append(fields, [2]string{"Error", job.ErrorMessage})
	}
	for _, field := range fields {
		value := field[1]
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(out, "%-15s %s\n", field[0]+":", value)
	}
}
