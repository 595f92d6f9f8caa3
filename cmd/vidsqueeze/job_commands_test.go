package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"vidsqueeze/internal/api"
	"vidsqueeze/internal/config"
	"vidsqueeze/internal/jobs"
	"vidsqueeze/internal/testsupport"
)

func submitOne(t *testing.T, env *cliTestEnv, args ...string) api.Job {
	t.Helper()
	out, stderr, err := runCLI(t, append([]string{"submit", "--json"}, args...), env.configPath)
	if err != nil {
		t.Fatalf("submit: %v (stderr %q)", err, stderr)
	}
	var resp api.JobListResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode submit output %q: %v", out, err)
	}
	if len(resp.Jobs) != 1 {
		t.Fatalf("expected one submitted job, got %+v", resp.Jobs)
	}
	return resp.Jobs[0]
}

func TestSubmitWatchListShow(t *testing.T) {
	env := setupCLITestEnv(t, quickEncoder)
	source := testsupport.Source(t, "clip.mp4")

	job := submitOne(t, env, source, "--resolution", "480p")
	if filepath.Base(job.OutputPath) != "clip_compressed_480p.mp4" {
		t.Fatalf("unexpected output path %q", job.OutputPath)
	}

	out, _, err := runCLI(t, []string{"watch", job.ID}, env.configPath)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	requireContains(t, out, job.ID)
	requireContains(t, out, "Done")

	data, err := os.ReadFile(job.OutputPath)
	if err != nil || string(data) != "encoded" {
		t.Fatalf("output = %q, %v", data, err)
	}

	out, _, err = runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "clip.mp4")
	requireContains(t, out, "Done")

	out, _, err = runCLI(t, []string{"list", "--status", "running"}, env.configPath)
	if err != nil {
		t.Fatalf("list running: %v", err)
	}
	requireContains(t, out, "No jobs")

	out, _, err = runCLI(t, []string{"show", job.ID}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "clip_compressed_480p.mp4")
	requireContains(t, out, "100%")
}

func TestCancelAndRemove(t *testing.T) {
	env := setupCLITestEnv(t, slowEncoder)
	job := submitOne(t, env, testsupport.Source(t, "long.mkv"))

	orch := env.daemon.Orchestrator()
	waitFor(t, 5*time.Second, func() bool {
		current, err := orch.Get(context.Background(), job.ID)
		return err == nil && current.ProgressPercent == 10
	})

	out, _, err := runCLI(t, []string{"cancel", job.ID}, env.configPath)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "cancelled")

	current, err := orch.Get(context.Background(), job.ID)
	if err != nil || current.Status != jobs.StatusCancelled {
		t.Fatalf("status after cancel = %+v, %v", current, err)
	}

	out, _, err = runCLI(t, []string{"cancel", job.ID}, env.configPath)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	requireContains(t, out, "is not running")

	out, _, err = runCLI(t, []string{"remove", job.ID}, env.configPath)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	requireContains(t, out, "removed")

	out, _, err = runCLI(t, []string{"remove", job.ID}, env.configPath)
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	requireContains(t, out, "not found")

	if _, _, err := runCLI(t, []string{"show", job.ID}, env.configPath); err == nil {
		t.Fatal("expected show of removed job to fail")
	}
}

func TestSubmitValidatesLocally(t *testing.T) {
	_, configPath := offlineConfig(t)
	source := testsupport.Source(t, "clip.mp4")

	tests := []struct {
		name string
		args []string
	}{
		{"bad resolution", []string{"submit", source, "--resolution", "4k"}},
		{"missing output dir", []string{"submit", source, "--output-dir", filepath.Join(t.TempDir(), "absent")}},
		{"not a video", []string{"submit", testsupport.Source(t, "notes.txt")}},
		{"name with many files", []string{"submit", source, testsupport.Source(t, "other.mkv"), "--name", "x"}},
		{"no args", []string{"submit"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args, configPath)
			if err == nil {
				t.Fatal("expected error")
			}
			if errContains(err, "connect to daemon") {
				t.Fatalf("expected local validation error, got %v", err)
			}
		})
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	_, configPath := offlineConfig(t)
	_, _, err := runCLI(t, []string{"list", "--status", "bogus"}, configPath)
	if err == nil || !errContains(err, "unknown status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestCommandsReportUnreachableDaemon(t *testing.T) {
	_, configPath := offlineConfig(t)
	_, _, err := runCLI(t, []string{"list"}, configPath)
	if err == nil || !errContains(err, "connect to daemon") {
		t.Fatalf("expected connect error, got %v", err)
	}
}

func TestTokenProtectedDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithEncoderScript(quickEncoder),
		testsupport.WithProbeDuration(10),
		testsupport.WithConfig(func(c *config.Config) { c.Paths.APIToken = "s3cret" }),
	)
	env := startEnv(t, cfg)

	if _, _, err := runCLI(t, []string{"list"}, env.configPath); err != nil {
		t.Fatalf("list with token: %v", err)
	}

	wrong := *cfg
	wrong.Paths.APIToken = "wrong"
	_, _, err := runCLI(t, []string{"list"}, writeTestConfig(t, &wrong))
	if err == nil {
		t.Fatal("expected unauthorized error")
	}
}

func TestRemoveMetadataFlagIsTriState(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	testsupport.WriteFile(t, src, 16)

	yes, no := true, false
	tests := []struct {
		name string
		args []string
		want *bool
	}{
		{"unset", nil, nil},
		{"enabled", []string{"--remove-metadata"}, &yes},
		{"explicit false", []string{"--remove-metadata=false"}, &no},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var flags submitFlags
			cmd := &cobra.Command{Use: "submit"}
			flags.register(cmd)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("parse flags: %v", err)
			}
			reqs, err := flags.requests([]string{src})
			if err != nil {
				t.Fatalf("requests: %v", err)
			}
			got := reqs[0].RemoveMetadata
			switch {
			case tt.want == nil && got != nil:
				t.Fatalf("expected unset, got %v", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Fatalf("expected %v, got %v", *tt.want, got)
			}
		})
	}
}
