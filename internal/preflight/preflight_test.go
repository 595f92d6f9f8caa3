package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"vidsqueeze/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_Empty(t *testing.T) {
	if result := CheckDirectoryAccess("test", " "); result.Passed || result.Detail != "not configured" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func ntfyServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckNtfy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		pass   bool
	}{
		{"healthy", http.StatusOK, `{"healthy":true}`, true},
		{"unhealthy", http.StatusOK, `{"healthy":false}`, false},
		{"server error", http.StatusInternalServerError, ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := ntfyServer(t, tt.status, tt.body)
			result := CheckNtfy(context.Background(), srv.URL+"/encodes")
			if result.Passed != tt.pass {
				t.Fatalf("expected passed=%v, got %+v", tt.pass, result)
			}
		})
	}
}

func TestCheckNtfy_InvalidURL(t *testing.T) {
	if result := CheckNtfy(context.Background(), "encodes"); result.Passed {
		t.Fatal("expected failure for bare topic name")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()

	results := RunAll(context.Background(), &cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_IncludesOptionalChecks(t *testing.T) {
	srv := ntfyServer(t, http.StatusOK, `{"healthy":true}`)
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Jobs.OutputDir = filepath.Join(t.TempDir(), "missing")
	cfg.Notifications.NtfyTopic = srv.URL + "/encodes"

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Output directory" {
		t.Fatalf("expected only the output directory to fail, got %+v", failed)
	}
}

func TestCheckSystemDeps(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\nprintf 'Encoders:\\n ------\\n V....D libx264 H.264\\n A....D aac AAC\\n'\n"
	if err := os.WriteFile(ffmpeg, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Encoder.FFmpegBinary = ffmpeg
	cfg.Encoder.FFprobeBinary = filepath.Join(dir, "ffprobe")

	statuses := CheckSystemDeps(context.Background(), &cfg)
	if len(statuses) != 3 {
		t.Fatalf("expected binaries plus encoder check, got %+v", statuses)
	}
	if !statuses[0].Available || statuses[1].Available || !statuses[2].Available {
		t.Fatalf("unexpected statuses %+v", statuses)
	}
}
