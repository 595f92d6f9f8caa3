package daemon_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidsqueeze/internal/api"
	"vidsqueeze/internal/config"
	"vidsqueeze/internal/daemon"
	"vidsqueeze/internal/events"
	"vidsqueeze/internal/testsupport"
)

const (
	quickEncoder = `#!/bin/sh
for last; do :; done
if [ "$1" = "-hide_banner" ] && [ "$2" = "-encoders" ]; then
  printf ' ------\n V....D libx264 H.264\n A....D aac AAC\n'
  exit 0
fi
printf 'out_time_us=5000000\nprogress=continue\n'
printf 'encoded' > "$last"
exit 0
`
	slowEncoder = `#!/bin/sh
printf 'out_time_us=1000000\nprogress=continue\n'
exec sleep 30
`
)

func testConfig(t *testing.T, encoder string) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t,
		testsupport.WithEncoderScript(encoder),
		testsupport.WithProbeDuration(10),
	)
}

func startDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *api.Client) {
	t.Helper()
	d, err := daemon.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return d, api.NewClient(d.APIAddress(), cfg.Paths.APIToken)
}

func writeSource(t *testing.T, name string) string {
	t.Helper()
	return testsupport.Source(t, name)
}

// waitFinished long-polls the event stream until id finishes.
func waitFinished(t *testing.T, client *api.Client, id string) []events.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var cursor uint64
	var seen []events.Event
	for {
		page, err := client.Events(ctx, cursor, true)
		if err != nil {
			t.Fatalf("events: %v (seen %+v)", err, seen)
		}
		cursor = page.Next
		for _, evt := range page.Events {
			if evt.JobID != id {
				continue
			}
			seen = append(seen, evt)
			if evt.Type == events.TypeFinished {
				return seen
			}
		}
	}
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t, quickEncoder)
	d, client := startDaemon(t, cfg)
	ctx := context.Background()

	status := d.Status(ctx)
	if !status.Running || status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected status %+v", status)
	}
	if len(status.Dependencies) != 3 {
		t.Fatalf("expected ffmpeg, ffprobe and encoder checks, got %+v", status.Dependencies)
	}
	for _, dep := range status.Dependencies {
		if !dep.Available {
			t.Fatalf("dependency %s unavailable: %s", dep.Name, dep.Detail)
		}
	}

	remote, err := client.Status(ctx)
	if err != nil || !remote.Running || remote.PID != os.Getpid() {
		t.Fatalf("remote status = %+v, %v", remote, err)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop(ctx)
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if _, err := client.Status(ctx); !errors.Is(err, api.ErrDaemonUnavailable) {
		t.Fatalf("expected API to be down, got %v", err)
	}
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	cfg := testConfig(t, quickEncoder)
	startDaemon(t, cfg)

	second, err := daemon.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer second.Close()
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected lock contention error")
	}
}

func TestDaemonSubmitOverHTTP(t *testing.T) {
	cfg := testConfig(t, quickEncoder)
	_, client := startDaemon(t, cfg)
	ctx := context.Background()
	src := writeSource(t, "clip.mp4")

	job, err := client.Submit(ctx, api.SubmitRequest{ID: "j1", SourcePath: src, Resolution: "480p"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != "running" || filepath.Base(job.OutputPath) != "clip_compressed_480p.mp4" {
		t.Fatalf("unexpected submitted job %+v", job)
	}

	evts := waitFinished(t, client, "j1")
	last := evts[len(evts)-1]
	if last.Status != events.OutcomeSuccess || last.OutputSizeBytes != int64(len("encoded")) {
		t.Fatalf("unexpected finish %+v", last)
	}
	if evts[0].Type != events.TypeProgress || evts[0].Percent != 50 {
		t.Fatalf("expected 50%% progress first, got %+v", evts[0])
	}

	got, err := client.Get(ctx, "j1")
	if err != nil || got.Status != "done" || got.ProgressPercent != 100 {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	list, err := client.List(ctx, "done")
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %+v, %v", list, err)
	}

	if _, err := client.Submit(ctx, api.SubmitRequest{SourcePath: filepath.Join(t.TempDir(), "missing.mp4")}); err == nil {
		t.Fatal("expected submission error for missing source")
	} else {
		var apiErr *api.Error
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
			t.Fatalf("expected 400, got %v", err)
		}
	}
}

func TestDaemonCancelRemoveAndShutdown(t *testing.T) {
	cfg := testConfig(t, slowEncoder)
	d, client := startDaemon(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := client.Submit(ctx, api.SubmitRequest{ID: id, SourcePath: writeSource(t, id+".mkv")}); err != nil {
			t.Fatalf("Submit %s: %v", id, err)
		}
	}

	cancelled, err := client.Cancel(ctx, "a")
	if err != nil || !cancelled {
		t.Fatalf("Cancel = %v, %v", cancelled, err)
	}
	if evts := waitFinished(t, client, "a"); evts[len(evts)-1].Status != events.OutcomeCancelled {
		t.Fatalf("expected cancelled, got %+v", evts)
	}
	if again, _ := client.Cancel(ctx, "a"); again {
		t.Fatal("second cancel must report false")
	}

	if err := client.Remove(ctx, "b"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := client.Get(ctx, "b"); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if err := client.Remove(ctx, "b"); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	d.Stop(stopCtx)
	job, err := d.Orchestrator().Get(ctx, "c")
	if err != nil || job.Status != "cancelled" {
		t.Fatalf("expected shutdown to cancel c, got %+v, %v", job, err)
	}
}

func TestDaemonRequiresToken(t *testing.T) {
	cfg := testConfig(t, quickEncoder)
	cfg.Paths.APIToken = "secret"
	d, client := startDaemon(t, cfg)

	if _, err := client.Status(context.Background()); err != nil {
		t.Fatalf("authorized status: %v", err)
	}
	anonymous := api.NewClient(d.APIAddress(), "")
	var apiErr *api.Error
	if _, err := anonymous.Status(context.Background()); !errors.As(err, &apiErr) || apiErr.StatusCode != 401 {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestDaemonEchoesRequestID(t *testing.T) {
	d, _ := startDaemon(t, testConfig(t, quickEncoder))
	url := "http://" + d.APIAddress() + "/api/status"

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	resp, err = http.Get(url)
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected generated request id")
	}
}
