package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vidsqueeze/internal/config"
	"vidsqueeze/internal/encoder"
	"vidsqueeze/internal/events"
	"vidsqueeze/internal/outputpath"
	"vidsqueeze/internal/testsupport"
)

const (
	// Reports 25% and 50% of a 10s source, then finishes without a 100% block.
	succeedScript = `#!/bin/sh
for last; do :; done
printf 'out_time_us=2500000\nprogress=continue\n'
printf 'out_time_us=5000000\nprogress=continue\n'
printf 'payload' > "$last"
exit 0
`
	hangScript = `#!/bin/sh
exec sleep 30
`
	hangAfterProgressScript = `#!/bin/sh
printf 'out_time_us=1000000\nprogress=continue\n'
exec sleep 30
`
	partialFailScript = `#!/bin/sh
for last; do :; done
printf 'partial' > "$last"
echo "Conversion failed!" >&2
exit 1
`
)

// flagScript fails until flag exists, then succeeds.
func flagScript(flag string) string {
	return `#!/bin/sh
for last; do :; done
if [ -f "` + flag + `" ]; then
  printf 'out_time_us=9000000\nprogress=continue\n'
  printf 'payload' > "$last"
  exit 0
fi
echo "Invalid data found when processing input" >&2
exit 1
`
}

type harness struct {
	orch     *Orchestrator
	hub      *events.Hub
	resolver *outputpath.Resolver
	dir      string
}

func newHarness(t *testing.T, script string, mutate func(*Options)) *harness {
	t.Helper()
	dir := t.TempDir()
	binary := filepath.Join(dir, "bin", "ffmpeg")
	if script != "" {
		testsupport.WriteScript(t, binary, script)
	}

	store := testsupport.MustOpenRegistry(t)
	hub := events.NewHub(256)
	resolver := outputpath.New(outputpath.Options{})
	supervisor := encoder.NewSupervisor(encoder.Config{
		Probe: func(context.Context, string) (time.Duration, error) { return 10 * time.Second, nil },
	})
	enc := config.Default().Encoder
	enc.FFmpegBinary = binary
	opts := Options{Encoder: enc}
	if mutate != nil {
		mutate(&opts)
	}
	orch, err := New(Deps{Store: store, Supervisor: supervisor, Resolver: resolver, Hub: hub}, opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
		_ = orch.Close()
	})
	return &harness{orch: orch, hub: hub, resolver: resolver, dir: dir}
}

func (h *harness) source(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	testsupport.WriteFile(t, path, 1024)
	return path
}

// watcher accumulates hub events across waits.
type watcher struct {
	hub    *events.Hub
	cursor uint64
	seen   []events.Event
}

func (h *harness) watch() *watcher {
	return &watcher{hub: h.hub}
}

func (w *watcher) forJob(id string) []events.Event {
	var out []events.Event
	for _, evt := range w.seen {
		if evt.JobID == id {
			out = append(out, evt)
		}
	}
	return out
}

func (w *watcher) finished(id string) []events.Event {
	var out []events.Event
	for _, evt := range w.forJob(id) {
		if evt.Type == events.TypeFinished {
			out = append(out, evt)
		}
	}
	return out
}

// waitFinished blocks until id has at least n finished events and returns
// every event seen for id.
func (w *watcher) waitFinished(t *testing.T, id string, n int) []events.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for len(w.finished(id)) < n {
		batch, next, err := w.hub.Fetch(ctx, w.cursor, 0, true)
		if err != nil {
			t.Fatalf("waiting for %d finished events for %s: %v (seen %+v)", n, id, err, w.forJob(id))
		}
		w.seen = append(w.seen, batch...)
		w.cursor = next
	}
	return w.forJob(id)
}

// drainNow collects any events already published without blocking.
func (w *watcher) drainNow() {
	batch, next, _ := w.hub.Fetch(context.Background(), w.cursor, 0, false)
	w.seen = append(w.seen, batch...)
	w.cursor = next
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
