package outputpath

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"vidsqueeze/internal/jobs"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestResolveUsesSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "clip.mp4")
	touch(t, source)

	r := New(Options{})
	got, err := r.Resolve(source, "", jobs.Resolution720p)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	want := filepath.Join(dir, "clip_compressed_720p.mp4")
	if got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveAppendsCounterWhenTaken(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "clip.mp4")
	touch(t, filepath.Join(dir, "clip_compressed_720p.mp4"))

	got, err := New(Options{}).Resolve(source, "", jobs.Resolution720p)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	want := filepath.Join(dir, "clip_compressed_720p (1).mp4")
	if got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveSkipsNPreexistingCandidates(t *testing.T) {
	for _, n := range []int{1, 2, 5, 12} {
		dir := t.TempDir()
		source := filepath.Join(dir, "movie.mkv")
		for i := 0; i < n; i++ {
			touch(t, filepath.Join(dir, BaseName(source, jobs.Resolution1080p, "mp4", i)))
		}
		got, err := New(Options{}).Resolve(source, "", jobs.Resolution1080p)
		if err != nil {
			t.Fatalf("n=%d: Resolve returned error: %v", n, err)
		}
		want := filepath.Join(dir, BaseName(source, jobs.Resolution1080p, "mp4", n))
		if got != want {
			t.Fatalf("n=%d: Resolve = %q, want %q", n, got, want)
		}
		if _, err := os.Stat(got); !os.IsNotExist(err) {
			t.Fatalf("n=%d: resolved path should not exist yet", n)
		}
	}
}

func TestResolveHonoursOverrideDirectory(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	source := filepath.Join(srcDir, "trip.mov")

	got, err := New(Options{Container: ".mp4"}).Resolve(source, outDir, jobs.Resolution480p)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if want := filepath.Join(outDir, "trip_compressed_480p.mp4"); got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}

	blank, err := New(Options{}).Resolve(source, "   ", jobs.Resolution480p)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if want := filepath.Join(srcDir, "trip_compressed_480p.mp4"); blank != want {
		t.Fatalf("blank override should fall back to source dir: %q", blank)
	}
}

func TestResolveReservesUntilRelease(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "clip.mp4")
	r := New(Options{})

	first, err := r.Resolve(source, "", jobs.Resolution720p)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := r.Resolve(source, "", jobs.Resolution720p)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct reservations, both %q", first)
	}
	if r.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", r.Pending())
	}
	r.Release(first)
	third, err := r.Resolve(source, "", jobs.Resolution720p)
	if err != nil {
		t.Fatalf("third Resolve: %v", err)
	}
	if third != first {
		t.Fatalf("released path should be reusable, got %q want %q", third, first)
	}
}

func TestResolveConcurrentCallersGetUniquePaths(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "clip.mp4")
	r := New(Options{})

	const callers = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		paths = make(map[string]struct{}, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path, err := r.Resolve(source, "", jobs.Resolution720p)
			if err != nil {
				t.Errorf("Resolve: %v", err)
				return
			}
			mu.Lock()
			paths[path] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(paths) != callers {
		t.Fatalf("expected %d unique paths, got %d", callers, len(paths))
	}
}

func TestResolveExclusiveCreatesFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "clip.mp4")
	r := New(Options{Exclusive: true})

	got, err := r.Resolve(source, "", jobs.Resolution720p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	info, err := os.Stat(got)
	if err != nil {
		t.Fatalf("expected exclusive placeholder: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("placeholder should be empty, size %d", info.Size())
	}

	r.Release(got)
	next, err := r.Resolve(source, "", jobs.Resolution720p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if next == got {
		t.Fatal("placeholder on disk must push the next caller to a new name")
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	r := New(Options{})
	if _, err := r.Resolve("", "", jobs.Resolution720p); err == nil {
		t.Fatal("expected error for empty source")
	}
	if _, err := r.Resolve("/tmp/a.mp4", "", jobs.Resolution("999p")); err == nil {
		t.Fatal("expected error for invalid resolution")
	}
}

func TestBaseNameWithoutExtension(t *testing.T) {
	if got := BaseName("/v/raw", jobs.Resolution720p, "mp4", 0); got != "raw_compressed_720p.mp4" {
		t.Fatalf("BaseName = %q", got)
	}
	if got := BaseName("/v/archive.tar.mkv", jobs.Resolution480p, "mp4", 3); got != "archive.tar_compressed_480p (3).mp4" {
		t.Fatalf("BaseName = %q", got)
	}
}

func TestDiscardRemovesEmptyPlaceholder(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "clip.mp4")
	r := New(Options{Exclusive: true})

	got, err := r.Resolve(source, "", jobs.Resolution480p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	r.Discard(got)
	if _, err := os.Stat(got); !os.IsNotExist(err) {
		t.Fatalf("expected placeholder removed, stat err=%v", err)
	}
	if r.Pending() != 0 {
		t.Fatalf("expected no pending reservations, got %d", r.Pending())
	}

	plain := New(Options{})
	kept, err := plain.Resolve(source, "", jobs.Resolution480p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	touch(t, kept)
	plain.Discard(kept)
	if _, err := os.Stat(kept); err != nil {
		t.Fatalf("non-exclusive discard must not touch the filesystem: %v", err)
	}
}
