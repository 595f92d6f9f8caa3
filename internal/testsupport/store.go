package testsupport

import (
	"context"
	"testing"

	"vidsqueeze/internal/jobs"
	"vidsqueeze/internal/registry"
)

// MustOpenRegistry opens an in-memory registry and registers cleanup.
func MustOpenRegistry(t testing.TB) *registry.Store {
	t.Helper()

	store, err := registry.Open(context.Background())
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// PutJob records a queued job for sourcePath.
func PutJob(t testing.TB, store *registry.Store, id, sourcePath string) jobs.Job {
	t.Helper()

	job, err := store.Put(context.Background(), jobs.Job{
		ID:         id,
		SourcePath: sourcePath,
		Resolution: jobs.DefaultResolution,
		Status:     jobs.StatusQueued,
	})
	if err != nil {
		t.Fatalf("store.Put: %v", err)
	}
	return job
}
