package main

import (
	"os"
	"path/filepath"
	"testing"

	"vidsqueeze/internal/testsupport"
)

func TestEncodeRunsWithoutDaemon(t *testing.T) {
	_, configPath := offlineConfig(t,
		testsupport.WithEncoderScript(quickEncoder),
		testsupport.WithProbeDuration(10),
	)
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "a.mp4"), 2048)
	testsupport.WriteFile(t, filepath.Join(dir, "b.mov"), 2048)
	testsupport.WriteFile(t, filepath.Join(dir, "readme.txt"), 10)

	out, stderr, err := runCLI(t, []string{"encode", dir, "--progress"}, configPath)
	if err != nil {
		t.Fatalf("encode: %v (stderr %q)", err, stderr)
	}
	requireContains(t, out, "a.mp4")
	requireContains(t, out, "b.mov")
	requireContains(t, out, "50%")
	requireContains(t, out, "Done")

	for _, name := range []string{"a_compressed_720p.mp4", "b_compressed_720p.mp4"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil || string(data) != "encoded" {
			t.Fatalf("%s = %q, %v", name, data, err)
		}
	}
}

func TestEncodeReportsFailures(t *testing.T) {
	_, configPath := offlineConfig(t,
		testsupport.WithEncoderScript(failingEncoder),
		testsupport.WithProbeDuration(10),
	)
	source := testsupport.Source(t, "broken.mkv")

	out, _, err := runCLI(t, []string{"encode", source, "--output-dir", t.TempDir()}, configPath)
	if err == nil || !errContains(err, "1 of 1 files were not compressed") {
		t.Fatalf("expected failure summary, got %v", err)
	}
	requireContains(t, out, "Error")
}

func TestEncodeMissingEncoderFailsJob(t *testing.T) {
	_, configPath := offlineConfig(t)
	source := testsupport.Source(t, "clip.mp4")

	out, _, err := runCLI(t, []string{"encode", source}, configPath)
	if err == nil {
		t.Fatal("expected failure when ffmpeg is missing")
	}
	requireContains(t, out, "process start error")
}
