package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidsqueeze/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unset command: %q", results[2].Detail)
	}

	missing := MissingRequired(results)
	if len(missing) != 1 || missing[0] != "Missing" {
		t.Fatalf("expected only the required missing binary, got %v", missing)
	}
}

func TestCheckBinariesResolvesFromPath(t *testing.T) {
	binDir := t.TempDir()
	ffmpeg := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(ffmpeg, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	results := CheckBinaries(Requirements(config.Encoder{FFmpegBinary: "ffmpeg", FFprobeBinary: "ffprobe"}))
	if !results[0].Available || results[0].Command != ffmpeg {
		t.Fatalf("expected ffmpeg resolved to %s, got %#v", ffmpeg, results[0])
	}
	if results[1].Available {
		t.Fatalf("expected ffprobe to be missing, got %#v", results[1])
	}
}

const encoderListing = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D libx265              libx265 H.265 / HEVC (codec hevc)
 A....D aac                  AAC (Advanced Audio Coding)
`

func writeEncoderStub(t *testing.T, listing string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\ncat <<'OUT'\n" + listing + "OUT\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckFFmpegEncoders(t *testing.T) {
	stub := writeEncoderStub(t, encoderListing)

	status := CheckFFmpegEncoders(context.Background(), stub, "libx264", "aac")
	if !status.Available {
		t.Fatalf("expected encoders available, got detail %q", status.Detail)
	}

	status = CheckFFmpegEncoders(context.Background(), stub, "libx264", "libopus")
	if status.Available || !strings.Contains(status.Detail, "libopus") {
		t.Fatalf("expected libopus reported missing, got %#v", status)
	}
}

func TestCheckFFmpegEncodersIgnoresLegend(t *testing.T) {
	stub := writeEncoderStub(t, encoderListing)
	status := CheckFFmpegEncoders(context.Background(), stub, "=")
	if status.Available {
		t.Fatal("legend lines must not count as encoders")
	}
}

func TestCheckFFmpegEncodersCommandFailure(t *testing.T) {
	status := CheckFFmpegEncoders(context.Background(), filepath.Join(t.TempDir(), "missing"), "libx264")
	if status.Available || status.Detail == "" {
		t.Fatalf("expected failure detail, got %#v", status)
	}
	if status := CheckFFmpegEncoders(context.Background(), "", "libx264"); status.Detail != "command not configured" {
		t.Fatalf("unexpected detail %q", status.Detail)
	}
}
