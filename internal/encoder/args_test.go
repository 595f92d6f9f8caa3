package encoder

import (
	"slices"
	"strings"
	"testing"

	"vidsqueeze/internal/config"
	"vidsqueeze/internal/jobs"
)

func TestScaleFilterUsesNominalHeightAndEvenWidth(t *testing.T) {
	for _, res := range jobs.Resolutions() {
		filter, err := ScaleFilter(res)
		if err != nil {
			t.Fatalf("ScaleFilter(%s) returned error: %v", res, err)
		}
		want := "scale=-2:" + strings.TrimSuffix(string(res), "p")
		if filter != want {
			t.Fatalf("ScaleFilter(%s) = %q, want %q", res, filter, want)
		}
	}
	if _, err := ScaleFilter("4k"); err == nil {
		t.Fatal("expected error for unsupported resolution")
	}
}

func TestScaledSizeKeepsWidthEven(t *testing.T) {
	sources := [][2]int{{1920, 1080}, {1440, 1080}, {853, 480}, {1000, 750}, {3840, 1606}, {720, 1280}}
	for _, src := range sources {
		for _, res := range jobs.Resolutions() {
			w, h := ScaledSize(src[0], src[1], res)
			if h != res.Height() {
				t.Fatalf("%v@%s: height %d, want %d", src, res, h, res.Height())
			}
			if w%2 != 0 || w <= 0 {
				t.Fatalf("%v@%s: width %d is not a positive even number", src, res, w)
			}
		}
	}
	if w, h := ScaledSize(1920, 1080, jobs.Resolution720p); w != 1280 || h != 720 {
		t.Fatalf("16:9 720p = %dx%d", w, h)
	}
	if w, _ := ScaledSize(1000, 750, jobs.Resolution480p); w != 640 {
		t.Fatalf("4:3 480p width = %d", w)
	}
}

func TestBuildArgsDefaults(t *testing.T) {
	args, err := BuildArgs("/in/clip.mp4", "/out/clip_compressed_720p.mp4", Options{Resolution: jobs.Resolution720p, CRF: 28})
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	want := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", "/in/clip.mp4",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-f", "mp4",
		"-vf", "scale=-2:720",
		"-crf", "28",
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		"-progress", "pipe:1", "-nostats",
		"/out/clip_compressed_720p.mp4",
	}
	if !slices.Equal(args, want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", args, want)
	}
}

func TestBuildArgsFromConfig(t *testing.T) {
	enc := config.Default().Encoder
	opts := OptionsFromConfig(enc, jobs.Settings{Resolution: jobs.Resolution1080p, RemoveMetadata: true})
	args, err := BuildArgs("/in/a.mkv", "/out/a.mp4", opts)
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, fragment := range []string{"-vf scale=-2:1080", "-movflags +faststart", "-map_metadata -1", "-crf 28"} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in %q", fragment, joined)
		}
	}
	if args[len(args)-1] != "/out/a.mp4" {
		t.Fatalf("output must be the final argument, got %q", args[len(args)-1])
	}

	enc.Container = "mkv"
	args, err = BuildArgs("/in/a.mkv", "/out/a.mkv", OptionsFromConfig(enc, jobs.Settings{Resolution: jobs.Resolution480p}))
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	joined = strings.Join(args, " ")
	if !strings.Contains(joined, "-f matroska") || strings.Contains(joined, "faststart") || strings.Contains(joined, "map_metadata") {
		t.Fatalf("unexpected mkv args %q", joined)
	}
}

func TestBuildArgsRejectsBadInput(t *testing.T) {
	if _, err := BuildArgs("", "/out.mp4", Options{}); err == nil {
		t.Fatal("expected error for empty source")
	}
	if _, err := BuildArgs("/in.mp4", " ", Options{}); err == nil {
		t.Fatal("expected error for empty output")
	}
	if _, err := BuildArgs("/in.mp4", "/out.mp4", Options{Resolution: "2160p"}); err == nil {
		t.Fatal("expected error for unsupported resolution")
	}
}
