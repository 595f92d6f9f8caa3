package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// VideoExtensions lists the source extensions accepted for submission.
var VideoExtensions = []string{".mp4", ".mkv", ".avi", ".mov", ".webm"}

// ErrNoVideos is returned when the arguments expand to no video files.
var ErrNoVideos = errors.New("no video files found")

// IsVideo reports whether path carries a supported video extension.
func IsVideo(path string) bool {
	return slices.Contains(VideoExtensions, strings.ToLower(filepath.Ext(path)))
}

// CollectVideos expands args into absolute video file paths. Files are taken
// as given when they have a video extension; directories contribute their
// video files in lexical order, descending into subdirectories only when
// recursive is set. Duplicates are dropped while preserving first-seen order.
func CollectVideos(args []string, recursive bool) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", arg, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			if !IsVideo(abs) {
				return nil, fmt.Errorf("%s: unsupported extension (want %s)", arg, strings.Join(VideoExtensions, ", "))
			}
			add(abs)
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != abs && (!recursive || strings.HasPrefix(d.Name(), ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && IsVideo(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoVideos
	}
	return out, nil
}
