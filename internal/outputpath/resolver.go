package outputpath

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"vidsqueeze/internal/jobs"
)

// DefaultContainer is the extension used when none is configured.
const DefaultContainer = "mp4"

// maxAttempts bounds the counter search so a broken filesystem cannot spin forever.
const maxAttempts = 10000

// Options configures a Resolver.
type Options struct {
	Container string
	Exclusive bool
}

// Resolver computes output paths and tracks in-flight reservations.
type Resolver struct {
	container string
	exclusive bool

	mu      sync.Mutex
	pending map[string]struct{}

	lstat    func(string) (os.FileInfo, error)
	openFile func(string, int, os.FileMode) (*os.File, error)
}

// New constructs a Resolver.
func New(opts Options) *Resolver {
	container := strings.TrimPrefix(strings.TrimSpace(opts.Container), ".")
	if container == "" {
		container = DefaultContainer
	}
	return &Resolver{
		container: container,
		exclusive: opts.Exclusive,
		pending:   make(map[string]struct{}),
		lstat:     os.Lstat,
		openFile:  os.OpenFile,
	}
}

// BaseName returns the collision-free-candidate name for attempt n (0 = no suffix).
func BaseName(sourcePath string, resolution jobs.Resolution, container string, n int) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	name := fmt.Sprintf("%s_compressed_%s", stem, resolution)
	if n > 0 {
		name = fmt.Sprintf("%s (%d)", name, n)
	}
	return name + "." + strings.TrimPrefix(container, ".")
}

// Resolve returns the first free candidate path and reserves it until Release.
func (r *Resolver) Resolve(sourcePath, outputDirOverride string, resolution jobs.Resolution) (string, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return "", errors.New("resolve output: source path is required")
	}
	if !resolution.Valid() {
		return "", fmt.Errorf("resolve output: unsupported resolution %q", resolution)
	}
	dir := strings.TrimSpace(outputDirOverride)
	if dir == "" {
		dir = filepath.Dir(sourcePath)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for n := 0; n < maxAttempts; n++ {
		candidate := filepath.Join(dir, BaseName(sourcePath, resolution, r.container, n))
		if _, reserved := r.pending[candidate]; reserved {
			continue
		}
		exists, err := r.exists(candidate)
		if err != nil {
			return "", fmt.Errorf("resolve output: %w", err)
		}
		if exists {
			continue
		}
		if r.exclusive {
			created, err := r.create(candidate)
			if err != nil {
				return "", fmt.Errorf("resolve output: %w", err)
			}
			if !created {
				continue
			}
		}
		r.pending[candidate] = struct{}{}
		return candidate, nil
	}
	return "", fmt.Errorf("resolve output: no free name after %d attempts in %s", maxAttempts, dir)
}

// Release forgets a reservation once the encoder has finished with the path.
func (r *Resolver) Release(path string) {
	if r == nil || path == "" {
		return
	}
	r.mu.Lock()
	delete(r.pending, path)
	r.mu.Unlock()
}

// Discard releases a reservation whose encoder never started. In exclusive
// mode the empty placeholder created by Resolve is removed as well.
func (r *Resolver) Discard(path string) {
	if r == nil || path == "" {
		return
	}
	r.Release(path)
	if !r.exclusive {
		return
	}
	if info, err := r.lstat(path); err == nil && info.Mode().IsRegular() && info.Size() == 0 {
		_ = os.Remove(path)
	}
}

// Pending reports how many paths are currently reserved.
func (r *Resolver) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Resolver) exists(path string) (bool, error) {
	_, err := r.lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (r *Resolver) create(path string) (bool, error) {
	file, err := r.openFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, file.Close()
}
