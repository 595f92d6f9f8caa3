package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	maxLineBytes        = 1024 * 1024
)

// TailOptions selects the lines Tail returns.
type TailOptions struct {
	// Offset resumes reading at a byte position. Negative means "start from
	// the last Limit lines".
	Offset int64
	Limit  int
	// Match keeps only lines containing this substring.
	Match string
}

// TailResult holds the selected lines and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from path without blocking. A missing file yields no
// lines and offset 0 so callers can poll until the daemon creates it.
func Tail(path string, opts TailOptions) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return TailResult{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{}, fmt.Errorf("log path %q is a directory", path)
	}

	offset := opts.Offset
	last := offset < 0
	if last || offset > info.Size() {
		// A shrunken file was truncated or rotated; start over.
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{}, fmt.Errorf("seek log file: %w", err)
	}

	var keep lineBuffer
	if last {
		keep = newRing(opts.Limit)
	} else {
		keep = &appendBuffer{}
	}

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// A partial trailing line is left for the next call.
			break
		}
		offset += int64(len(line))
		if len(line) > maxLineBytes {
			continue
		}
		line = strings.TrimRight(line, "\r\n")
		if opts.Match != "" && !strings.Contains(line, opts.Match) {
			continue
		}
		keep.add(line)
	}
	return TailResult{Lines: keep.lines(), Offset: offset}, nil
}

// Follow emits lines appended to path after offset until ctx ends. poll
// defaults to 250ms.
func Follow(ctx context.Context, path string, offset int64, match string, poll time.Duration, emit func(string)) error {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		result, err := Tail(path, TailOptions{Offset: offset, Match: match})
		if err != nil {
			return err
		}
		for _, line := range result.Lines {
			emit(line)
		}
		offset = result.Offset

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

type lineBuffer interface {
	add(string)
	lines() []string
}

type appendBuffer struct{ out []string }

func (b *appendBuffer) add(line string) { b.out = append(b.out, line) }

func (b *appendBuffer) lines() []string { return b.out }

// ring keeps the most recent limit lines.
type ring struct {
	buf   []string
	next  int
	count int
}

func newRing(limit int) *ring {
	if limit < 0 {
		limit = 0
	}
	return &ring{buf: make([]string, limit)}
}

func (r *ring) add(line string) {
	if len(r.buf) == 0 {
		return
	}
	r.buf[r.next] = line
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ring) lines() []string {
	out := make([]string, 0, r.count)
	start := (r.next - r.count + len(r.buf)) % max(len(r.buf), 1)
	for i := range r.count {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
