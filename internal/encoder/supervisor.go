package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"vidsqueeze/internal/jobs"
	"vidsqueeze/internal/logging"
	"vidsqueeze/internal/progress"
)

// ErrAlreadyRunning is returned when Start is called for a job that still
// owns a live process.
var ErrAlreadyRunning = errors.New("encoder already running for job")

const (
	stderrTailLines = 12
	signalBuffer    = 16
	probeTimeout    = 30 * time.Second
)

// DurationFunc reports the duration of a source file. Zero means unknown.
type DurationFunc func(ctx context.Context, path string) (time.Duration, error)

// Config tunes a Supervisor.
type Config struct {
	// Probe supplies the source duration used to turn timestamps into
	// percentages. Nil disables timestamp-derived progress.
	Probe            DurationFunc
	ProgressInterval time.Duration
	Logger           *slog.Logger
}

// Supervisor starts encoder processes and tracks them until they exit.
type Supervisor struct {
	mu       sync.Mutex
	handles  map[string]*Handle
	probe    DurationFunc
	interval time.Duration
	logger   *slog.Logger
}

// NewSupervisor constructs an empty supervisor.
func NewSupervisor(cfg Config) *Supervisor {
	return &Supervisor{
		handles:  make(map[string]*Handle),
		probe:    cfg.Probe,
		interval: cfg.ProgressInterval,
		logger:   logging.NewComponentLogger(cfg.Logger, "encoder"),
	}
}

// Handle is the live process associated with one job run.
type Handle struct {
	JobID      string
	OutputPath string
	StartedAt  time.Time

	cmd       *exec.Cmd
	pid       int
	signals   chan Signal
	done      chan struct{}
	cancelled bool
}

// Signals returns the run's signal channel. It is closed after the terminal
// signal.
func (h *Handle) Signals() <-chan Signal {
	return h.signals
}

// Done is closed once the process has been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// PID returns the operating system process id.
func (h *Handle) PID() int {
	return h.pid
}

// Start launches the encoder for jobID and registers its handle before
// returning. The process outlives ctx; only Cancel terminates it early.
func (s *Supervisor) Start(ctx context.Context, jobID, source, output string, opts Options) (*Handle, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, jobs.Wrap(jobs.ErrProcessStart, "start encoder", "empty job id", nil)
	}
	args, err := BuildArgs(source, output, opts)
	if err != nil {
		return nil, jobs.Wrap(jobs.ErrProcessStart, "start encoder", "", err)
	}
	opts = opts.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.handles[jobID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, jobID)
	}

	cmd := exec.Command(opts.Binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, jobs.Wrap(jobs.ErrProcessStart, "start encoder", "stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, jobs.Wrap(jobs.ErrProcessStart, "start encoder", "stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, jobs.Wrap(jobs.ErrProcessStart, "start encoder", opts.Binary, err)
	}

	handle := &Handle{
		JobID:      jobID,
		OutputPath: output,
		StartedAt:  time.Now(),
		cmd:        cmd,
		pid:        cmd.Process.Pid,
		signals:    make(chan Signal, signalBuffer),
		done:       make(chan struct{}),
	}
	s.handles[jobID] = handle

	s.logger.Debug("encoder started",
		logging.String(logging.FieldJobID, jobID),
		logging.Int("pid", handle.pid),
		logging.String("args", strings.Join(args, " ")),
	)

	go s.monitor(context.WithoutCancel(ctx), handle, source, stdout, stderr)
	return handle, nil
}

// Cancel force-terminates the process for jobID. It reports whether a live
// process existed; calling it again is a no-op that returns false.
func (s *Supervisor) Cancel(jobID string) bool {
	s.mu.Lock()
	handle, ok := s.handles[jobID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	handle.cancelled = true
	delete(s.handles, jobID)
	s.mu.Unlock()

	if err := unix.Kill(-handle.pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		logging.WarnWithContext(s.logger, "kill encoder process group failed", "encoder_kill_failed",
			logging.String(logging.FieldJobID, jobID),
			logging.Int("pid", handle.pid),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the process may already have exited"),
		)
		_ = handle.cmd.Process.Kill()
	}
	return true
}

// Running reports whether jobID currently owns a live process.
func (s *Supervisor) Running(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handles[jobID]
	return ok
}

// Active returns the job ids with live processes in sorted order.
func (s *Supervisor) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.handles))
	for id := range s.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CancelAll cancels every live process and returns how many were signalled.
func (s *Supervisor) CancelAll() int {
	count := 0
	for _, id := range s.Active() {
		if s.Cancel(id) {
			count++
		}
	}
	return count
}

func (s *Supervisor) monitor(ctx context.Context, h *Handle, source string, stdout, stderr io.Reader) {
	defer close(h.done)
	defer close(h.signals)

	tail := newLineTail(stderrTailLines)
	var stderrDone sync.WaitGroup
	stderrDone.Add(1)
	go func() {
		defer stderrDone.Done()
		tail.consume(stderr)
	}()

	duration := s.probeDuration(ctx, h.JobID, source)
	parser := progress.NewParser(duration)
	reporter := progress.NewReporter(s.interval)
	scanErr := parser.Scan(stdout, func(raw progress.Raw) {
		percent, ok := reporter.Observe(raw)
		if !ok || s.isCancelled(h) {
			return
		}
		h.signals <- Signal{Kind: SignalProgress, Percent: percent}
	})
	if scanErr != nil {
		// Keep draining so the process never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}
	stderrDone.Wait()
	waitErr := h.cmd.Wait()

	s.mu.Lock()
	cancelled := h.cancelled
	if current, ok := s.handles[h.JobID]; ok && current == h {
		delete(s.handles, h.JobID)
	}
	s.mu.Unlock()

	switch {
	case cancelled:
		h.signals <- Signal{Kind: SignalCancelled}
	case waitErr == nil:
		h.signals <- Signal{Kind: SignalCompleted, Percent: 100}
	default:
		h.signals <- Signal{Kind: SignalFailed, Message: failureMessage(waitErr, tail.lines())}
	}
}

func (s *Supervisor) isCancelled(h *Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return h.cancelled
}

func (s *Supervisor) probeDuration(ctx context.Context, jobID, source string) time.Duration {
	if s.probe == nil {
		return 0
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	duration, err := s.probe(probeCtx, source)
	if err != nil {
		s.logger.Debug("source duration unavailable; progress limited to encoder reports",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err),
		)
		return 0
	}
	return duration
}

func failureMessage(waitErr error, tail []string) string {
	status := waitErr.Error()
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		status = fmt.Sprintf("ffmpeg exited with status %d", exitErr.ExitCode())
	}
	for i := len(tail) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(tail[i]); line != "" {
			return status + ": " + line
		}
	}
	return status
}

// lineTail keeps the last n lines written to it.
type lineTail struct {
	mu    sync.Mutex
	limit int
	buf   []string
}

func newLineTail(limit int) *lineTail {
	return &lineTail{limit: limit}
}

func (t *lineTail) consume(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		t.add(scanner.Text())
	}
	_, _ = io.Copy(io.Discard, r)
}

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, line)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
}

func (t *lineTail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.buf...)
}
