package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"vidsqueeze/internal/config"
	"vidsqueeze/internal/deps"
	"vidsqueeze/internal/events"
	"vidsqueeze/internal/jobs"
	"vidsqueeze/internal/logging"
	"vidsqueeze/internal/notifications"
	"vidsqueeze/internal/orchestrator"
	"vidsqueeze/internal/preflight"
)

const eventBufferSize = 4096

// Daemon owns the orchestrator and API server and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	orch     *orchestrator.Orchestrator
	hub      *events.Hub
	notifier *notifications.Notifier
	api      *apiServer
	logPath  string

	lockPath string
	lock     *flock.Flock

	mu           sync.Mutex
	dependencies []deps.Status
	running      atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	LogPath      string
	Counts       map[jobs.Status]int
	Admission    orchestrator.Snapshot
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	hub := events.NewHub(eventBufferSize)
	orch, err := orchestrator.NewFromConfig(ctx, cfg, hub, logger)
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	notifier := notifications.NewNotifier(cfg, orch.Get, logger)
	if notifier != nil {
		hub.AddSink(notifier)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		orch:     orch,
		hub:      hub,
		notifier: notifier,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	if cfg.Paths.LogDir != "" {
		d.logPath = filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, snapshots dependencies, and begins serving
// the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vidsqueeze daemon instance is already running")
	}

	d.checkDependencies(ctx)

	if err := d.api.start(); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("vidsqueeze daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop cancels running encodes, stops the API, waits for queued
// notifications, and releases the daemon lock.
func (d *Daemon) Stop(ctx context.Context) {
	if !d.running.Swap(false) {
		return
	}

	if err := d.orch.Shutdown(ctx); err != nil {
		logging.WarnWithContext(d.logger, "encoder shutdown incomplete", "daemon_shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "some encoder processes may still be exiting"),
		)
	}
	d.api.stop(ctx)
	if err := d.notifier.Wait(ctx); err != nil {
		d.logger.Warn("pending notifications dropped", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("vidsqueeze daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop(context.Background())
	return d.orch.Close()
}

// Orchestrator exposes the job orchestrator.
func (d *Daemon) Orchestrator() *orchestrator.Orchestrator {
	return d.orch
}

// Hub exposes the outward event stream.
func (d *Daemon) Hub() *events.Hub {
	return d.hub
}

// APIAddress returns the bound API address, or "" before Start.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	counts, err := d.orch.Stats(ctx)
	if err != nil {
		d.logger.Warn("job stats unavailable", logging.Error(err))
	}
	d.mu.Lock()
	dependencies := append([]deps.Status(nil), d.dependencies...)
	d.mu.Unlock()
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
		Counts:       counts,
		Admission:    d.orch.Admission(),
		Dependencies: dependencies,
	}
}

// checkDependencies records encoder availability and logs failed preflight
// checks. Missing binaries do not block startup; affected jobs fail with a
// process start error instead.
func (d *Daemon) checkDependencies(ctx context.Context) {
	statuses := preflight.CheckSystemDeps(ctx, d.cfg)
	d.mu.Lock()
	d.dependencies = statuses
	d.mu.Unlock()

	for _, status := range statuses {
		if status.Available {
			continue
		}
		logging.WarnWithContext(d.logger, "dependency unavailable", "dependency_missing",
			logging.String("dependency", status.Name),
			logging.String("command", status.Command),
			logging.String("detail", status.Detail),
			logging.String(logging.FieldImpact, "jobs will fail to start"),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set encoder.ffmpeg_binary"),
		)
	}
	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
}
