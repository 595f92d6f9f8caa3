package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"vidsqueeze/internal/config"
	"vidsqueeze/internal/encoder"
	"vidsqueeze/internal/events"
	"vidsqueeze/internal/jobs"
	"vidsqueeze/internal/logging"
	"vidsqueeze/internal/registry"
)

// Supervisor starts and force-terminates encoder processes.
type Supervisor interface {
	Start(ctx context.Context, jobID, source, output string, opts encoder.Options) (*encoder.Handle, error)
	Cancel(jobID string) bool
}

// PathResolver picks collision-free output paths.
type PathResolver interface {
	Resolve(sourcePath, outputDirOverride string, resolution jobs.Resolution) (string, error)
	Release(path string)
	Discard(path string)
}

// Deps are the collaborators the orchestrator coordinates.
type Deps struct {
	Store      *registry.Store
	Supervisor Supervisor
	Resolver   PathResolver
	Hub        *events.Hub
}

// Options tune orchestration policy.
type Options struct {
	Defaults            jobs.Settings
	Encoder             config.Encoder
	MaxConcurrent       int
	RemovePartialOutput bool
	Logger              *slog.Logger
}

// Orchestrator coordinates submissions, cancellations and encoder signals.
type Orchestrator struct {
	store      *registry.Store
	supervisor Supervisor
	resolver   PathResolver
	hub        *events.Hub

	defaults      jobs.Settings
	encoder       config.Encoder
	removePartial bool
	logger        *slog.Logger
	baseCtx       context.Context

	locks *keyedMutex

	mu            sync.Mutex
	runs          map[string]*encoder.Handle
	maxConcurrent int
	active        int
	backlog       []string
	closed        bool
	wg            sync.WaitGroup
}

// New wires an orchestrator from its collaborators.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("orchestrator: registry store is required")
	case deps.Supervisor == nil:
		return nil, errors.New("orchestrator: process supervisor is required")
	case deps.Resolver == nil:
		return nil, errors.New("orchestrator: path resolver is required")
	}
	hub := deps.Hub
	if hub == nil {
		hub = events.NewHub(0)
	}
	defaults := opts.Defaults
	if !defaults.Resolution.Valid() {
		defaults.Resolution = jobs.DefaultResolution
	}
	encoderCfg := opts.Encoder
	if encoderCfg.FFmpegBinary == "" {
		encoderCfg = config.Default().Encoder
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 0 {
		maxConcurrent = 0
	}
	return &Orchestrator{
		store:         deps.Store,
		supervisor:    deps.Supervisor,
		resolver:      deps.Resolver,
		hub:           hub,
		defaults:      defaults,
		encoder:       encoderCfg,
		removePartial: opts.RemovePartialOutput,
		logger:        logging.NewComponentLogger(opts.Logger, "orchestrator"),
		baseCtx:       context.Background(),
		locks:         newKeyedMutex(),
		runs:          make(map[string]*encoder.Handle),
		maxConcurrent: maxConcurrent,
	}, nil
}

// Hub exposes the outward event stream.
func (o *Orchestrator) Hub() *events.Hub {
	return o.hub
}

// Get returns the current state of a job.
func (o *Orchestrator) Get(ctx context.Context, id string) (jobs.Job, error) {
	return o.store.Get(ctx, id)
}

// List returns jobs in submission order, optionally filtered by status.
func (o *Orchestrator) List(ctx context.Context, statuses ...jobs.Status) ([]jobs.Job, error) {
	return o.store.List(ctx, statuses...)
}

// Stats summarizes jobs per status.
func (o *Orchestrator) Stats(ctx context.Context) (map[jobs.Status]int, error) {
	return o.store.Stats(ctx)
}

// Snapshot describes admission state.
type Snapshot struct {
	Active        int      `json:"active"`
	MaxConcurrent int      `json:"max_concurrent"`
	Backlog       []string `json:"backlog"`
}

// Admission reports how many encodes hold a slot and which jobs are waiting.
func (o *Orchestrator) Admission() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		Active:        o.active,
		MaxConcurrent: o.maxConcurrent,
		Backlog:       append([]string{}, o.backlog...),
	}
}

// Shutdown cancels every running encode, clears the backlog, and waits for
// signal drains to finish or ctx to end. Submissions are rejected afterwards.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.backlog = nil
	ids := make([]string, 0, len(o.runs))
	for id := range o.runs {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	for _, id := range ids {
		o.Cancel(ctx, id)
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) jobLogger(id string) *slog.Logger {
	return o.logger.With(logging.String(logging.FieldJobID, id))
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Orchestrator) setRun(id string, handle *encoder.Handle) {
	o.mu.Lock()
	o.runs[id] = handle
	o.mu.Unlock()
}

func (o *Orchestrator) isCurrentRun(handle *encoder.Handle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runs[handle.JobID] == handle
}

func (o *Orchestrator) clearRun(handle *encoder.Handle) {
	o.mu.Lock()
	if o.runs[handle.JobID] == handle {
		delete(o.runs, handle.JobID)
	}
	o.mu.Unlock()
}
