package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vidsqueeze/internal/config"
	"vidsqueeze/internal/encoder"
	"vidsqueeze/internal/events"
	"vidsqueeze/internal/media/ffprobe"
	"vidsqueeze/internal/outputpath"
	"vidsqueeze/internal/registry"
)

// NewFromConfig builds the full orchestration stack: an in-memory registry,
// an ffmpeg supervisor probing durations with ffprobe, and a path resolver.
// Close releases the registry.
func NewFromConfig(ctx context.Context, cfg *config.Config, hub *events.Hub, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("orchestrator: config is required")
	}
	store, err := registry.Open(ctx)
	if err != nil {
		return nil, err
	}
	ffprobeBinary := cfg.Encoder.FFprobeBinary
	supervisor := encoder.NewSupervisor(encoder.Config{
		Probe: func(ctx context.Context, path string) (time.Duration, error) {
			return ffprobe.Duration(ctx, ffprobeBinary, path)
		},
		ProgressInterval: cfg.ProgressInterval(),
		Logger:           logger,
	})
	resolver := outputpath.New(outputpath.Options{
		Container: cfg.Encoder.Container,
		Exclusive: cfg.Jobs.ExclusiveOutput,
	})
	orch, err := New(Deps{
		Store:      store,
		Supervisor: supervisor,
		Resolver:   resolver,
		Hub:        hub,
	}, Options{
		Defaults:            cfg.JobDefaults(),
		Encoder:             cfg.Encoder,
		MaxConcurrent:       cfg.Jobs.MaxConcurrent,
		RemovePartialOutput: cfg.Jobs.RemovePartialOutput,
		Logger:              logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return orch, nil
}

// Close releases the registry. Call Shutdown first to stop running encodes.
func (o *Orchestrator) Close() error {
	return o.store.Close()
}
