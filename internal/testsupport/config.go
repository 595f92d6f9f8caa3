package testsupport

import (
	"fmt"
	"path/filepath"
	"testing"

	"vidsqueeze/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test,
// an ephemeral API port, and unthrottled progress. Encoder binaries point at
// paths that do not exist unless a stub option is supplied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Encoder.FFmpegBinary = filepath.Join(base, "bin", "ffmpeg")
	cfgVal.Encoder.FFprobeBinary = filepath.Join(base, "bin", "ffprobe")
	cfgVal.Jobs.ProgressIntervalMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithEncoderScript installs script as the ffmpeg binary.
func WithEncoderScript(script string) ConfigOption {
	return func(b *configBuilder) {
		WriteScript(b.t, b.cfg.Encoder.FFmpegBinary, script)
	}
}

// WithProbeDuration installs an ffprobe stub reporting seconds of media.
func WithProbeDuration(seconds float64) ConfigOption {
	return func(b *configBuilder) {
		script := fmt.Sprintf("#!/bin/sh\nprintf '{\"format\":{\"duration\":\"%.3f\"},\"streams\":[]}'\n", seconds)
		WriteScript(b.t, b.cfg.Encoder.FFprobeBinary, script)
	}
}

// WithConfig applies an arbitrary mutation.
func WithConfig(mutate func(*config.Config)) ConfigOption {
	return func(b *configBuilder) {
		mutate(b.cfg)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
