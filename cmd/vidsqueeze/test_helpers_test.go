package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vidsqueeze/internal/config"
	"vidsqueeze/internal/daemon"
	"vidsqueeze/internal/testsupport"
)

const (
	quickEncoder = `#!/bin/sh
for last; do :; done
if [ "$1" = "-hide_banner" ] && [ "$2" = "-encoders" ]; then
  printf ' ------\n V....D libx264 H.264\n A....D aac AAC\n'
  exit 0
fi
printf 'out_time_us=5000000\nprogress=continue\n'
printf 'encoded' > "$last"
exit 0
`
	slowEncoder = `#!/bin/sh
printf 'out_time_us=1000000\nprogress=continue\n'
exec sleep 30
`
	failingEncoder = `#!/bin/sh
echo "Invalid data found when processing input" >&2
exit 1
`
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	configPath string
}

// setupCLITestEnv starts an in-process daemon backed by the encoder stub and
// writes a config file pointing the CLI at its API.
func setupCLITestEnv(t *testing.T, encoder string) *cliTestEnv {
	t.Helper()

	return startEnv(t, testsupport.NewConfig(t,
		testsupport.WithEncoderScript(encoder),
		testsupport.WithProbeDuration(10),
	))
}

func startEnv(t *testing.T, cfg *config.Config) *cliTestEnv {
	t.Helper()
	d, err := daemon.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		d.Stop(ctx)
		_ = d.Close()
	})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	cfg.Paths.APIBind = d.APIAddress()

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		configPath: writeTestConfig(t, cfg),
	}
}

// offlineConfig writes a config whose API address has nothing listening.
func offlineConfig(t *testing.T, opts ...testsupport.ConfigOption) (*config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Paths.APIBind = "127.0.0.1:1"
	return cfg, writeTestConfig(t, cfg)
}

func errContains(err error, substr string) bool {
	return err != nil && strings.Contains(err.Error(), substr)
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
