package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"vidsqueeze/internal/api"
	"vidsqueeze/internal/config"
)

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	if _, err := ReadPID(filepath.Join(dir, "missing.pid")); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	bad := filepath.Join(dir, "bad.pid")
	if err := os.WriteFile(bad, []byte("nope\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPID(bad); err == nil {
		t.Fatal("expected parse error")
	}
	good := filepath.Join(dir, "good.pid")
	if err := os.WriteFile(good, []byte("4321\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if pid, err := ReadPID(good); err != nil || pid != 4321 {
		t.Fatalf("ReadPID = %d, %v", pid, err)
	}
}

func TestStopAndTerminateSignalsProcess(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	if err := os.WriteFile(PIDPath(&cfg), []byte(strconv.Itoa(cmd.Process.Pid)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := StopAndTerminate(&cfg, 5*time.Second)
	if err != nil {
		t.Fatalf("StopAndTerminate: %v", err)
	}
	if result.PID != cmd.Process.Pid || result.ForcedKill {
		t.Fatalf("unexpected result %+v", result)
	}
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestStopAndTerminateWithoutDaemon(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	if _, err := StopAndTerminate(&cfg, time.Second); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestWaitForAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(api.DaemonStatus{Running: true, PID: 99})
	}))
	defer srv.Close()

	status, err := WaitForAPI(context.Background(), api.NewClient(srv.URL, ""), time.Second)
	if err != nil || status.PID != 99 {
		t.Fatalf("WaitForAPI = %+v, %v", status, err)
	}

	result, err := EnsureStarted(context.Background(), api.NewClient(srv.URL, ""), "/nonexistent", LaunchOptions{}, time.Second)
	if err != nil || result.State != StartStateAlreadyRunning || result.PID != 99 {
		t.Fatalf("EnsureStarted = %+v, %v", result, err)
	}
}

func TestWaitForAPITimesOut(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	if _, err := WaitForAPI(context.Background(), api.NewClient(addr, ""), 500*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
}
