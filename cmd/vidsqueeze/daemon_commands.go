package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidsqueeze/internal/api"
	"vidsqueeze/internal/config"
	"vidsqueeze/internal/daemonctl"
	"vidsqueeze/internal/preflight"
)

const (
	startWaitTimeout = 10 * time.Second
	stopGracePeriod  = 20 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the vidsqueeze daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startDaemon(cmd, ctx)
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the vidsqueeze daemon, cancelling running encodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopDaemon(cmd.OutOrStdout(), ctx.configValue())
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the vidsqueeze daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := stopDaemon(cmd.OutOrStdout(), ctx.configValue()); err != nil {
				return err
			}
			return startDaemon(cmd, ctx)
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, statusErr := client.Status(cmd.Context())
			if statusErr != nil && !errors.Is(statusErr, api.ErrDaemonUnavailable) {
				return wrapClientError(statusErr)
			}
			checks := preflight.RunAll(cmd.Context(), cfg)
			if statusErr != nil {
				status = api.DaemonStatus{Dependencies: localDependencies(cmd, cfg)}
			}
			if statusJSON {
				return writeJSON(cmd, status)
			}
			renderStatus(cmd.OutOrStdout(), cfg, status, checks, isTerminal(cmd.OutOrStdout()))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the daemon status as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func startDaemon(cmd *cobra.Command, ctx *commandContext) error {
	stdout := cmd.OutOrStdout()
	exe, err := daemonExecutable()
	if err != nil {
		return err
	}
	client, err := ctx.client()
	if err != nil {
		return err
	}
	result, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   ctx.logLevel(nil),
	}, startWaitTimeout)
	if err != nil {
		return err
	}
	switch result.State {
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
	default:
		fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
	}
	return nil
}

func stopDaemon(stdout io.Writer, cfg *config.Config) error {
	result, err := daemonctl.StopAndTerminate(cfg, stopGracePeriod)
	if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		fmt.Fprintln(stdout, "Daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}
	if result.ForcedKill {
		fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
		return nil
	}
	fmt.Fprintln(stdout, "Daemon stopped")
	return nil
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func localDependencies(cmd *cobra.Command, cfg *config.Config) []api.DependencyStatus {
	statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
	out := make([]api.DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

func renderStatus(out io.Writer, cfg *config.Config, status api.DaemonStatus, checks []preflight.Result, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if status.Running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
		fmt.Fprintln(out, renderStatusLine("API", statusInfo, cfg.Paths.APIBind, colorize))
		if status.LogPath != "" {
			fmt.Fprintln(out, renderStatusLine("Log", statusInfo, status.LogPath, colorize))
		}
		admission := fmt.Sprintf("%d active, unlimited", status.Admission.Active)
		if status.Admission.MaxConcurrent > 0 {
			admission = fmt.Sprintf("%d/%d active, %d waiting", status.Admission.Active, status.Admission.MaxConcurrent, len(status.Admission.Backlog))
		}
		fmt.Fprintln(out, renderStatusLine("Admission", statusInfo, admission, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range dependencyLines(status.Dependencies, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Checks", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, check := range checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}

	if !status.Running {
		return
	}
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Jobs", colorize) {
		fmt.Fprintln(out, line)
	}
	rows := buildStatusCountRows(status.Counts)
	if len(rows) == 0 {
		fmt.Fprintln(out, "No jobs")
		return
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}
