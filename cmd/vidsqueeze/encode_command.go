package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vidsqueeze/internal/api"
	"vidsqueeze/internal/events"
	"vidsqueeze/internal/jobs"
	"vidsqueeze/internal/logging"
	"vidsqueeze/internal/notifications"
	"vidsqueeze/internal/orchestrator"
)

const (
	encodeShutdownTimeout = 15 * time.Second
	eventsPerJob          = 128
)

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	var showProgress bool

	cmd := &cobra.Command{
		Use:   "encode <file-or-directory>...",
		Short: "Compress files in the foreground without a daemon",
		Long: "Compress files in the foreground using an in-process orchestrator.\n" +
			"Interrupting the command cancels running encodes and removes their partial outputs\n" +
			"when jobs.remove_partial_output is set.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reqs, err := flags.requests(args)
			if err != nil {
				return err
			}
			if level := ctx.logLevel(nil); level != "" {
				cfg.Logging.Level = level
			}
			logger, err := logging.NewFromConfig(cfg, false)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			hub := events.NewHub(len(reqs)*eventsPerJob + eventsPerJob)
			orch, err := orchestrator.NewFromConfig(cmd.Context(), cfg, hub, logger)
			if err != nil {
				return err
			}
			defer orch.Close()
			notifier := notifications.NewNotifier(cfg, orch.Get, logger)
			if notifier != nil {
				hub.AddSink(notifier)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			finished := runBatch(runCtx, out, cmd.ErrOrStderr(), orch, hub, reqs, showProgress || isTerminal(out))

			waitCtx, cancel := context.WithTimeout(context.Background(), encodeShutdownTimeout)
			defer cancel()
			if err := notifier.Wait(waitCtx); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: pending notifications dropped")
			}

			if len(finished) > 0 {
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Name", "Status", "Source", "Output", "Ratio"},
					buildBatchRows(finished),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
				))
			}
			failed := len(reqs) - countDone(finished)
			if failed > 0 {
				return fmt.Errorf("%d of %d files were not compressed", failed, len(reqs))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Print progress lines even when stdout is not a terminal")
	return cmd
}

// runBatch submits reqs to orch and follows hub until every accepted job has
// finished or ctx ends, in which case running encodes are cancelled. It
// returns the final state of every accepted job.
func runBatch(ctx context.Context, out, errOut io.Writer, orch *orchestrator.Orchestrator, hub *events.Hub, reqs []api.SubmitRequest, showProgress bool) []jobs.Job {
	printer := &eventPrinter{out: out, names: make(map[string]string, len(reqs))}
	samplers := make(map[string]*logging.ProgressSampler, len(reqs))
	pending := make(map[string]struct{}, len(reqs))
	ids := make([]string, 0, len(reqs))

	cursor := hub.LastSequence()
	for _, req := range reqs {
		job, err := orch.Submit(ctx, req.OrchestratorRequest())
		if err != nil {
			fmt.Fprintf(errOut, "%s: %v\n", req.SourcePath, err)
			continue
		}
		ids = append(ids, job.ID)
		printer.names[job.ID] = job.DisplayName()
		samplers[job.ID] = logging.NewProgressSampler(10)
		pending[job.ID] = struct{}{}
	}

	handle := func(evts []events.Event) {
		for _, evt := range evts {
			if _, ok := printer.names[evt.JobID]; !ok {
				continue
			}
			if evt.Type == events.TypeProgress {
				if showProgress && samplers[evt.JobID].ShouldLog(evt.Percent) {
					_ = printer.print(evt)
				}
				continue
			}
			_ = printer.print(evt)
			delete(pending, evt.JobID)
		}
	}

	for len(pending) > 0 {
		evts, next, err := hub.Fetch(ctx, cursor, 0, true)
		cursor = next
		handle(evts)
		if err != nil {
			break
		}
	}

	if ctx.Err() != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), encodeShutdownTimeout)
		if err := orch.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(errOut, "warning: encoders still exiting: %v\n", err)
		}
		cancel()
		evts, _, _ := hub.Fetch(context.Background(), cursor, 0, false)
		handle(evts)
	}

	finished := make([]jobs.Job, 0, len(ids))
	for _, id := range ids {
		job, err := orch.Get(context.Background(), id)
		if err != nil {
			continue
		}
		finished = append(finished, job)
	}
	return finished
}

func buildBatchRows(list []jobs.Job) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		view := api.FromJob(job)
		rows = append(rows, []string{
			view.ID,
			view.Name,
			statusLabel(view.Status),
			formatSize(view.SourceSizeBytes),
			formatSize(view.OutputSizeBytes),
			formatRatio(view),
		})
	}
	return rows
}

func countDone(list []jobs.Job) int {
	done := 0
	for _, job := range list {
		if job.Status == jobs.StatusDone {
			done++
		}
	}
	return done
}
