package main

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vidsqueeze/internal/api"
	"vidsqueeze/internal/events"
	"vidsqueeze/internal/jobs"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var since uint64
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "watch [job-id...]",
		Short: "Stream progress and completion events from the daemon",
		Long: "Stream progress and completion events from the daemon until interrupted.\n" +
			"When job IDs are given, only their events are shown and watch exits once\n" +
			"each of them has finished.",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				printer := &eventPrinter{out: out, json: jsonOutput}

				cursor := since
				if !cmd.Flags().Changed("since") {
					head, err := client.Events(runCtx, math.MaxUint64, false)
					if err != nil {
						return err
					}
					cursor = head.Next
				}

				pending := make(map[string]struct{}, len(args))
				for _, id := range args {
					job, err := client.Get(runCtx, id)
					if err != nil {
						return err
					}
					if status, ok := jobs.ParseStatus(job.Status); ok && status.IsTerminal() {
						if !jsonOutput {
							fmt.Fprintf(out, "%s  %s\n", id, statusLabel(job.Status))
						}
						continue
					}
					pending[id] = struct{}{}
				}
				if len(args) > 0 && len(pending) == 0 {
					return nil
				}

				for {
					resp, err := client.Events(runCtx, cursor, true)
					if err != nil {
						if runCtx.Err() != nil {
							return nil
						}
						return err
					}
					cursor = resp.Next
					for _, evt := range resp.Events {
						if len(args) > 0 {
							if _, ok := pending[evt.JobID]; !ok {
								continue
							}
						}
						if err := printer.print(evt); err != nil {
							return err
						}
						if evt.Type == events.TypeFinished {
							delete(pending, evt.JobID)
						}
					}
					if len(args) > 0 && len(pending) == 0 {
						return nil
					}
				}
			})
		},
	}
	cmd.Flags().Uint64Var(&since, "since", 0, "Replay buffered events after this sequence number")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print one JSON event per line")
	return cmd
}
