package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"vidsqueeze/internal/api"
	"vidsqueeze/internal/config"
	"vidsqueeze/internal/fileutil"
	"vidsqueeze/internal/jobs"
	"vidsqueeze/internal/preflight"
)

// submitFlags are shared by submit and encode.
type submitFlags struct {
	name           string
	resolution     string
	outputDir      string
	removeMetadata bool
	recursive      bool

	flags *pflag.FlagSet
}

func (f *submitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.resolution, "resolution", "r", "", "Target resolution (480p, 720p, 1080p); defaults to the configured value")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "Write outputs here instead of beside each source")
	cmd.Flags().StringVar(&f.name, "name", "", "Display name for the job (single file only)")
	cmd.Flags().BoolVar(&f.removeMetadata, "remove-metadata", false, "Strip container metadata from the output (--remove-metadata=false keeps it); defaults to the configured value")
	cmd.Flags().BoolVarP(&f.recursive, "recursive", "R", false, "Descend into subdirectories when a directory is given")
	f.flags = cmd.Flags()
}

// requests expands args into one submission per video file.
func (f *submitFlags) requests(args []string) ([]api.SubmitRequest, error) {
	template := api.SubmitRequest{Name: strings.TrimSpace(f.name)}
	if f.flags != nil && f.flags.Changed("remove-metadata") {
		remove := f.removeMetadata
		template.RemoveMetadata = &remove
	}
	if value := strings.TrimSpace(f.resolution); value != "" {
		resolution, err := jobs.ParseResolution(value)
		if err != nil {
			return nil, err
		}
		template.Resolution = string(resolution)
	}
	if value := strings.TrimSpace(f.outputDir); value != "" {
		dir, err := config.ExpandPath(value)
		if err != nil {
			return nil, err
		}
		if check := preflight.CheckDirectoryAccess("Output directory", dir); !check.Passed {
			return nil, fmt.Errorf("output directory unusable: %s", check.Detail)
		}
		template.OutputDir = dir
	}

	paths, err := fileutil.CollectVideos(args, f.recursive)
	if err != nil {
		return nil, err
	}
	if template.Name != "" && len(paths) > 1 {
		return nil, errors.New("--name applies to a single file")
	}
	reqs := make([]api.SubmitRequest, 0, len(paths))
	for _, path := range paths {
		req := template
		req.SourcePath = path
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <file-or-directory>...",
		Short: "Queue video files for compression on the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := flags.requests(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				submitted := make([]api.Job, 0, len(reqs))
				failures := 0
				for _, req := range reqs {
					job, err := client.Submit(cmd.Context(), req)
					if errors.Is(err, api.ErrDaemonUnavailable) {
						return err
					}
					if err != nil {
						failures++
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", req.SourcePath, wrapClientError(err))
						continue
					}
					submitted = append(submitted, job)
				}

				if jsonOutput {
					if err := writeJSON(cmd, api.JobListResponse{Jobs: submitted}); err != nil {
						return err
					}
				} else {
					out := cmd.OutOrStdout()
					for _, job := range submitted {
						fmt.Fprintf(out, "Submitted %s: %s -> %s\n", job.ID, job.Name, job.OutputPath)
					}
				}
				if failures > 0 {
					return fmt.Errorf("%d of %d submissions failed", failures, len(reqs))
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print submitted jobs as JSON")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List jobs known to the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]string, 0, len(statuses))
			for _, value := range statuses {
				status, ok := jobs.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				filter = append(filter, string(status))
			}
			return ctx.withClient(func(client *api.Client) error {
				list, err := client.List(cmd.Context(), filter...)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.JobListResponse{Jobs: list})
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(jobListHeaders, buildJobListRows(list), jobListAligns))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show details for one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.JobResponse{Job: job})
				}
				printJobDetail(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the job as JSON")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>...",
		Short: "Terminate running encodes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				for _, id := range args {
					cancelled, err := client.Cancel(cmd.Context(), id)
					if err != nil {
						return err
					}
					if cancelled {
						fmt.Fprintf(out, "Job %s cancelled\n", id)
					} else {
						fmt.Fprintf(out, "Job %s is not running\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <job-id>...",
		Aliases: []string{"rm"},
		Short:   "Forget jobs, cancelling any that are still running",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				for _, id := range args {
					err := client.Remove(cmd.Context(), id)
					switch {
					case errors.Is(err, api.ErrNotFound):
						fmt.Fprintf(out, "Job %s not found\n", id)
					case err != nil:
						return err
					default:
						fmt.Fprintf(out, "Job %s removed\n", id)
					}
				}
				return nil
			})
		},
	}
}
