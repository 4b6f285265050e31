package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tsencode/internal/queue"
	"tsencode/internal/queueaccess"
)

var (
	jobHeaders    = []string{"ID", "Recording", "Output", "Mode", "Status", "Progress", "Created"}
	jobAlignments = []columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage encode jobs",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueClearCompletedCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				stats, err := access.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, stats)
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List encode jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, value := range statuses {
				if _, ok := queue.ParseStatus(value); !ok {
					return fmt.Errorf("unknown status %q (valid: %s)", value, validStatuses())
				}
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				items, err := access.List(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(jobHeaders, buildJobRows(items), jobAlignments))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a single encode job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				item, err := access.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, item)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderDetails(buildJobDetails(*item)))
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Requeue failed jobs (all failed jobs when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "job")
			if err != nil {
				return err
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				updated, err := access.Retry(cmd.Context(), ids)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, countResult{Updated: updated})
				}
				if updated == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No failed jobs to retry")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried %d failed job(s)\n", updated)
				return nil
			})
		},
	}
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return jobs stuck in encoding to pending (encoding must be stopped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				updated, err := access.ResetStuck(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, countResult{Updated: updated})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d job(s) to pending\n", updated)
				return nil
			})
		},
	}
}

func newQueueClearCompletedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove completed jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				removed, err := access.ClearCompleted(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, countResult{Removed: removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed job(s)\n", removed)
				return nil
			})
		},
	}
}

type countResult struct {
	Updated int64 `json:"updated,omitempty"`
	Removed int64 `json:"removed,omitempty"`
}

func validStatuses() string {
	names := make([]string, 0, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}

func parseID(value, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, value)
	}
	return id, nil
}

func parseIDs(values []string, what string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := parseID(value, what)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
