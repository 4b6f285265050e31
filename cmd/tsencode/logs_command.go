package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tsencode/internal/api"
	"tsencode/internal/ipc"
	"tsencode/internal/logs"
	"tsencode/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var component string
	var jobID int64

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			apiClient, err := logs.NewStreamClient(cfg.API.Bind, cfg.API.Token)
			if err != nil {
				return err
			}

			// An unreachable socket only matters when the API is unavailable too.
			var fallback logstream.TailClient
			client, dialErr := ctx.dialClient()
			if dialErr == nil {
				defer client.Close()
				fallback = client
			}

			out := cmd.OutOrStdout()
			printed, err := logstream.Stream(cmd.Context(), apiClient, fallback, logstream.Options{
				Lines:  lines,
				Follow: follow,
				Filters: logstream.Filters{
					Component: strings.TrimSpace(component),
					JobID:     jobID,
				},
			}, func(evt api.LogEvent) {
				fmt.Fprintln(out, formatLogEvent(evt))
			}, func(line string) {
				fmt.Fprintln(out, line)
			})
			if errors.Is(err, logs.ErrAPIUnavailable) && dialErr != nil {
				return dialErr
			}
			if err != nil {
				return err
			}
			if !printed {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&component, "component", "", "Only show events from this component (requires the HTTP API)")
	cmd.Flags().Int64Var(&jobID, "job", 0, "Only show events for this job id (requires the HTTP API)")
	return cmd
}

func formatLogEvent(evt api.LogEvent) string {
	var b strings.Builder
	b.WriteString(formatLogTime(evt.Timestamp))
	b.WriteString(" ")
	b.WriteString(fmt.Sprintf("%-5s", strings.ToUpper(evt.Level)))
	if evt.Component != "" {
		b.WriteString(" [")
		b.WriteString(evt.Component)
		b.WriteString("]")
	}
	if evt.JobID > 0 {
		fmt.Fprintf(&b, " job=%d", evt.JobID)
	}
	b.WriteString(" ")
	b.WriteString(evt.Message)
	writeDetails(&b, evt.Details)
	return b.String()
}

func formatLogTime(value string) string {
	if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value)); err == nil {
		return t.Local().Format("2006-01-02 15:04:05")
	}
	return value
}

func writeDetails(w io.Writer, details []api.DetailField) {
	for _, field := range details {
		fmt.Fprintf(w, " %s=%s", field.Label, field.Value)
	}
}

var _ logstream.TailClient = (*ipc.Client)(nil)
