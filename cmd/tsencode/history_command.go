package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tsencode/internal/ipc"
	"tsencode/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var failures bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent encode outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := journal.KindSuccess
			if failures {
				kind = journal.KindFailure
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(string(kind), limit)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, resp.Entries)
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No %s entries recorded\n", kind)
					return nil
				}
				detail := "Output"
				if failures {
					detail = "Error"
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"When", "Outcome", "Job", "Recording", "Took", detail},
					buildHistoryRows(resp.Entries),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&failures, "failures", false, "Show failed encodes instead of successes")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries")
	return cmd
}
