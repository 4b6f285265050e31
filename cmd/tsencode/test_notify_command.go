package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tsencode/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Publish a test event to ntfy through the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("daemon returned no notification result")
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), notifyResultText(resp.Sent, resp.Message))
				return nil
			})
		},
	}
}

func notifyResultText(sent bool, message string) string {
	if message != "" {
		return message
	}
	if sent {
		return "Test notification sent"
	}
	return "Notification not sent"
}
