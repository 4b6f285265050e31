package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tsencode/internal/ipc"
	"tsencode/internal/queue"
)

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var inPlace bool
	var deleteSource bool
	var outputName string
	var outputDir string

	cmd := &cobra.Command{
		Use:   "encode <recording-id>",
		Short: "Queue an encode for a catalogued recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "recording")
			if err != nil {
				return err
			}
			mode := queue.ModeNewFile
			if inPlace {
				mode = queue.ModeInPlace
			}
			req := ipc.EncodePushRequest{
				RecordingID:  id,
				Mode:         string(mode),
				OutputName:   strings.TrimSpace(outputName),
				OutputDir:    strings.TrimSpace(outputDir),
				DeleteSource: deleteSource,
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.EncodePush(req)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, resp)
				}
				if inPlace {
					fmt.Fprintf(cmd.OutOrStdout(), "Queued in-place encode for recording %d\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Queued encode for recording %d\n", id)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&inPlace, "in-place", false, "Replace the recording's source file with the encoded output")
	cmd.Flags().BoolVar(&deleteSource, "delete-source", false, "Delete the source once the new file is registered")
	cmd.Flags().StringVar(&outputName, "name", "", "Output file name (defaults to the source name)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Output directory (defaults to paths.output_dir)")
	cmd.MarkFlagsMutuallyExclusive("in-place", "delete-source")
	cmd.MarkFlagsMutuallyExclusive("in-place", "name")
	return cmd
}
