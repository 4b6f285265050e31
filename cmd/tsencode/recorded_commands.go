package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tsencode/internal/config"
	"tsencode/internal/ipc"
)

func newRecordedCommand(ctx *commandContext) *cobra.Command {
	recordedCmd := &cobra.Command{
		Use:     "recorded",
		Aliases: []string{"rec"},
		Short:   "Inspect and manage catalogued recordings",
	}

	recordedCmd.AddCommand(newRecordedListCommand(ctx))
	recordedCmd.AddCommand(newRecordedShowCommand(ctx))
	recordedCmd.AddCommand(newRecordedAddCommand(ctx))
	recordedCmd.AddCommand(newRecordedRegisterCommand(ctx))

	return recordedCmd
}

func newRecordedListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalogued recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordingList()
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, resp.Items)
				}
				if len(resp.Items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No recordings catalogued")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Channel", "Size", "Added"},
					buildRecordingRows(resp.Items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newRecordedShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <recording-id>",
		Short: "Show a recording and its encoded files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "recording")
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordingShow(id)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, resp.Item)
				}
				item := resp.Item
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderDetails([][]string{
					{"ID", strconv.FormatInt(item.ID, 10)},
					{"Name", item.Name},
					{"Channel", dashIfEmpty(item.Channel)},
					{"Source", dashIfEmpty(item.SourcePath)},
					{"Size", formatBytes(item.SourceSize)},
					{"Added", formatDisplayTime(item.CreatedAt)},
				}))
				if len(item.Files) == 0 {
					fmt.Fprintln(out, "No encoded files")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Name", "Size", "Path", "Archive"},
					buildEncodedFileRows(item.Files),
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newRecordedAddCommand(ctx *commandContext) *cobra.Command {
	var name string
	var channel string

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Catalogue an existing recording file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := absolutePath(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordingAdd(ipc.RecordingAddRequest{
					Name:       strings.TrimSpace(name),
					Channel:    strings.TrimSpace(channel),
					SourcePath: source,
				})
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, resp.Item)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Catalogued recording %d: %s\n", resp.Item.ID, resp.Item.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the file name)")
	cmd.Flags().StringVar(&channel, "channel", "", "Broadcast channel")
	return cmd
}

func newRecordedRegisterCommand(ctx *commandContext) *cobra.Command {
	var name string
	var deleteSource bool

	cmd := &cobra.Command{
		Use:   "register <recording-id> <path>",
		Short: "Register an externally produced file against a recording",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "recording")
			if err != nil {
				return err
			}
			path, err := absolutePath(args[1])
			if err != nil {
				return err
			}
			fileName := strings.TrimSpace(name)
			if fileName == "" {
				fileName = filepath.Base(path)
			}
			registrar := ipc.NewRegistrar(ctx.socketPath())
			if err := registrar.RegisterProducedFile(cmd.Context(), id, fileName, path, deleteSource); err != nil {
				return err
			}
			if ctx.jsonMode() {
				return writeJSON(cmd, ipc.RegisterFileResponse{Registered: true})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s for recording %d\n", fileName, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "File name to record (defaults to the base name)")
	cmd.Flags().BoolVar(&deleteSource, "delete-source", false, "Delete the recording's source after registering")
	return cmd
}

func absolutePath(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("path is required")
	}
	expanded, err := config.ExpandPath(value)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	return expanded, nil
}
