package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tsencode/internal/api"
	"tsencode/internal/daemonctl"
)

const (
	daemonStartTimeout = 10 * time.Second
	daemonStopGrace    = 5 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the tsencode daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.OutOrStdout(), ctx)
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the tsencode daemon (terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runStop(cmd.OutOrStdout(), ctx)
			return err
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the tsencode daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if _, err := runStop(stdout, ctx); err != nil {
				return err
			}
			return runStart(stdout, ctx)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if ctx.jsonMode() {
				return writeJSON(cmd, snap)
			}
			renderStatus(cmd.OutOrStdout(), snap, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func runStart(stdout io.Writer, ctx *commandContext) error {
	exe, err := daemonExecutable()
	if err != nil {
		return err
	}
	result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx), daemonStartTimeout)
	if err != nil {
		return err
	}
	if result.Launched {
		fmt.Fprintln(stdout, "Daemon not running, launching...")
	}
	switch result.State {
	case daemonctl.StartStateStarted:
		fmt.Fprintln(stdout, "Daemon started")
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintln(stdout, "Daemon already running")
	case daemonctl.StartStateRequested:
		fmt.Fprintln(stdout, result.Message)
	}
	return nil
}

func runStop(stdout io.Writer, ctx *commandContext) (bool, error) {
	result, err := daemonctl.StopAndTerminate(ctx.configValue(), ctx.socketPath(), daemonStopGrace)
	if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		fmt.Fprintln(stdout, "Daemon is not running")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if result.StopAcknowledged {
		fmt.Fprintln(stdout, "Stopping encode workers...")
	} else {
		fmt.Fprintln(stdout, "Stop request sent")
	}
	if result.ForcedKill && result.PID > 0 {
		fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
	}
	fmt.Fprintln(stdout, "Daemon stopped")
	return true, nil
}

func renderStatus(stdout io.Writer, snap *daemonctl.Snapshot, colorize bool) {
	printSection(stdout, "System Status", colorize)
	for _, line := range snap.SystemChecks {
		fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
	}
	if lastErr := strings.TrimSpace(snap.Status.Encode.LastError); lastErr != "" {
		fmt.Fprintln(stdout, renderStatusLine("Last error", statusError, lastErr, colorize))
	}
	fmt.Fprintln(stdout)

	printSection(stdout, "Dependencies", colorize)
	for _, line := range dependencyLines(snap.Status.Dependencies, snap.DependencySummary, colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout)

	printSection(stdout, "Paths", colorize)
	for _, line := range snap.Paths {
		fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
	}
	fmt.Fprintln(stdout)

	if len(snap.Status.Encode.Active) > 0 {
		printSection(stdout, "Encoding", colorize)
		fmt.Fprint(stdout, renderTable(jobHeaders, buildJobRows(snap.Status.Encode.Active), jobAlignments))
		fmt.Fprintln(stdout)
	}

	printSection(stdout, "Queue Status", colorize)
	rows := buildQueueStatusRows(snap.Status.Encode.QueueStats)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "Queue is empty")
		return
	}
	fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func printSection(stdout io.Writer, title string, colorize bool) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(stdout, line)
	}
}

func dependencyLines(deps []api.DependencyStatus, summary daemonctl.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(deps)+2)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	var missing []string
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

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{SocketPath: ctx.socketPath()}
	if path := ctx.configPath(); path != "" {
		opts.ConfigPath = path
	}
	return opts
}
