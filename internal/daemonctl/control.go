// Package daemonctl launches, stops and inspects the background daemon on
// behalf of the CLI.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"tsencode/internal/api"
	"tsencode/internal/config"
	"tsencode/internal/ipc"
	"tsencode/internal/preflight"
	"tsencode/internal/queue"
)

const pollInterval = 200 * time.Millisecond

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
}

// StartState describes what EnsureStarted had to do.
type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// Launch starts a detached `tsencode daemon` process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient polls the socket until it accepts a connection.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	lastErr := errors.New("timeout waiting for daemon")
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(pollInterval)
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon process if its socket is absent and then
// asks it to start encoding.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client, err := ipc.Dial(socketPath)
	launched := false
	if err != nil {
		if launchErr := Launch(executablePath, opts); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = WaitForClient(socketPath, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		launched = true
	}
	defer client.Close()

	if status, statusErr := client.Status(); statusErr == nil && status.Status.Running {
		if launched {
			return StartResult{State: StartStateStarted, Launched: true}, nil
		}
		return StartResult{State: StartStateAlreadyRunning}, nil
	}

	resp, err := client.Start()
	if err != nil {
		return StartResult{}, err
	}
	message := strings.TrimSpace(resp.Message)
	switch {
	case resp.Started:
		return StartResult{State: StartStateStarted, Launched: launched, Message: message}, nil
	case strings.EqualFold(message, "daemon already running"):
		return StartResult{State: StartStateAlreadyRunning, Launched: launched, Message: message}, nil
	case message == "":
		message = "Start request sent"
	}
	return StartResult{State: StartStateRequested, Launched: launched, Message: message}, nil
}

// WaitForShutdown waits for the socket to disappear or report not running.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	lastErr := errors.New("timeout waiting for shutdown")
	for time.Now().Before(deadline) {
		reachable, _, running, err := probe(socketPath)
		if err == nil && (!reachable || !running) {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = errors.New("daemon still running")
		}
		time.Sleep(pollInterval)
	}
	return fmt.Errorf("daemon did not stop: %w", lastErr)
}

// probe reports whether the socket answers, the daemon PID and whether the
// encode workers are running.
func probe(socketPath string) (reachable bool, pid int, running bool, err error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, false, nil
		}
		return false, 0, false, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return true, 0, false, err
	}
	return true, status.Status.PID, status.Status.Running, nil
}

// StopAndTerminate stops the daemon and kills the process once the grace
// period has passed. The daemon process keeps serving IPC after Stop, so the
// process is always terminated.
func StopAndTerminate(cfg *config.Config, socketPath string, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	pid := 0
	if status, statusErr := client.Status(); statusErr == nil {
		pid = status.Status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid, StopAcknowledged: resp.Stopped}

	_ = WaitForShutdown(socketPath, gracePeriod)
	if reachable, livePID, _, _ := probe(socketPath); reachable && livePID > 0 {
		pid = livePID
	}
	if pid == 0 && !fileExists(PIDPath(cfg)) {
		return result, nil
	}
	killed, err := ForceKillProcess(PIDPath(cfg), cfg.LockPath(), pid)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killed
	return result, nil
}

// PIDPath returns the pid file written by the foreground daemon.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "tsencode.pid")
}

// ForceKillProcess sends SIGTERM to the daemon and removes its pid and lock
// files. The pid file wins over fallbackPID when present.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	switch {
	case err == nil:
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	case !errors.Is(err, os.ErrNotExist):
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(unix.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return 0, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// StatusLine is one labelled row in `tsencode status`.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// DependencySummary aggregates dependency readiness.
type DependencySummary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missing_required"`
	MissingOptional int    `json:"missing_optional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail"`
}

// Snapshot is everything `tsencode status` renders.
type Snapshot struct {
	Reachable         bool                  `json:"reachable"`
	Status            api.DaemonStatus      `json:"status"`
	SystemChecks      []StatusLine          `json:"system_checks"`
	QueueDatabase     *queue.DatabaseHealth `json:"queue_database,omitempty"`
	Paths             []StatusLine          `json:"paths"`
	DependencySummary DependencySummary     `json:"dependency_summary"`
}

// BuildStatusSnapshot asks the daemon for its status, falling back to reading
// the queue database and checking dependencies locally when it is offline.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{}

	if client, err := ipc.Dial(socketPath); err == nil {
		if resp, statusErr := client.Status(); statusErr == nil {
			snap.Reachable = true
			snap.Status = resp.Status
		}
		_ = client.Close()
	}

	if !snap.Reachable {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if store, err := queue.Open(cfg); err == nil {
			if stats, statsErr := store.Stats(queryCtx); statsErr == nil {
				snap.Status.Encode.QueueStats = api.MergeQueueStats(stats)
			}
			health, _ := store.CheckHealth(queryCtx)
			snap.QueueDatabase = &health
			_ = store.Close()
		}
		snap.Status.Dependencies = api.FromDependencies(preflight.CheckSystemDeps(cfg))
	}

	snap.SystemChecks = BuildSystemChecks(cfg, snap)
	snap.Paths = BuildPathChecks(cfg)
	snap.DependencySummary = BuildDependencySummary(snap.Status.Dependencies)
	return snap, nil
}

// BuildSystemChecks resolves status lines that combine runtime state and config.
func BuildSystemChecks(cfg *config.Config, snap *Snapshot) []StatusLine {
	lines := make([]StatusLine, 0, 5)
	switch {
	case !snap.Reachable:
		lines = append(lines, StatusLine{Label: "tsencode", Severity: "warn", Detail: "Not running (run `tsencode start`)"})
	case snap.Status.Running:
		lines = append(lines, StatusLine{Label: "tsencode", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", snap.Status.PID)})
	default:
		lines = append(lines, StatusLine{Label: "tsencode", Severity: "warn", Detail: "Process up, encoding stopped"})
	}

	engine := cfg.Encode.Engine
	if cfg.UsesCLIEncoder() {
		engine = fmt.Sprintf("%s (%s)", engine, cfg.Encode.DraptoBinary)
	}
	lines = append(lines, StatusLine{Label: "Encoder", Severity: "info", Detail: fmt.Sprintf("%s, %d worker(s)", engine, cfg.Encode.Concurrency)})

	if strings.TrimSpace(cfg.API.Bind) == "" {
		lines = append(lines, StatusLine{Label: "HTTP API", Severity: "info", Detail: "Disabled"})
	} else {
		lines = append(lines, StatusLine{Label: "HTTP API", Severity: "ok", Detail: cfg.API.Bind})
	}
	if cfg.ArchiveEnabled() {
		lines = append(lines, StatusLine{Label: "Archive", Severity: "ok", Detail: fmt.Sprintf("%s://%s", cfg.Archive.Backend, cfg.Archive.Bucket)})
	} else {
		lines = append(lines, StatusLine{Label: "Archive", Severity: "info", Detail: "Disabled"})
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "ok", Detail: "Configured"})
	} else {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "warn", Detail: "Not configured"})
	}
	if db := snap.QueueDatabase; db != nil {
		lines = append(lines, queueDatabaseLine(db))
	}
	return lines
}

func queueDatabaseLine(db *queue.DatabaseHealth) StatusLine {
	line := StatusLine{Label: "Queue DB"}
	switch {
	case db.Error != "":
		line.Severity, line.Detail = "error", db.Error
	case !db.DatabaseExists:
		line.Severity, line.Detail = "info", "Not created yet"
	case !db.IntegrityCheck:
		line.Severity, line.Detail = "error", "Integrity check failed"
	default:
		line.Severity, line.Detail = "ok", fmt.Sprintf("%d job(s), integrity ok", db.TotalJobs)
	}
	return line
}

// BuildPathChecks reports accessibility of the configured directories.
func BuildPathChecks(cfg *config.Config) []StatusLine {
	dirs := []struct {
		label string
		path  string
	}{
		{label: "Data", path: cfg.Paths.DataDir},
		{label: "Output", path: cfg.Paths.OutputDir},
		{label: "Staging", path: cfg.Paths.StagingDir},
	}
	lines := make([]StatusLine, 0, len(dirs))
	for _, dir := range dirs {
		result := preflight.CheckDirectoryAccess(dir.label, dir.path)
		severity := "error"
		if result.Passed {
			severity = "ok"
		}
		lines = append(lines, StatusLine{Label: dir.label, Severity: severity, Detail: result.Detail})
	}
	return lines
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(deps []api.DependencyStatus) DependencySummary {
	if len(deps) == 0 {
		return DependencySummary{Severity: "info", Detail: "No dependency checks configured"}
	}

	var missingRequired, missingOptional int
	for _, dep := range deps {
		switch {
		case dep.Available:
		case dep.Optional:
			missingOptional++
		default:
			missingRequired++
		}
	}

	available := len(deps) - missingRequired - missingOptional
	summary := DependencySummary{
		Total:           len(deps),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        "ok",
		Detail:          fmt.Sprintf("%d/%d available", available, len(deps)),
	}
	switch {
	case missingRequired > 0:
		summary.Severity = "error"
	case missingOptional > 0:
		summary.Severity = "warn"
	}
	if missingRequired+missingOptional > 0 {
		summary.Detail = fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(deps), missingRequired, missingOptional)
	}
	return summary
}

func isDaemonUnavailable(err error) bool {
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, unix.ENOENT) ||
		errors.Is(err, unix.ECONNREFUSED)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
