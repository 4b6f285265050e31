// Package daemonrun hosts the foreground daemon process: logging setup, store
// and service wiring, the IPC socket, and signal-driven shutdown.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tsencode/internal/archive"
	"tsencode/internal/config"
	"tsencode/internal/coordinator"
	"tsencode/internal/daemon"
	"tsencode/internal/encodemanager"
	"tsencode/internal/encoder"
	"tsencode/internal/ipc"
	"tsencode/internal/journal"
	"tsencode/internal/logging"
	"tsencode/internal/notify"
	"tsencode/internal/preflight"
	"tsencode/internal/queue"
	"tsencode/internal/recordings"
	"tsencode/internal/registrar"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SocketPath overrides the socket derived from the data directory.
	SocketPath string
}

// Run starts the tsencode daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("tsencode-%s.log", runID))
	logHub := logging.NewStreamHub(4096)

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		Stream:           logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update tsencode.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "tsencode-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, "jobs"), Pattern: "job-*.log"},
	)
	logPreflight(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "tsencode.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	queueStore, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer queueStore.Close()

	recStore, err := recordings.Open(cfg)
	if err != nil {
		logger.Error("open recordings store", logging.Error(err))
		return err
	}
	defer recStore.Close()

	outcomes, err := journal.Open(cfg)
	if err != nil {
		logger.Error("open journal", logging.Error(err))
		return err
	}
	defer outcomes.Close()

	uploader, err := archive.New(signalCtx, cfg)
	if err != nil {
		return fmt.Errorf("init archive: %w", err)
	}
	if uploader != nil {
		defer uploader.Close()
	}

	svc := wire(signalCtx, cfg, logger, queueStore, recStore, outcomes, uploader)
	d, err := daemon.New(cfg, daemon.Deps{
		Queue:       queueStore,
		Recordings:  recStore,
		Journal:     outcomes,
		Manager:     svc.manager,
		Coordinator: svc.coordinator,
		Broadcaster: svc.broadcaster,
		Registrar:   svc.registrar,
		LogHub:      logHub,
		LogPath:     logPath,
	}, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and database access"),
			logging.String(logging.FieldImpact, "queued encodes will not run until the daemon is started"),
		)
	}

	<-signalCtx.Done()
	logger.Info("tsencode daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

type services struct {
	manager     *encodemanager.Manager
	coordinator *coordinator.Coordinator
	broadcaster *notify.Broadcaster
	registrar   *registrar.Service
}

// wire builds encoder, manager, coordinator and notifier. The coordinator
// registers its listeners on the manager here, before any worker starts.
func wire(ctx context.Context, cfg *config.Config, logger *slog.Logger, queueStore *queue.Store, recStore *recordings.Store, outcomes *journal.Journal, uploader archive.Uploader) services {
	var opts []encodemanager.Option
	if outcomes != nil {
		opts = append(opts, encodemanager.WithJournal(outcomes))
	}
	manager := encodemanager.New(cfg, queueStore, encoder.New(cfg), logger, opts...)
	broadcaster := notify.NewBroadcaster(ctx, cfg, notify.NewHub(), logger)
	reg := registrar.New(recStore, uploader, cfg.Archive.Prefix, logger)
	return services{
		manager:     manager,
		coordinator: coordinator.New(manager, broadcaster, recStore, reg, logger),
		broadcaster: broadcaster,
		registrar:   reg,
	}
}

func logPreflight(logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String(logging.FieldEventType, "preflight_passed"),
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run tsencode status for dependency details"),
			logging.String(logging.FieldImpact, "encodes may fail until this is fixed"))
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "tsencode.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}
