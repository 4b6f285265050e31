package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tsencode/internal/config"
	"tsencode/internal/coordinator"
	"tsencode/internal/daemon"
	"tsencode/internal/encodemanager"
	"tsencode/internal/encoder"
	"tsencode/internal/ipc"
	"tsencode/internal/journal"
	"tsencode/internal/logging"
	"tsencode/internal/notify"
	"tsencode/internal/queue"
	"tsencode/internal/recordings"
	"tsencode/internal/registrar"
	"tsencode/internal/testsupport"
)

type copyEncoder struct{}

func (copyEncoder) Encode(_ context.Context, input, outputDir string, _ func(encoder.ProgressUpdate)) (string, error) {
	out := encoder.OutputPath(input, outputDir)
	if err := os.WriteFile(out, []byte("encoded"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	queue      *queue.Store
	recs       *recordings.Store
	daemon     *daemon.Daemon
	socketPath string
	configPath string
	logPath    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = ""
	logPath := filepath.Join(cfg.Paths.LogDir, "tsencode-test.log")
	if err := os.WriteFile(logPath, nil, 0o644); err != nil {
		t.Fatalf("create log file: %v", err)
	}

	configPath := filepath.Join(homeDir, ".config", "tsencode", "config.toml")
	writeTestConfig(t, configPath, cfg)

	queueStore := testsupport.MustOpenQueue(t, cfg)
	recStore := testsupport.MustOpenRecordings(t, cfg)
	j, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	logger := logging.NewNop()
	mgr := encodemanager.New(cfg, queueStore, copyEncoder{}, logger, encodemanager.WithJournal(j))
	broadcaster := notify.New(notify.NewHub(), nil, "", time.Second, logger)
	reg := registrar.New(recStore, nil, "", logger)
	coord := coordinator.New(mgr, broadcaster, recStore, reg, logger)

	d, err := daemon.New(cfg, daemon.Deps{
		Queue:       queueStore,
		Recordings:  recStore,
		Journal:     j,
		Manager:     mgr,
		Coordinator: coord,
		Broadcaster: broadcaster,
		Registrar:   reg,
		LogPath:     logPath,
	}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	socketPath := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	return &cliTestEnv{
		cfg:        cfg,
		queue:      queueStore,
		recs:       recStore,
		daemon:     d,
		socketPath: socketPath,
		configPath: configPath,
		logPath:    logPath,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, args, e.socketPath, e.configPath)
}

func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("tsencode %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (e *cliTestEnv) recording(t *testing.T, name string) *recordings.Recording {
	t.Helper()
	return testsupport.NewRecording(t, e.cfg, e.recs, name, 4096)
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\noutput_dir = %q\nstaging_dir = %q\n\n[api]\nbind = \"\"\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.OutputDir,
		cfg.Paths.StagingDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
