package ipc_test

import (
	"context"
	"errors"
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
	"tsencode/internal/logging"
	"tsencode/internal/notify"
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

type fixture struct {
	cfg     *config.Config
	recs    *recordings.Store
	socket  string
	logPath string
	client  *ipc.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = ""
	queueStore := testsupport.MustOpenQueue(t, cfg)
	recStore := testsupport.MustOpenRecordings(t, cfg)
	logger := logging.NewNop()

	mgr := encodemanager.New(cfg, queueStore, copyEncoder{}, logger)
	broadcaster := notify.New(notify.NewHub(), nil, "", time.Second, logger)
	reg := registrar.New(recStore, nil, "", logger)
	coord := coordinator.New(mgr, broadcaster, recStore, reg, logger)
	logPath := filepath.Join(cfg.Paths.LogDir, "ipc-test.log")

	d, err := daemon.New(cfg, daemon.Deps{
		Queue:       queueStore,
		Recordings:  recStore,
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

	socket := filepath.Join(cfg.Paths.LogDir, "tsencode.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return &fixture{cfg: cfg, recs: recStore, socket: socket, logPath: logPath, client: client}
}

func TestIPCLifecycleAndEncode(t *testing.T) {
	f := newFixture(t)
	rec := testsupport.NewRecording(t, f.cfg, f.recs, "news", 2048)

	startResp, err := f.client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}
	again, err := f.client.Start()
	if err != nil {
		t.Fatalf("second Start RPC failed: %v", err)
	}
	if again.Started || again.Message == "" {
		t.Fatalf("expected second start to be refused with a message, got %+v", again)
	}

	status, err := f.client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Status.Running || status.Status.PID != os.Getpid() {
		t.Fatalf("unexpected status: %+v", status.Status)
	}

	push, err := f.client.EncodePush(ipc.EncodePushRequest{RecordingID: rec.ID, OutputName: "news.mp4"})
	if err != nil {
		t.Fatalf("EncodePush: %v", err)
	}
	if !push.Queued {
		t.Fatal("expected push to be queued")
	}

	deadline := time.Now().Add(10 * time.Second)
	var show *ipc.RecordingShowResponse
	for time.Now().Before(deadline) {
		show, err = f.client.RecordingShow(rec.ID)
		if err != nil {
			t.Fatalf("RecordingShow: %v", err)
		}
		if len(show.Item.Files) == 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(show.Item.Files) != 1 || show.Item.Files[0].Name != "news.mp4" {
		t.Fatalf("expected registered output, got %+v", show.Item)
	}

	jobs, err := f.client.QueueList([]string{"completed"})
	if err != nil {
		t.Fatalf("QueueList: %v", err)
	}
	if len(jobs.Items) != 1 || jobs.Items[0].RecordingID != rec.ID {
		t.Fatalf("unexpected jobs: %+v", jobs.Items)
	}
	described, err := f.client.QueueDescribe(jobs.Items[0].ID)
	if err != nil {
		t.Fatalf("QueueDescribe: %v", err)
	}
	if described.Item.Status != "completed" {
		t.Fatalf("unexpected job: %+v", described.Item)
	}

	if _, err := f.client.QueueReset(); err == nil {
		t.Fatal("expected reset to be refused while running")
	}

	cleared, err := f.client.QueueClearCompleted()
	if err != nil {
		t.Fatalf("QueueClearCompleted: %v", err)
	}
	if cleared.Removed != 1 {
		t.Fatalf("expected one completed job removed, got %d", cleared.Removed)
	}

	stopResp, err := f.client.Stop()
	if err != nil || !stopResp.Stopped {
		t.Fatalf("Stop RPC failed: %v %+v", err, stopResp)
	}
	reset, err := f.client.QueueReset()
	if err != nil {
		t.Fatalf("QueueReset after stop: %v", err)
	}
	if reset.Updated != 0 {
		t.Fatalf("expected nothing to reset, got %d", reset.Updated)
	}
}

func TestIPCRecordingAddAndList(t *testing.T) {
	f := newFixture(t)
	source := filepath.Join(testsupport.BaseDir(f.cfg), "recorded", "Late Movie.ts")
	testsupport.WriteFile(t, source, 4096)

	added, err := f.client.RecordingAdd(ipc.RecordingAddRequest{Channel: "BS1", SourcePath: source})
	if err != nil {
		t.Fatalf("RecordingAdd: %v", err)
	}
	if added.Item.Name != "Late Movie" || added.Item.SourceSize != 4096 {
		t.Fatalf("unexpected recording: %+v", added.Item)
	}

	list, err := f.client.RecordingList()
	if err != nil {
		t.Fatalf("RecordingList: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != added.Item.ID {
		t.Fatalf("unexpected list: %+v", list.Items)
	}

	if _, err := f.client.RecordingShow(9999); err == nil {
		t.Fatal("expected error for unknown recording")
	}
	if _, err := f.client.RecordingAdd(ipc.RecordingAddRequest{SourcePath: source + ".missing"}); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestRegistrarAdapterRegistersThroughDaemon(t *testing.T) {
	f := newFixture(t)
	rec := testsupport.NewRecording(t, f.cfg, f.recs, "drama", 1024)
	produced := filepath.Join(f.cfg.Paths.OutputDir, "drama.mkv")
	testsupport.WriteFile(t, produced, 512)

	var reg coordinator.Registrar = ipc.NewRegistrar(f.socket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := reg.RegisterProducedFile(ctx, rec.ID, "drama.mkv", produced, true); err != nil {
		t.Fatalf("RegisterProducedFile: %v", err)
	}

	files, err := f.recs.Files(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != produced || files[0].Size != 512 {
		t.Fatalf("unexpected files: %+v", files)
	}
	testsupport.AssertMissing(t, rec.SourcePath)

	if err := reg.RegisterProducedFile(ctx, 9999, "x.mkv", produced, false); err == nil {
		t.Fatal("expected error for unknown recording")
	}
}

func TestRegistrarAdapterFailsWithoutDaemon(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "absent.sock")
	err := ipc.NewRegistrar(socket).RegisterProducedFile(context.Background(), 1, "a.mkv", "/tmp/a.mkv", false)
	if err == nil || !strings.Contains(err.Error(), "dial daemon") {
		t.Fatalf("expected dial error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = ipc.NewRegistrar(socket).RegisterProducedFile(ctx, 1, "a.mkv", "/tmp/a.mkv", false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestIPCLogTailAndHistory(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(f.logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	tail, err := f.client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail: %v", err)
	}
	if len(tail.Lines) != 2 || tail.Lines[0] != "second" || tail.Lines[1] != "third" {
		t.Fatalf("unexpected lines: %#v", tail.Lines)
	}

	history, err := f.client.History("", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history.Entries) != 0 {
		t.Fatalf("expected empty history without a journal, got %+v", history.Entries)
	}
	if _, err := f.client.History("sideways", 10); err == nil {
		t.Fatal("expected error for unknown kind")
	}

	note, err := f.client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if note.Sent {
		t.Fatal("expected notification to be skipped without a topic")
	}
}
