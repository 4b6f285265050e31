package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tsencode/internal/api"
	"tsencode/internal/config"
	"tsencode/internal/coordinator"
	"tsencode/internal/daemon"
	"tsencode/internal/encodemanager"
	"tsencode/internal/encoder"
	"tsencode/internal/journal"
	"tsencode/internal/logging"
	"tsencode/internal/notify"
	"tsencode/internal/queue"
	"tsencode/internal/recordings"
	"tsencode/internal/registrar"
	"tsencode/internal/services"
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

type env struct {
	cfg    *config.Config
	recs   *recordings.Store
	daemon *daemon.Daemon
}

func newEnv(t *testing.T, opts ...testsupport.ConfigOption) *env {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
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
		LogHub:      logging.NewStreamHub(64),
	}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return &env{cfg: cfg, recs: recStore, daemon: d}
}

func (e *env) start(t *testing.T) {
	t.Helper()
	if err := e.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitForJobStatus(t *testing.T, d *daemon.Daemon, recordingID int64, status queue.Status) {
	t.Helper()
	waitFor(t, fmt.Sprintf("job for recording %d to reach %s", recordingID, status), func() bool {
		jobs, err := d.ListJobs(context.Background(), []queue.Status{status})
		if err != nil {
			return false
		}
		for _, job := range jobs {
			if job.RecordingID == recordingID {
				return true
			}
		}
		return false
	})
}

func TestDaemonStartStop(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.start(t)

	status := e.daemon.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != e.cfg.LockPath() || status.PID != os.Getpid() {
		t.Fatalf("unexpected status paths: %+v", status)
	}
	if e.daemon.APIAddr() == "" {
		t.Fatal("expected api listener address")
	}

	if err := e.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	e.daemon.Stop()
	if e.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	e.daemon.Stop()

	if err := e.daemon.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if !e.daemon.Running() {
		t.Fatal("expected daemon to be running after restart")
	}
}

func TestDaemonEncodeRegistersProducedFile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rec := testsupport.NewRecording(t, e.cfg, e.recs, "foo", 4096)
	e.start(t)

	before := e.daemon.Events().Current().Sequence
	if err := e.daemon.Encode(ctx, api.EncodeRequest{RecordingID: rec.ID, OutputName: "foo.mp4"}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var files []*recordings.EncodedFile
	waitFor(t, "produced file registration", func() bool {
		var err error
		files, err = e.recs.Files(ctx, rec.ID)
		return err == nil && len(files) == 1
	})
	want := filepath.Join(e.cfg.Paths.OutputDir, "foo.mp4")
	if files[0].Path != want || files[0].Name != "foo.mp4" {
		t.Fatalf("unexpected registered file: %+v", files[0])
	}
	waitForJobStatus(t, e.daemon, rec.ID, queue.StatusCompleted)
	waitFor(t, "completion notification", func() bool {
		return e.daemon.Events().Current().Sequence >= before+2
	})
	if got := e.daemon.Events().Current().Sequence; got != before+2 {
		t.Fatalf("expected queued and completion notifications only, sequence %d -> %d", before, got)
	}

	history, err := e.daemon.History(journal.KindSuccess, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].RecordingID != rec.ID {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestDaemonInPlaceEncodeUpdatesSourceSize(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rec := testsupport.NewRecording(t, e.cfg, e.recs, "drama", 4096)
	e.start(t)

	before := e.daemon.Events().Current().Sequence
	if err := e.daemon.Encode(ctx, api.EncodeRequest{RecordingID: rec.ID, Mode: string(queue.ModeInPlace)}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	waitForJobStatus(t, e.daemon, rec.ID, queue.StatusCompleted)
	waitFor(t, "completion notification", func() bool {
		return e.daemon.Events().Current().Sequence >= before+2
	})

	replaced := testsupport.FileSize(t, rec.SourcePath)
	if replaced == 4096 {
		t.Fatalf("expected source to be replaced, size still %d", replaced)
	}
	got, _, err := e.daemon.GetRecording(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecording: %v", err)
	}
	if got.SourceSize != replaced {
		t.Fatalf("stored source size = %d, want %d", got.SourceSize, replaced)
	}
	files, err := e.recs.Files(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("in-place encode should not register files, got %+v", files)
	}
}

func TestDaemonEncodeValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rec := testsupport.NewRecording(t, e.cfg, e.recs, "bar", 1024)

	if err := e.daemon.Encode(ctx, api.EncodeRequest{RecordingID: 999}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := e.daemon.Encode(ctx, api.EncodeRequest{RecordingID: rec.ID, Mode: "sideways"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for mode, got %v", err)
	}
	if err := e.daemon.Encode(ctx, api.EncodeRequest{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing id, got %v", err)
	}
}

func TestResetStuckRefusedWhileRunning(t *testing.T) {
	e := newEnv(t)
	e.start(t)
	if _, err := e.daemon.ResetStuck(context.Background()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error while running, got %v", err)
	}
	e.daemon.Stop()
	if _, err := e.daemon.ResetStuck(context.Background()); err != nil {
		t.Fatalf("ResetStuck after stop: %v", err)
	}
}

func TestAddRecording(t *testing.T) {
	e := newEnv(t)
	source := filepath.Join(testsupport.BaseDir(e.cfg), "recorded", "Evening News.ts")
	testsupport.WriteFile(t, source, 512)

	rec, err := e.daemon.AddRecording(context.Background(), "", "NHK", source)
	if err != nil {
		t.Fatalf("AddRecording: %v", err)
	}
	if rec.Name != "Evening News" || rec.SourceSize != 512 || rec.Channel != "NHK" {
		t.Fatalf("unexpected recording: %+v", rec)
	}
	if _, err := e.daemon.AddRecording(context.Background(), "x", "", testsupport.BaseDir(e.cfg)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for directory, got %v", err)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	e := newEnv(t)
	sent, msg, err := e.daemon.TestNotification(context.Background())
	if err != nil || sent || msg != "ntfy topic not configured" {
		t.Fatalf("unexpected result: %v %q %v", sent, msg, err)
	}
}

func TestHTTPAPI(t *testing.T) {
	e := newEnv(t, testsupport.WithAPIToken("secret-token"))
	rec := testsupport.NewRecording(t, e.cfg, e.recs, "api", 256)
	e.start(t)
	base := "http://" + e.daemon.APIAddr()

	do := func(method, path string, body any, token string) *http.Response {
		t.Helper()
		var buf bytes.Buffer
		if body != nil {
			if err := json.NewEncoder(&buf).Encode(body); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
		req, err := http.NewRequest(method, base+path, &buf)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	if resp := do(http.MethodGet, "/api/status", nil, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp := do(http.MethodGet, "/api/status", nil, "secret-token")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.Encode.Workers != 1 {
		t.Fatalf("unexpected status payload: %+v", status)
	}

	if resp := do(http.MethodPost, "/api/encode", api.EncodeRequest{RecordingID: 999}, "secret-token"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown recording, got %d", resp.StatusCode)
	}
	if resp := do(http.MethodPost, "/api/encode", api.EncodeRequest{RecordingID: rec.ID, Mode: "bogus"}, "secret-token"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad mode, got %d", resp.StatusCode)
	}
	if resp := do(http.MethodPost, "/api/encode", api.EncodeRequest{RecordingID: rec.ID}, "secret-token"); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	waitFor(t, "job completion", func() bool {
		files, err := e.recs.Files(context.Background(), rec.ID)
		return err == nil && len(files) == 1
	})

	resp = do(http.MethodGet, fmt.Sprintf("/api/recordings/%d", rec.ID), nil, "secret-token")
	var recResp api.RecordingResponse
	if err := json.NewDecoder(resp.Body).Decode(&recResp); err != nil {
		t.Fatalf("decode recording: %v", err)
	}
	if len(recResp.Item.Files) != 1 {
		t.Fatalf("expected one file, got %+v", recResp.Item)
	}

	if resp := do(http.MethodGet, "/api/recordings/999", nil, "secret-token"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if resp := do(http.MethodGet, "/api/history?kind=bogus", nil, "secret-token"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad kind, got %d", resp.StatusCode)
	}

	resp = do(http.MethodGet, "/api/encode?status=completed", nil, "secret-token")
	var jobs api.JobListResponse
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(jobs.Items) != 1 {
		t.Fatalf("expected one completed job, got %+v", jobs.Items)
	}

	resp = do(http.MethodGet, "/api/events?since=0&wait=1", nil, "secret-token")
	var evt api.StateEvent
	if err := json.NewDecoder(resp.Body).Decode(&evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Sequence == 0 || evt.Type != notify.EventStateChanged {
		t.Fatalf("unexpected event: %+v", evt)
	}
}
