package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"tsencode/internal/api"
	"tsencode/internal/daemon"
	"tsencode/internal/journal"
	"tsencode/internal/logging"
	"tsencode/internal/logs"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer listens on path, replacing any stale socket left by a previous run.
// The socket is restricted to the owning user.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, &service{daemon: d, logger: logger, ctx: serverCtx}); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts connections in the background until Close.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go s.acceptLoop()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
				logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
		}()
	}
}

// Close stops accepting, waits for in-flight connections and removes the
// socket file.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC", logging.String(logging.FieldEventType, "ipc_daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "ipc_daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx).ToAPI()
	return nil
}

func (s *service) EncodePush(req EncodePushRequest, resp *EncodePushResponse) error {
	if err := s.daemon.Encode(s.ctx, req); err != nil {
		return err
	}
	resp.Queued = true
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	jobs, err := s.daemon.ListJobs(s.ctx, api.ParseStatuses(req.Statuses))
	if err != nil {
		return err
	}
	resp.Items = api.FromJobs(jobs)
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid job id %d", req.ID)
	}
	job, err := s.daemon.GetJob(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Item = api.FromJob(job)
	return nil
}

func (s *service) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	updated, err := s.daemon.RetryFailed(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.logger.Info("failed jobs retried",
		logging.String(logging.FieldEventType, "queue_retry"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) QueueReset(_ QueueResetRequest, resp *QueueResetResponse) error {
	updated, err := s.daemon.ResetStuck(s.ctx)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.logger.Info("stuck jobs reset",
		logging.String(logging.FieldEventType, "queue_reset_stuck"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) QueueClearCompleted(_ QueueClearCompletedRequest, resp *QueueClearCompletedResponse) error {
	removed, err := s.daemon.ClearCompleted(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) RecordingList(_ RecordingListRequest, resp *RecordingListResponse) error {
	recs, err := s.daemon.ListRecordings(s.ctx)
	if err != nil {
		return err
	}
	resp.Items = api.FromRecordings(recs)
	return nil
}

func (s *service) RecordingShow(req RecordingShowRequest, resp *RecordingShowResponse) error {
	rec, files, err := s.daemon.GetRecording(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Item = api.FromRecording(rec, files)
	return nil
}

func (s *service) RecordingAdd(req RecordingAddRequest, resp *RecordingAddResponse) error {
	rec, err := s.daemon.AddRecording(s.ctx, req.Name, req.Channel, req.SourcePath)
	if err != nil {
		return err
	}
	resp.Item = api.FromRecording(rec, nil)
	return nil
}

func (s *service) RegisterFile(req RegisterFileRequest, resp *RegisterFileResponse) error {
	if err := s.daemon.RegisterFile(s.ctx, req.RecordingID, req.Name, req.Path, req.DeleteSource); err != nil {
		return err
	}
	resp.Registered = true
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	kind := journal.KindSuccess
	if req.Kind != "" {
		parsed, ok := journal.ParseKind(req.Kind)
		if !ok {
			return fmt.Errorf("unknown history kind %q", req.Kind)
		}
		kind = parsed
	}
	entries, err := s.daemon.History(kind, req.Limit)
	if err != nil {
		return err
	}
	resp.Entries = api.FromHistory(entries)
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
