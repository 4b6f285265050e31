package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tsencode/internal/api"
	"tsencode/internal/config"
	"tsencode/internal/journal"
	"tsencode/internal/logging"
	"tsencode/internal/services"
)

const (
	defaultHistoryLimit = 50
	maxEventsWait       = 30 * time.Second
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	jobs    *api.JobService
	handler http.Handler

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, nil
	}

	auth, err := newAuthenticator(cfg.API)
	if err != nil {
		return nil, fmt.Errorf("configure api auth: %w", err)
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
		jobs:   api.NewJobService(d.deps.Queue),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/encode", srv.handleEncode)
	mux.HandleFunc("/api/encode/", srv.handleJob)
	mux.HandleFunc("/api/recordings", srv.handleRecordings)
	mux.HandleFunc("/api/recordings/", srv.handleRecording)
	mux.HandleFunc("/api/history", srv.handleHistory)
	mux.HandleFunc("/api/events", srv.handleEvents)
	mux.HandleFunc("/api/logs", srv.handleLogs)
	srv.handler = requestIDMiddleware(auth.middleware(mux.ServeHTTP))
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      maxEventsWait + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	server := s.server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.server = nil
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listener address, useful when binding port 0.
func (s *apiServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, status.ToAPI())
}

// ToAPI converts the status into its transport representation.
func (status Status) ToAPI() api.DaemonStatus {
	return api.DaemonStatus{
		Running:          status.Running,
		PID:              status.PID,
		QueueDBPath:      status.QueueDBPath,
		RecordingsDBPath: status.RecordingsDBPath,
		JournalDir:       status.JournalDir,
		LockFilePath:     status.LockFilePath,
		EventSequence:    status.EventSequence,
		Encode:           api.FromEncodeStatus(status.Encode),
		Dependencies:     api.FromDependencies(status.Dependencies),
	}
}

func (s *apiServer) handleEncode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.jobs.List(r.Context(), api.ParseStatuses(r.URL.Query()["status"])...)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.JobListResponse{Items: items})
	case http.MethodPost:
		var req api.EncodeRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if err := s.daemon.Encode(r.Context(), req); err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, ok := s.pathID(w, r, "/api/encode/", "job")
	if !ok {
		return
	}
	item, err := s.jobs.Describe(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Item: *item})
}

func (s *apiServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	recs, err := s.daemon.ListRecordings(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingListResponse{Items: api.FromRecordings(recs)})
}

func (s *apiServer) handleRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, ok := s.pathID(w, r, "/api/recordings/", "recording")
	if !ok {
		return
	}
	rec, files, err := s.daemon.GetRecording(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingResponse{Item: api.FromRecording(rec, files)})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	kind := journal.KindSuccess
	if value := strings.TrimSpace(query.Get("kind")); value != "" {
		parsed, ok := journal.ParseKind(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "kind must be success or failure")
			return
		}
		kind = parsed
	}
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	entries, err := s.daemon.History(kind, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Entries: api.FromHistory(entries)})
}

// handleEvents long-polls the client notification hub. Without wait it
// returns the current event immediately; with wait it blocks until an event
// newer than since arrives or the poll window closes.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	hub := s.daemon.Events()
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	wait := query.Get("wait") == "1" || strings.EqualFold(query.Get("wait"), "true")

	evt := hub.Current()
	if wait {
		ctx, cancel := context.WithTimeout(r.Context(), maxEventsWait)
		defer cancel()
		var err error
		evt, err = hub.Wait(ctx, since)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if errors.Is(r.Context().Err(), context.Canceled) {
			return
		}
	}
	s.writeJSON(w, http.StatusOK, api.FromStateEvent(evt))
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	hub := s.daemon.LogStream()
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	tail := query.Get("tail") == "1" || strings.EqualFold(query.Get("tail"), "true")

	var filterJob int64
	if value := strings.TrimSpace(query.Get("job")); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			filterJob = parsed
		}
	}
	component := strings.TrimSpace(query.Get("component"))

	var (
		events []logging.LogEvent
		next   uint64
	)
	if tail && since == 0 && !follow {
		events, next = hub.Tail(limit)
	} else {
		ctx := r.Context()
		if follow {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, maxEventsWait)
			defer cancel()
		}
		var err error
		events, next, err = hub.Fetch(ctx, since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	filtered := make([]api.LogEvent, 0, len(events))
	for _, evt := range api.FromLogEvents(events) {
		if filterJob != 0 && evt.JobID != filterJob {
			continue
		}
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: filtered, Next: next})
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request, prefix, noun string) (int64, bool) {
	idStr := strings.TrimPrefix(r.URL.Path, prefix)
	if idStr == "" || strings.Contains(idStr, "/") {
		s.writeError(w, http.StatusNotFound, noun+" not found")
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid "+noun+" id")
		return 0, false
	}
	return id, true
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log().Error("api request failed", logging.Error(err), logging.String("error_kind", services.Kind(err)))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}

// requestIDMiddleware tags each request with a correlation id, honouring one
// supplied by the client.
func requestIDMiddleware(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}
