package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/hermes"
	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/model"
)

// Processor runs one ingest request end to end.
type Processor interface {
	Process(ctx context.Context, path string, opts ingest.Options) ingest.Outcome
	RequestOptions(req hermes.IngestRequest) ingest.Options
}

type Store interface {
	Ping(ctx context.Context) error
	LoadState(ctx context.Context, path string) (*model.RawLogState, error)
	ListJobs(ctx context.Context, f model.JobFilter) ([]model.IngestionJob, error)
	WatchStore
}

// Bus reports the state of the message bus connection.
type Bus interface {
	Connected() bool
}

type Deps struct {
	Processor Processor
	Store     Store
	Bus       Bus
	Parsers   []string
	Backend   string
	APIToken  string
	Logger    *slog.Logger
}

type Server struct {
	router *chi.Mux
	port   int
	deps   Deps
	srv    *http.Server
}

func NewServer(port int, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		deps:   deps,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Get("/health", s.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(deps.APIToken))
		r.Get("/scribe/status", s.status)
		r.Post("/ingest", s.ingest)
		r.Get("/ingestion/jobs", s.listJobs)
		r.Get("/raw-logs/state", s.rawLogState)
		r.Route("/watch/configs", s.watchRoutes)
	})

	return s
}

// Start blocks until the server fails or is shut down. Shutdown is not an
// error.
func (s *Server) Start() error {
	slog.Info("API server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// BearerAuthMiddleware rejects requests without the configured token. An
// empty token disables the check.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(provided)), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="scribe"`)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	database := "ok"
	if s.deps.Store == nil {
		database = "unconfigured"
	} else if err := s.deps.Store.Ping(r.Context()); err != nil {
		database = "unreachable"
	}
	nats := "disabled"
	if s.deps.Bus != nil {
		nats = "disconnected"
		if s.deps.Bus.Connected() {
			nats = "connected"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":    "scribe",
		"status":   "running",
		"backend":  s.deps.Backend,
		"database": database,
		"nats":     nats,
		"parsers":  s.deps.Parsers,
	})
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	var req hermes.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.FilePath == "" {
		writeError(w, http.StatusBadRequest, "file_path is required")
		return
	}
	if req.SourceType == "" {
		req.SourceType = ingest.SourceAPI
	}

	out := s.deps.Processor.Process(r.Context(), req.FilePath, s.deps.Processor.RequestOptions(req))
	code := http.StatusOK
	if out.Status == ingest.StatusFailed {
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, out)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.JobFilter{
		Status:     q.Get("status"),
		SourceType: q.Get("source_type"),
		FilePath:   q.Get("file_path"),
	}
	if v := q.Get("source_config_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid source_config_id")
			return
		}
		f.SourceConfigID = &id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}

	jobs, err := s.deps.Store.ListJobs(r.Context(), f)
	if err != nil {
		s.deps.Logger.Error("failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "list jobs failed")
		return
	}
	if jobs == nil {
		jobs = []model.IngestionJob{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

func (s *Server) rawLogState(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	st, err := s.deps.Store.LoadState(r.Context(), abs)
	if err != nil {
		s.deps.Logger.Error("failed to load raw log state", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "load state failed")
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "no state for path")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
