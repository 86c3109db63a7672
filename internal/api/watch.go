package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

// WatchStore persists the directories the poller scans.
type WatchStore interface {
	CreateWatchConfig(ctx context.Context, c model.WatchConfig) (model.WatchConfig, error)
	GetWatchConfig(ctx context.Context, id uuid.UUID) (*model.WatchConfig, error)
	ListWatchConfigs(ctx context.Context, activeOnly bool) ([]model.WatchConfig, error)
	SetWatchConfigActive(ctx context.Context, id uuid.UUID, active bool) (*model.WatchConfig, error)
	DeleteWatchConfig(ctx context.Context, id uuid.UUID) error
}

type createWatchConfigRequest struct {
	Directory         string `json:"directory"`
	ProjectName       string `json:"project_name"`
	DeveloperUsername string `json:"developer_username"`
	EnableIncremental *bool  `json:"enable_incremental"`
}

func (s *Server) watchRoutes(r chi.Router) {
	r.Get("/", s.listWatchConfigs)
	r.Post("/", s.createWatchConfig)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", s.getWatchConfig)
		r.Delete("/", s.deleteWatchConfig)
		r.Post("/start", s.setWatchConfigActive(true))
		r.Post("/stop", s.setWatchConfigActive(false))
	})
}

func (s *Server) listWatchConfigs(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	configs, err := s.deps.Store.ListWatchConfigs(r.Context(), activeOnly)
	if err != nil {
		s.deps.Logger.Error("failed to list watch configs", "error", err)
		writeError(w, http.StatusInternalServerError, "list watch configs failed")
		return
	}
	if configs == nil {
		configs = []model.WatchConfig{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"configs": configs, "count": len(configs)})
}

func (s *Server) createWatchConfig(w http.ResponseWriter, r *http.Request) {
	var req createWatchConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	dir := strings.TrimSpace(req.Directory)
	if dir == "" {
		writeError(w, http.StatusBadRequest, "directory is required")
		return
	}
	// "~/" paths are kept as given and expanded by the poller.
	if !strings.HasPrefix(dir, "~/") {
		abs, err := filepath.Abs(dir)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid directory")
			return
		}
		dir = abs
	}

	cfg := model.WatchConfig{
		Directory:         dir,
		ProjectName:       req.ProjectName,
		DeveloperUsername: req.DeveloperUsername,
		EnableIncremental: true,
	}
	if req.EnableIncremental != nil {
		cfg.EnableIncremental = *req.EnableIncremental
	}

	created, err := s.deps.Store.CreateWatchConfig(r.Context(), cfg)
	if errors.Is(err, model.ErrWatchConfigExists) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.deps.Logger.Error("failed to create watch config", "directory", dir, "error", err)
		writeError(w, http.StatusInternalServerError, "create watch config failed")
		return
	}
	s.deps.Logger.Info("watch config created", "id", created.ID, "directory", created.Directory)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getWatchConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := watchConfigID(w, r)
	if !ok {
		return
	}
	cfg, err := s.deps.Store.GetWatchConfig(r.Context(), id)
	if err != nil {
		s.deps.Logger.Error("failed to load watch config", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "load watch config failed")
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, model.ErrWatchConfigNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) deleteWatchConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := watchConfigID(w, r)
	if !ok {
		return
	}
	err := s.deps.Store.DeleteWatchConfig(r.Context(), id)
	switch {
	case errors.Is(err, model.ErrWatchConfigNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrWatchConfigActive):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.deps.Logger.Error("failed to delete watch config", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete watch config failed")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) setWatchConfigActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := watchConfigID(w, r)
		if !ok {
			return
		}
		cfg, err := s.deps.Store.SetWatchConfigActive(r.Context(), id, active)
		if err != nil {
			s.deps.Logger.Error("failed to update watch config", "id", id, "active", active, "error", err)
			writeError(w, http.StatusInternalServerError, "update watch config failed")
			return
		}
		if cfg == nil {
			writeError(w, http.StatusNotFound, model.ErrWatchConfigNotFound.Error())
			return
		}
		s.deps.Logger.Info("watch config updated", "id", id, "active", active)
		writeJSON(w, http.StatusOK, cfg)
	}
}

func watchConfigID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid watch config id")
		return uuid.Nil, false
	}
	return id, true
}
