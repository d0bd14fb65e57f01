package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/medleyfm/medley/internal/library"
	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/providers"
	"github.com/medleyfm/medley/internal/repositories"
	"github.com/medleyfm/medley/internal/selector"
	"github.com/medleyfm/medley/internal/shared"
	"github.com/medleyfm/medley/internal/tasks"
)

// APIHandler serves the JSON API over the canonical library.
type APIHandler struct {
	store     *library.Store
	scheduler *tasks.Scheduler
	registry  *providers.Registry
	selector  *selector.Selector              // nil disables /api/play
	jobRepo   *repositories.SyncJobRepository // nil disables job history in status
	logger    *log.Logger
}

// NewAPIHandler creates the API handler. sel and jobRepo may be nil.
func NewAPIHandler(store *library.Store, scheduler *tasks.Scheduler, registry *providers.Registry,
	sel *selector.Selector, jobRepo *repositories.SyncJobRepository, logger *log.Logger) *APIHandler {
	return &APIHandler{
		store:     store,
		scheduler: scheduler,
		registry:  registry,
		selector:  sel,
		jobRepo:   jobRepo,
		logger:    logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *APIHandler) Routes() []string {
	return []string{
		"/health",
		"/api/library/",
		"/api/status",
		"/api/stats",
		"/api/sync",
		"/api/play",
	}
}

// ServeHTTP dispatches to the endpoint handlers.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/health":
		h.handleHealth(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/library/"):
		h.handleLibrary(w, r)
	case r.URL.Path == "/api/status":
		h.handleStatus(w, r)
	case r.URL.Path == "/api/stats":
		h.handleStats(w, r)
	case r.URL.Path == "/api/sync":
		h.handleSync(w, r)
	case r.URL.Path == "/api/play":
		h.handlePlay(w, r)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": len(h.registry.All()),
	})
}

// handleLibrary lists canonical entities of one kind, e.g.
// GET /api/library/tracks?favorites=true.
func (h *APIHandler) handleLibrary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	kind := models.Kind(strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/library/"), "s"))
	if !kind.Valid() {
		writeError(w, http.StatusNotFound, "unknown library kind")
		return
	}

	favoritesOnly := r.URL.Query().Get("favorites") == "true"
	entities := h.store.AllEntitiesOfKind(kind, favoritesOnly)
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":  kind,
		"count": len(entities),
		"items": entities,
	})
}

func (h *APIHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := map[string]any{
		"running": h.scheduler.Running(),
		"time":    time.Now().UTC(),
	}
	if h.jobRepo != nil {
		latest, err := h.jobRepo.LatestByProvider()
		if err != nil {
			h.logger.Error("failed to load job history", "error", err)
		} else {
			status["providers"] = latest
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *APIHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.store.Stats())
}

// handleSync triggers a manual pass for one provider (?provider=spotify) or
// all of them. Passes run in the background; a provider with a pass already
// in flight answers 409.
func (h *APIHandler) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	providerID := r.URL.Query().Get("provider")
	if providerID == "" {
		// Detached from the request context so the pass outlives the response.
		go h.scheduler.SyncAll(context.Background(), models.TriggerManual)
		writeJSON(w, http.StatusAccepted, map[string]any{"triggered": "all"})
		return
	}

	if _, err := h.registry.Get(providerID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	for _, running := range h.scheduler.Running() {
		if running == providerID {
			writeError(w, http.StatusConflict, shared.ErrSyncInProgress.Error())
			return
		}
	}

	go func() {
		if _, err := h.scheduler.Sync(context.Background(), providerID, models.TriggerManual); err != nil &&
			!errors.Is(err, shared.ErrSyncInProgress) {
			h.logger.Error("manual sync failed", "provider", providerID, "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]any{"triggered": providerID})
}

// handlePlay resolves the best playable stream for a track,
// e.g. GET /api/play?track={id}.
func (h *APIHandler) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.selector == nil {
		writeError(w, http.StatusNotFound, "playback not configured")
		return
	}

	trackID := r.URL.Query().Get("track")
	if trackID == "" {
		writeError(w, http.StatusBadRequest, "track query parameter required")
		return
	}

	entity, err := h.store.GetEntity(trackID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if entity.Kind != models.KindTrack {
		writeError(w, http.StatusBadRequest, "entity is not a track")
		return
	}

	selection, err := h.selector.Select(r.Context(), &entity)
	if err != nil {
		if errors.Is(err, shared.ErrNoPlayableSource) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"track":  entity.ID,
		"source": selection.Record,
		"stream": selection.Handle,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
