// Package handlers implements the admin HTTP API: configuration CRUD,
// template dry runs, deny-log access, and runtime status.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/callguard/callguard/internal/entities"
	"github.com/callguard/callguard/internal/infrastructure/cache"
	"github.com/callguard/callguard/internal/interceptor"
	"github.com/callguard/callguard/internal/services"
	"github.com/callguard/callguard/internal/services/authorization"
)

// Handler holds HTTP handlers and dependencies.
type Handler struct {
	policy    services.PolicyServiceInterface
	snapshots *cache.SnapshotManager
	reports   *services.DenyReportService
	templates authorization.TemplateEvaluator
	chains    *authorization.ChainTracker
	hook      *interceptor.Hook
	logger    *slog.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	policy services.PolicyServiceInterface,
	snapshots *cache.SnapshotManager,
	reports *services.DenyReportService,
	templates authorization.TemplateEvaluator,
	chains *authorization.ChainTracker,
	hook *interceptor.Hook,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		policy:    policy,
		snapshots: snapshots,
		reports:   reports,
		templates: templates,
		chains:    chains,
		hook:      hook,
		logger:    logger,
	}
}

// NewRouter creates the admin API router. metricsHandler may be nil.
func NewRouter(h *Handler, rateLimiter *RateLimiter, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if rateLimiter != nil {
		r.Use(RateLimitMiddleware(rateLimiter))
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.HealthCheck)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/decisions/check", h.CheckCall)

		r.Get("/config", h.GetConfig)
		r.Put("/config", h.UpdateConfig)
		r.Post("/config/reload", h.ReloadConfig)

		r.Post("/templates/evaluate", h.EvaluateTemplate)

		r.Get("/denials", h.ListDenials)
		r.Delete("/denials", h.ClearDenials)

		r.Get("/users", h.ListUsers)
		r.Put("/users/{userID}", h.AssignUserRole)
		r.Get("/status", h.Status)
	})

	return r
}

// HealthCheck returns the health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "callguard",
	})
}

// GetConfig returns the active configuration.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshots.Current()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, "no configuration loaded")
		return
	}
	respondJSON(w, http.StatusOK, configToDTO(snap.Config))
}

// UpdateConfig validates, persists, and activates a full configuration.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var dto configDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	snap, err := h.policy.Update(r.Context(), dtoToConfig(&dto))
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "validation failed",
				"issues": verr.Issues,
			})
			return
		}
		h.logger.Error("config update failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to update configuration")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"config_version": snap.Version})
}

// ReloadConfig re-reads the configuration document from disk.
func (h *Handler) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	snap, err := h.policy.Reload(r.Context())
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "validation failed",
				"issues": verr.Issues,
			})
			return
		}
		h.logger.Error("config reload failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to reload configuration")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"config_version": snap.Version})
}

type checkCallRequest struct {
	UserID       string                 `json:"user_id"`
	Domain       string                 `json:"domain"`
	Service      string                 `json:"service"`
	EntityIDs    []string               `json:"entity_ids,omitempty"`
	CallID       string                 `json:"call_id,omitempty"`
	ParentCallID string                 `json:"parent_call_id,omitempty"`
	User         map[string]interface{} `json:"user,omitempty"`
	State        map[string]interface{} `json:"state,omitempty"`
	Call         map[string]interface{} `json:"call,omitempty"`
}

// CheckCall is the host-facing enforcement endpoint: the dispatch
// pipeline posts every pending service call here and aborts it when the
// response says so. Denials run the full reporting path.
func (h *Handler) CheckCall(w http.ResponseWriter, r *http.Request) {
	var req checkCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Domain == "" || req.Service == "" {
		respondError(w, http.StatusBadRequest, "domain and service are required")
		return
	}

	allowed, verdict := h.hook.BeforeCall(r.Context(), interceptor.Call{
		UserID:       req.UserID,
		Domain:       req.Domain,
		Service:      req.Service,
		EntityIDs:    req.EntityIDs,
		CallID:       req.CallID,
		ParentCallID: req.ParentCallID,
		Template: &authorization.TemplateContext{
			User:  req.User,
			State: req.State,
			Call:  req.Call,
		},
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"allowed": allowed,
		"reason":  string(verdict.Reason),
		"role":    verdict.Role,
	})
}

type evaluateTemplateRequest struct {
	Template string                 `json:"template"`
	User     map[string]interface{} `json:"user,omitempty"`
	State    map[string]interface{} `json:"state,omitempty"`
	Call     map[string]interface{} `json:"call,omitempty"`
}

// EvaluateTemplate dry-runs a role template against a caller-supplied
// context without touching any role or verdict.
func (h *Handler) EvaluateTemplate(w http.ResponseWriter, r *http.Request) {
	var req evaluateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Template == "" {
		respondError(w, http.StatusBadRequest, "template is required")
		return
	}

	result, err := h.templates.Evaluate(req.Template, &authorization.TemplateContext{
		User:  req.User,
		State: req.State,
		Call:  req.Call,
	})
	if err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"result": result})
}

// ListDenials returns recent denials, newest first. ?limit= caps the count.
func (h *Handler) ListDenials(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	denials, err := h.reports.RecentDenials(r.Context(), limit)
	if err != nil {
		h.logger.Error("deny log read failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to read deny log")
		return
	}

	out := make([]*denialDTO, 0, len(denials))
	for _, d := range denials {
		out = append(out, denialToDTO(d))
	}
	respondJSON(w, http.StatusOK, map[string]any{"denials": out})
}

// ClearDenials empties the deny log.
func (h *Handler) ClearDenials(w http.ResponseWriter, r *http.Request) {
	if err := h.reports.ClearDenials(r.Context()); err != nil {
		h.logger.Error("deny log clear failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to clear deny log")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers returns the user-to-role assignments of the active config.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshots.Current()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, "no configuration loaded")
		return
	}

	users := make(map[string]*userDTO, len(snap.Config.Users))
	for userID, assignment := range snap.Config.Users {
		users[userID] = &userDTO{Role: assignment.Role}
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}

// AssignUserRole updates a single user's role assignment. The sentinels
// "default" and "none" are accepted; an empty role removes the assignment.
func (h *Handler) AssignUserRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req userDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	snap := h.snapshots.Current()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, "no configuration loaded")
		return
	}

	cfg := snap.Config.Clone()
	if req.Role == "" {
		delete(cfg.Users, userID)
	} else {
		if cfg.Users == nil {
			cfg.Users = map[string]*entities.UserAssignment{}
		}
		cfg.Users[userID] = &entities.UserAssignment{Role: req.Role}
	}

	next, err := h.policy.Update(r.Context(), cfg)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "validation failed",
				"issues": verr.Issues,
			})
			return
		}
		h.logger.Error("role assignment failed", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "failed to update assignment")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"config_version": next.Version})
}

// Status reports the runtime state: active config version, the kill
// switch, tracked chains, and the most recent denial.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshots.Current()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, "no configuration loaded")
		return
	}

	status := map[string]any{
		"enabled":        snap.Settings().Enabled,
		"config_version": snap.Version,
		"loaded_at":      snap.LoadedAt.Format(time.RFC3339),
		"roles":          len(snap.Config.Roles),
		"users":          len(snap.Config.Users),
	}
	if h.chains != nil {
		status["active_chains"] = h.chains.Len()
	}
	if last := h.reports.LastDenial(); last != nil {
		status["last_denial"] = denialToDTO(last)
	}
	respondJSON(w, http.StatusOK, status)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
