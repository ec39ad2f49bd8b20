package membership

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"autodealers-backend/internal/middleware"
	"autodealers-backend/internal/transport"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	checker *Checker
	repo    Repository
	log     *slog.Logger
}

func NewHandler(checker *Checker, repo Repository, log *slog.Logger) *Handler {
	return &Handler{
		checker: checker,
		repo:    repo,
		log:     log,
	}
}

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	plans, err := h.repo.ListPlans(ctx)
	if err != nil {
		log.Error("plans list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": plans})
}

func (h *Handler) GetMembership(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	if tenantID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	m, plan, err := h.checker.Resolve(ctx, tenantID)
	if err != nil {
		log.Error("membership get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"membership": m,
		"plan":       plan,
	})
}

// CheckAction exposes the entitlement decision to dashboards so they can
// disable buttons before the user hits the gated endpoint.
func (h *Handler) CheckAction(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	if tenantID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant", nil)
		return
	}

	raw := strings.TrimSpace(chi.URLParam(r, "action"))
	action, ok := ParseAction(raw)
	if !ok {
		transport.WriteError(w, http.StatusBadRequest, "unknown action", map[string]string{"action": "oneof"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if middleware.IsPlatformAdmin(r.Context()) {
		transport.WriteJSON(w, http.StatusOK, allow())
		return
	}

	decision, err := h.checker.CanExecute(ctx, tenantID, action)
	if err != nil {
		log.Error("entitlement check: error", slog.String("action", raw), slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusServiceUnavailable, "entitlement check unavailable", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, decision)
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
