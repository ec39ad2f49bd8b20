package scoring

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"autodealers-backend/internal/httpx"
	"autodealers-backend/internal/leads"
	"autodealers-backend/internal/middleware"
	"autodealers-backend/internal/transport"
	"autodealers-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		val:     val,
		log:     log,
	}
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	if tenantID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cfg, err := h.service.Config(ctx, tenantID)
	if err != nil {
		log.Error("scoring config get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, cfg)
}

func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	if tenantID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant", nil)
		return
	}

	var req ConfigUpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("scoring config update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("scoring config update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cfg, err := h.service.SaveConfig(ctx, tenantID, req)
	if err != nil {
		if errors.Is(err, ErrInvalidConfig) {
			log.Warn("scoring config update: rejected", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		log.Error("scoring config update: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("scoring config update: ok", slog.String("tenant_id", tenantID), slog.Int("rules", len(cfg.Rules)))
	transport.WriteJSON(w, http.StatusOK, cfg)
}

func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	leadID := strings.TrimSpace(chi.URLParam(r, "id"))
	if tenantID == "" || leadID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant or lead id", nil)
		return
	}

	var req RecalculateRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r.Body, &req); err != nil {
			log.Warn("score recalculate: invalid json")
			transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	score, err := h.service.Recalculate(ctx, tenantID, leadID, req.Reason, updatedBy(r))
	if err != nil {
		h.writeScoreError(w, log, "score recalculate", leadID, err)
		return
	}

	log.Info("score recalculate: ok",
		slog.String("lead_id", leadID),
		slog.Int("automatic", score.Automatic),
		slog.Int("combined", score.Combined),
	)
	transport.WriteJSON(w, http.StatusOK, score)
}

func (h *Handler) SetManualScore(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	leadID := strings.TrimSpace(chi.URLParam(r, "id"))
	if tenantID == "" || leadID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant or lead id", nil)
		return
	}

	var req ManualScoreRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("manual score: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("manual score: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	score, err := h.service.SetManualScore(ctx, tenantID, leadID, req.Score, req.Reason, updatedBy(r))
	if err != nil {
		if errors.Is(err, ErrManualOverrideDisabled) {
			transport.WriteError(w, http.StatusForbidden, "manual override disabled for this tenant", nil)
			return
		}
		if errors.Is(err, ErrScoreOutOfRange) {
			transport.WriteError(w, http.StatusBadRequest, "score out of range", map[string]string{"score": "range"})
			return
		}
		h.writeScoreError(w, log, "manual score", leadID, err)
		return
	}

	log.Info("manual score: ok",
		slog.String("lead_id", leadID),
		slog.Int("manual", req.Score),
		slog.Int("combined", score.Combined),
	)
	transport.WriteJSON(w, http.StatusOK, score)
}

func (h *Handler) writeScoreError(w http.ResponseWriter, log *slog.Logger, op, leadID string, err error) {
	switch {
	case errors.Is(err, leads.ErrNotFound):
		log.Warn(op+": lead not found", slog.String("lead_id", leadID))
		transport.WriteError(w, http.StatusNotFound, "lead not found", nil)
	case errors.Is(err, leads.ErrVersionConflict):
		log.Warn(op+": concurrent update", slog.String("lead_id", leadID))
		transport.WriteError(w, http.StatusConflict, "lead was updated concurrently, retry", nil)
	default:
		log.Error(op+": database error", slog.String("lead_id", leadID), slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
}

func updatedBy(r *http.Request) string {
	if c := middleware.ClaimsFromContext(r.Context()); c != nil {
		if c.Role != "" {
			return c.Role
		}
	}
	return "system"
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
