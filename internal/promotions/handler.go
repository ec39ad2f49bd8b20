package promotions

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"autodealers-backend/internal/httpx"
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

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	if tenantID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant", nil)
		return
	}

	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("promotion create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("promotion create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	promo, err := h.service.Create(ctx, tenantID, req, middleware.IsPlatformAdmin(r.Context()))
	if err != nil {
		var entErr *EntitlementError
		if errors.As(err, &entErr) {
			log.Info("promotion create: denied", slog.String("tenant_id", tenantID), slog.String("reason", entErr.Decision.Reason))
			transport.WriteJSON(w, http.StatusForbidden, entErr.Decision)
			return
		}
		var slotsErr *SlotsExhaustedError
		if errors.As(err, &slotsErr) {
			log.Info("promotion create: landing slots exhausted", slog.String("tenant_id", tenantID))
			transport.WriteJSON(w, http.StatusConflict, slotsErr.Decision())
			return
		}
		log.Error("promotion create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("promotion create: ok",
		slog.String("promotion_id", promo.ID),
		slog.String("kind", promo.Kind),
		slog.String("placement", promo.Placement),
	)
	transport.WriteJSON(w, http.StatusCreated, promo)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	if tenantID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant", nil)
		return
	}

	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 20, 100)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	filter := ListFilter{
		Status:    strings.TrimSpace(r.URL.Query().Get("status")),
		Placement: strings.TrimSpace(r.URL.Query().Get("placement")),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, tenantID, filter, limit, offset)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
			return
		}
		log.Error("promotion list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if tenantID == "" || id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant or id", nil)
		return
	}

	var req StatusUpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("promotion status: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	promo, err := h.service.UpdateStatus(ctx, tenantID, id, req.Status)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "promotion not found", nil)
			return
		}
		var slotsErr *SlotsExhaustedError
		if errors.As(err, &slotsErr) {
			transport.WriteJSON(w, http.StatusConflict, slotsErr.Decision())
			return
		}
		log.Error("promotion status: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("promotion status: ok", slog.String("promotion_id", id), slog.String("status", promo.Status))
	transport.WriteJSON(w, http.StatusOK, promo)
}

// PublicLanding serves the public website's landing carousel.
func (h *Handler) PublicLanding(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.ListLanding(ctx, 24)
	if err != nil {
		log.Error("landing promotions: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
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
