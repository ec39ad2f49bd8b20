package vehicles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
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
		log.Warn("vehicle create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("vehicle create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	vehicle, err := h.service.Create(ctx, tenantID, req, middleware.IsPlatformAdmin(r.Context()))
	if err != nil {
		var entErr *EntitlementError
		if errors.As(err, &entErr) {
			log.Info("vehicle create: denied", slog.String("tenant_id", tenantID), slog.String("reason", entErr.Decision.Reason))
			transport.WriteJSON(w, http.StatusForbidden, entErr.Decision)
			return
		}
		log.Error("vehicle create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("vehicle create: ok",
		slog.String("vehicle_id", vehicle.ID),
		slog.String("slug", vehicle.Slug),
	)
	transport.WriteJSON(w, http.StatusCreated, vehicle)
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
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		Make:   strings.TrimSpace(r.URL.Query().Get("make")),
	}
	if raw := r.URL.Query().Get("minYear"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.MinYear = v
		}
	}
	if raw := r.URL.Query().Get("maxYear"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.MaxYear = v
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, tenantID, filter, limit, offset)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
			return
		}
		log.Error("vehicle list: database error", slog.String("error", err.Error()))
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

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if tenantID == "" || id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant or id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	vehicle, err := h.service.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("vehicle get: not found", slog.String("vehicle_id", id))
			transport.WriteError(w, http.StatusNotFound, "vehicle not found", nil)
			return
		}
		log.Error("vehicle get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, vehicle)
}

// PublicBySlug serves the public vehicle detail page for a dealership site.
func (h *Handler) PublicBySlug(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := strings.TrimSpace(chi.URLParam(r, "tenantId"))
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if tenantID == "" || slug == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant or slug", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	vehicle, err := h.service.GetBySlug(ctx, tenantID, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "vehicle not found", nil)
			return
		}
		log.Error("vehicle get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, vehicle)
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
		log.Warn("vehicle status: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	vehicle, err := h.service.UpdateStatus(ctx, tenantID, id, req.Status)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"status": "oneof"})
			return
		}
		if errors.Is(err, ErrNotFound) {
			log.Warn("vehicle status: not found", slog.String("vehicle_id", id))
			transport.WriteError(w, http.StatusNotFound, "vehicle not found", nil)
			return
		}
		log.Error("vehicle status: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("vehicle status: ok", slog.String("vehicle_id", id), slog.String("status", vehicle.Status))
	transport.WriteJSON(w, http.StatusOK, vehicle)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if tenantID == "" || id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant or id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, tenantID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("vehicle delete: not found", slog.String("vehicle_id", id))
			transport.WriteError(w, http.StatusNotFound, "vehicle not found", nil)
			return
		}
		log.Error("vehicle delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("vehicle delete: ok", slog.String("vehicle_id", id))
	transport.WriteJSON(w, http.StatusOK, transport.MessageResponse{Success: true, Message: "vehicle deleted", ID: id})
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
