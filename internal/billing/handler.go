package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"autodealers-backend/internal/httpx"
	"autodealers-backend/internal/middleware"
	"autodealers-backend/internal/transport"
	"autodealers-backend/internal/validation"
)

// maxWebhookBody bounds the Stripe payload read.
const maxWebhookBody = 1 << 16

type CheckoutRequest struct {
	Plan  string `json:"plan" validate:"required,oneof=starter pro dealer"`
	Email string `json:"email" validate:"omitempty,email"`
}

type PortalRequest struct {
	ReturnURL string `json:"returnUrl" validate:"omitempty,url"`
}

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

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	if tenantID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant", nil)
		return
	}

	var req CheckoutRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("checkout: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	resp, err := h.service.CreateCheckoutSession(ctx, tenantID, req.Plan, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotConfigured):
			transport.WriteError(w, http.StatusServiceUnavailable, "billing unavailable", nil)
		case errors.Is(err, ErrUnknownPlan), errors.Is(err, ErrFreePlan):
			transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		default:
			log.Error("checkout: failed", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadGateway, "billing provider error", nil)
		}
		return
	}

	transport.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Portal(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	if tenantID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant", nil)
		return
	}

	var req PortalRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("portal: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = h.service.cfg.SuccessURL
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	resp, err := h.service.CreatePortalSession(ctx, tenantID, returnURL)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotConfigured):
			transport.WriteError(w, http.StatusServiceUnavailable, "billing unavailable", nil)
		case errors.Is(err, ErrNoSubscriber):
			transport.WriteError(w, http.StatusNotFound, "no billing account for tenant", nil)
		default:
			log.Error("portal: failed", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadGateway, "billing provider error", nil)
		}
		return
	}

	transport.WriteJSON(w, http.StatusOK, resp)
}

// Webhook is mounted outside tenant auth; Stripe authenticates with the
// signature header.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, "unreadable payload", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := h.service.HandleWebhook(ctx, payload, r.Header.Get("Stripe-Signature")); err != nil {
		log.Warn("stripe webhook rejected", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "webhook rejected", nil)
		return
	}

	w.WriteHeader(http.StatusOK)
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
