package leads

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"autodealers-backend/internal/httpx"
	"autodealers-backend/internal/membership"
	"autodealers-backend/internal/middleware"
	"autodealers-backend/internal/transport"
	"autodealers-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

// Classifier produces an AI priority/sentiment read of a fresh lead.
type Classifier interface {
	Classify(ctx context.Context, lead Lead) (AIClassification, error)
}

// Rescorer recomputes and persists a lead's automatic score.
type Rescorer interface {
	Recalculate(ctx context.Context, tenantID, leadID, reason, updatedBy string) (Score, error)
}

type Notifier interface {
	NotifyNewLead(ctx context.Context, lead Lead) error
	NotifyHotLead(ctx context.Context, lead Lead, score int) error
}

type EntitlementChecker interface {
	CanExecute(ctx context.Context, tenantID string, action membership.Action) (membership.Decision, error)
}

// hotLeadThreshold triggers the hot-lead alert email after rescoring.
const hotLeadThreshold = 70

type Handler struct {
	service      *Service
	scorer       Rescorer
	classifier   Classifier
	notifier     Notifier
	entitlements EntitlementChecker
	val          *validation.Validator
	log          *slog.Logger
}

func NewHandler(service *Service, scorer Rescorer, classifier Classifier, notifier Notifier, entitlements EntitlementChecker, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service:      service,
		scorer:       scorer,
		classifier:   classifier,
		notifier:     notifier,
		entitlements: entitlements,
		val:          val,
		log:          log,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r)
	h.create(w, r, tenantID)
}

// PublicCreate captures leads from the public dealership websites; the tenant
// comes from the URL, not from auth.
func (h *Handler) PublicCreate(w http.ResponseWriter, r *http.Request) {
	tenantID := strings.TrimSpace(chi.URLParam(r, "tenantId"))
	h.create(w, r, tenantID)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, tenantID string) {
	log := h.logWithRequest(r)
	if tenantID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant", nil)
		return
	}

	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("lead create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("lead create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	lead, err := h.service.Create(ctx, tenantID, req)
	if err != nil {
		if errors.Is(err, ErrInvalidSource) {
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"source": "oneof"})
			return
		}
		log.Error("lead create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	go h.postCreate(lead)

	log.Info("lead create: ok", slog.String("lead_id", lead.ID), slog.String("source", lead.Source))
	transport.WriteJSON(w, http.StatusCreated, transport.MessageResponse{
		Success: true,
		Message: "lead created",
		ID:      lead.ID,
	})
}

// postCreate runs the enrichment pipeline off the request path: optional AI
// classification (plan-gated), initial scoring, then notifications. Each step
// degrades independently.
func (h *Handler) postCreate(lead Lead) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if h.classifier != nil && h.aiAllowed(ctx, lead.TenantID) {
		ai, err := h.classifier.Classify(ctx, lead)
		if err != nil {
			h.log.Warn("lead classify: failed",
				slog.String("lead_id", lead.ID),
				slog.String("error", err.Error()),
			)
		} else if err := h.service.SetClassification(ctx, lead.TenantID, lead.ID, ai); err != nil {
			h.log.Warn("lead classify: persist failed",
				slog.String("lead_id", lead.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	var combined int
	if h.scorer != nil {
		score, err := h.scorer.Recalculate(ctx, lead.TenantID, lead.ID, "lead created", "system")
		if err != nil {
			h.log.Warn("lead score: failed",
				slog.String("lead_id", lead.ID),
				slog.String("error", err.Error()),
			)
		} else {
			combined = score.Combined
		}
	}

	if h.notifier != nil {
		if err := h.notifier.NotifyNewLead(ctx, lead); err != nil {
			h.log.Warn("lead notify: failed",
				slog.String("lead_id", lead.ID),
				slog.String("error", err.Error()),
			)
		}
		if combined >= hotLeadThreshold {
			if err := h.notifier.NotifyHotLead(ctx, lead, combined); err != nil {
				h.log.Warn("hot lead notify: failed",
					slog.String("lead_id", lead.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (h *Handler) aiAllowed(ctx context.Context, tenantID string) bool {
	if h.entitlements == nil {
		return false
	}
	decision, err := h.entitlements.CanExecute(ctx, tenantID, membership.ActionAIScoring)
	if err != nil {
		h.log.Warn("ai entitlement check failed", slog.String("tenant_id", tenantID), slog.String("error", err.Error()))
		return false
	}
	return decision.Allowed
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
		Status:   strings.TrimSpace(r.URL.Query().Get("status")),
		Source:   strings.TrimSpace(r.URL.Query().Get("source")),
		Assigned: strings.TrimSpace(r.URL.Query().Get("assignedTo")),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, tenantID, filter, limit, offset)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
			return
		}
		if errors.Is(err, ErrInvalidSource) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"source": "oneof"})
			return
		}
		log.Error("lead list: database error", slog.String("error", err.Error()))
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

	lead, err := h.service.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("lead get: not found", slog.String("lead_id", id))
			transport.WriteError(w, http.StatusNotFound, "lead not found", nil)
			return
		}
		log.Error("lead get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, lead)
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
		log.Warn("lead status: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lead, err := h.service.UpdateStatus(ctx, tenantID, id, req.Status)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"status": "oneof"})
			return
		}
		if errors.Is(err, ErrNotFound) {
			log.Warn("lead status: not found", slog.String("lead_id", id))
			transport.WriteError(w, http.StatusNotFound, "lead not found", nil)
			return
		}
		log.Error("lead status: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	// Status changes feed scoring conditions (appointmentScheduled and
	// status rules), so rescore off the request path. r is dead once the
	// handler returns; capture what the goroutine needs first.
	if h.scorer != nil {
		by := updatedByRole(r)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if _, err := h.scorer.Recalculate(ctx, lead.TenantID, lead.ID, "status changed to "+lead.Status, by); err != nil {
				h.log.Warn("lead rescore: failed", slog.String("lead_id", lead.ID), slog.String("error", err.Error()))
			}
		}()
	}

	log.Info("lead status: ok", slog.String("lead_id", id), slog.String("status", lead.Status))
	transport.WriteJSON(w, http.StatusOK, lead)
}

func (h *Handler) AddInteraction(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	tenantID := middleware.TenantID(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if tenantID == "" || id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing tenant or id", nil)
		return
	}

	var req InteractionRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("lead interaction: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lead, err := h.service.AddInteraction(ctx, tenantID, id, req, updatedByRole(r))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("lead interaction: not found", slog.String("lead_id", id))
			transport.WriteError(w, http.StatusNotFound, "lead not found", nil)
			return
		}
		log.Error("lead interaction: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if h.scorer != nil {
		by := updatedByRole(r)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if _, err := h.scorer.Recalculate(ctx, lead.TenantID, lead.ID, "interaction added", by); err != nil {
				h.log.Warn("lead rescore: failed", slog.String("lead_id", lead.ID), slog.String("error", err.Error()))
			}
		}()
	}

	log.Info("lead interaction: ok", slog.String("lead_id", id), slog.Int("interactions", len(lead.Interactions)))
	transport.WriteJSON(w, http.StatusOK, lead)
}

func updatedByRole(r *http.Request) string {
	if c := middleware.ClaimsFromContext(r.Context()); c != nil && c.Role != "" {
		return c.Role
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
