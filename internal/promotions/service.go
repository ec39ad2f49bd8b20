package promotions

import (
	"context"
	"errors"
	"strings"
	"time"

	"autodealers-backend/internal/membership"
	"autodealers-backend/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound      = errors.New("promotion not found")
	ErrInvalidStatus = errors.New("invalid status")
)

// EntitlementError carries the structured denial back to the handler so the
// dashboard can show limits, not just a message.
type EntitlementError struct {
	Decision membership.Decision
}

func (e *EntitlementError) Error() string {
	if e.Decision.Reason != "" {
		return e.Decision.Reason
	}
	return "not entitled"
}

// SlotsExhaustedError distinguishes "the platform is full" from "your plan
// forbids this".
type SlotsExhaustedError struct{}

func (e *SlotsExhaustedError) Error() string { return "no landing promotion slots available" }

func (e *SlotsExhaustedError) Decision() membership.Decision {
	zero := int64(0)
	return membership.Decision{
		Allowed:        false,
		Reason:         e.Error(),
		LimitReached:   true,
		AvailableSlots: &zero,
	}
}

type EntitlementChecker interface {
	CanExecute(ctx context.Context, tenantID string, action membership.Action) (membership.Decision, error)
}

type Service struct {
	repo     Repository
	slots    SlotCounter
	checker  EntitlementChecker
	location *time.Location
}

func NewService(repo Repository, slots SlotCounter, checker EntitlementChecker, location *time.Location) *Service {
	return &Service{
		repo:     repo,
		slots:    slots,
		checker:  checker,
		location: location,
	}
}

// Create admits a new promotion. Entitlement gates run first (plan quota,
// then the free-promotion feature flag), the global landing slot is acquired
// last so a losing concurrent request gets a capacity denial instead of
// silent over-admission. bypassEntitlements is set for platform admins.
func (s *Service) Create(ctx context.Context, tenantID string, req CreateRequest, bypassEntitlements bool) (Promotion, error) {
	if !bypassEntitlements {
		decision, err := s.checker.CanExecute(ctx, tenantID, membership.ActionCreatePromotion)
		if err != nil {
			return Promotion{}, err
		}
		if !decision.Allowed {
			return Promotion{}, &EntitlementError{Decision: decision}
		}

		if req.Kind == KindFree {
			decision, err := s.checker.CanExecute(ctx, tenantID, membership.ActionPublishFreePromotion)
			if err != nil {
				return Promotion{}, err
			}
			if !decision.Allowed {
				return Promotion{}, &EntitlementError{Decision: decision}
			}
		}
	}

	now := time.Now().In(s.location)
	duration := req.DurationDays
	if duration <= 0 {
		duration = 30
	}

	promo := Promotion{
		ID:          primitive.NewObjectID().Hex(),
		TenantID:    tenantID,
		Title:       strings.TrimSpace(req.Title),
		Slug:        utils.Slugify(req.Title),
		Description: strings.TrimSpace(req.Description),
		VehicleID:   strings.TrimSpace(req.VehicleID),
		Kind:        req.Kind,
		Placement:   req.Placement,
		Status:      StatusActive,
		StartsAt:    now,
		EndsAt:      now.AddDate(0, 0, duration),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	acquired := false
	if promo.Placement == PlacementLanding {
		ok, err := s.slots.Acquire(ctx)
		if err != nil {
			return Promotion{}, err
		}
		if !ok {
			return Promotion{}, &SlotsExhaustedError{}
		}
		acquired = true
	}

	if err := s.repo.Create(ctx, promo); err != nil {
		if acquired {
			_ = s.slots.Release(ctx)
		}
		return Promotion{}, err
	}

	return promo, nil
}

func (s *Service) List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int64) ([]Promotion, int64, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	if filter.Status != "" && !IsValidStatus(filter.Status) {
		return nil, 0, ErrInvalidStatus
	}

	items, err := s.repo.List(ctx, tenantID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) GetByID(ctx context.Context, tenantID, id string) (Promotion, error) {
	promo, err := s.repo.GetByID(ctx, tenantID, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Promotion{}, ErrNotFound
		}
		return Promotion{}, err
	}
	return promo, nil
}

// UpdateStatus moves a promotion between active/paused/expired, releasing or
// re-acquiring its landing slot when occupancy changes.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, id, status string) (Promotion, error) {
	id = strings.TrimSpace(id)
	status = strings.ToLower(strings.TrimSpace(status))
	if !IsValidStatus(status) {
		return Promotion{}, ErrInvalidStatus
	}

	current, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return Promotion{}, err
	}
	if current.Status == status {
		return current, nil
	}

	occupiesSlot := current.Placement == PlacementLanding && current.Status == StatusActive
	wantsSlot := current.Placement == PlacementLanding && status == StatusActive

	if wantsSlot && !occupiesSlot {
		ok, err := s.slots.Acquire(ctx)
		if err != nil {
			return Promotion{}, err
		}
		if !ok {
			return Promotion{}, &SlotsExhaustedError{}
		}
	}

	updated, err := s.repo.UpdateStatus(ctx, tenantID, id, status, time.Now().In(s.location))
	if err != nil {
		if wantsSlot && !occupiesSlot {
			_ = s.slots.Release(ctx)
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Promotion{}, ErrNotFound
		}
		return Promotion{}, err
	}

	if occupiesSlot && !wantsSlot {
		_ = s.slots.Release(ctx)
	}

	return updated, nil
}

func (s *Service) ListLanding(ctx context.Context, limit int64) ([]Promotion, error) {
	return s.repo.ListActiveLanding(ctx, limit)
}
