package vehicles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"autodealers-backend/internal/membership"
	"autodealers-backend/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound      = errors.New("vehicle not found")
	ErrInvalidStatus = errors.New("invalid status")
)

// EntitlementError carries the structured inventory-quota denial to the
// handler.
type EntitlementError struct {
	Decision membership.Decision
}

func (e *EntitlementError) Error() string {
	if e.Decision.Reason != "" {
		return e.Decision.Reason
	}
	return "not entitled"
}

type EntitlementChecker interface {
	CanExecute(ctx context.Context, tenantID string, action membership.Action) (membership.Decision, error)
}

type Service struct {
	repo     Repository
	checker  EntitlementChecker
	location *time.Location
}

func NewService(repo Repository, checker EntitlementChecker, location *time.Location) *Service {
	return &Service{
		repo:     repo,
		checker:  checker,
		location: location,
	}
}

// Create admits a vehicle into the tenant's inventory after the plan quota
// check. bypassEntitlements is set for platform admins.
func (s *Service) Create(ctx context.Context, tenantID string, req CreateRequest, bypassEntitlements bool) (Vehicle, error) {
	if !bypassEntitlements {
		decision, err := s.checker.CanExecute(ctx, tenantID, membership.ActionAddVehicle)
		if err != nil {
			return Vehicle{}, err
		}
		if !decision.Allowed {
			return Vehicle{}, &EntitlementError{Decision: decision}
		}
	}

	now := time.Now().In(s.location)
	currency := req.Currency
	if currency == "" {
		currency = "DOP"
	}

	vehicle := Vehicle{
		ID:           primitive.NewObjectID().Hex(),
		TenantID:     tenantID,
		Make:         strings.TrimSpace(req.Make),
		Model:        strings.TrimSpace(req.Model),
		Year:         req.Year,
		Slug:         utils.Slugify(fmt.Sprintf("%s %s %d", req.Make, req.Model, req.Year)),
		PriceCents:   req.PriceCents,
		Currency:     currency,
		Mileage:      req.Mileage,
		Transmission: req.Transmission,
		Fuel:         req.Fuel,
		Status:       StatusAvailable,
		Photos:       req.Photos,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, vehicle); err != nil {
		return Vehicle{}, err
	}
	return vehicle, nil
}

func (s *Service) List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int64) ([]Vehicle, int64, error) {
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

func (s *Service) GetByID(ctx context.Context, tenantID, id string) (Vehicle, error) {
	vehicle, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Vehicle{}, ErrNotFound
		}
		return Vehicle{}, err
	}
	return vehicle, nil
}

func (s *Service) GetBySlug(ctx context.Context, tenantID, slug string) (Vehicle, error) {
	vehicle, err := s.repo.GetBySlug(ctx, tenantID, slug)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Vehicle{}, ErrNotFound
		}
		return Vehicle{}, err
	}
	return vehicle, nil
}

func (s *Service) UpdateStatus(ctx context.Context, tenantID, id, status string) (Vehicle, error) {
	if !IsValidStatus(status) {
		return Vehicle{}, ErrInvalidStatus
	}
	vehicle, err := s.repo.UpdateStatus(ctx, tenantID, id, status, time.Now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Vehicle{}, ErrNotFound
		}
		return Vehicle{}, err
	}
	return vehicle, nil
}

func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
