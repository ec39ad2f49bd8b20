package leads

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrInvalidSource   = errors.New("invalid source")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrNotFound        = errors.New("lead not found")
	ErrVersionConflict = errors.New("lead score version conflict")
)

type Service struct {
	repo     Repository
	location *time.Location
}

func NewService(repo Repository, location *time.Location) *Service {
	return &Service{
		repo:     repo,
		location: location,
	}
}

func (s *Service) Create(ctx context.Context, tenantID string, req CreateRequest) (Lead, error) {
	source := strings.ToLower(strings.TrimSpace(req.Source))
	if source == "" {
		source = SourceWeb
	}
	if !IsValidSource(source) {
		return Lead{}, ErrInvalidSource
	}

	now := time.Now().In(s.location)
	lead := Lead{
		ID:           primitive.NewObjectID().Hex(),
		TenantID:     tenantID,
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		Status:       StatusNew,
		Source:       source,
		VehicleID:    strings.TrimSpace(req.VehicleID),
		Interactions: []Interaction{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		lead.Interactions = append(lead.Interactions, Interaction{
			Type: "note",
			Note: note,
			At:   now,
		})
	}

	if err := s.repo.Create(ctx, lead); err != nil {
		return Lead{}, err
	}

	return lead, nil
}

func (s *Service) List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int64) ([]Lead, int64, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	filter.Source = strings.ToLower(strings.TrimSpace(filter.Source))

	if filter.Status != "" && !IsValidStatus(filter.Status) {
		return nil, 0, ErrInvalidStatus
	}
	if filter.Source != "" && !IsValidSource(filter.Source) {
		return nil, 0, ErrInvalidSource
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

func (s *Service) GetByID(ctx context.Context, tenantID, id string) (Lead, error) {
	lead, err := s.repo.GetByID(ctx, tenantID, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	return lead, nil
}

// UpdateStatus accepts any valid status as the next one. Lifecycle ordering
// is not enforced; sellers move leads backwards when a deal re-opens.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, id, status string) (Lead, error) {
	id = strings.TrimSpace(id)
	status = strings.ToLower(strings.TrimSpace(status))
	if !IsValidStatus(status) {
		return Lead{}, ErrInvalidStatus
	}

	updated, err := s.repo.UpdateStatus(ctx, tenantID, id, status, time.Now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	return updated, nil
}

func (s *Service) AddInteraction(ctx context.Context, tenantID, id string, req InteractionRequest, by string) (Lead, error) {
	interaction := Interaction{
		Type: strings.ToLower(strings.TrimSpace(req.Type)),
		Note: strings.TrimSpace(req.Note),
		By:   by,
		At:   time.Now().In(s.location),
	}

	updated, err := s.repo.AppendInteraction(ctx, tenantID, strings.TrimSpace(id), interaction)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	return updated, nil
}

func (s *Service) SetClassification(ctx context.Context, tenantID, id string, ai AIClassification) error {
	if err := s.repo.SetClassification(ctx, tenantID, strings.TrimSpace(id), ai); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
