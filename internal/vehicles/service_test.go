package vehicles

import (
	"context"
	"errors"
	"testing"
	"time"

	"autodealers-backend/internal/membership"

	"go.mongodb.org/mongo-driver/mongo"
)

type fakeRepo struct {
	vehicles map[string]Vehicle
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{vehicles: make(map[string]Vehicle)}
}

func (f *fakeRepo) Create(ctx context.Context, vehicle Vehicle) error {
	f.vehicles[vehicle.ID] = vehicle
	return nil
}

func (f *fakeRepo) List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int64) ([]Vehicle, error) {
	out := make([]Vehicle, 0)
	for _, v := range f.vehicles {
		if v.TenantID == tenantID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeRepo) Count(ctx context.Context, tenantID string, filter ListFilter) (int64, error) {
	items, _ := f.List(ctx, tenantID, filter, 0, 0)
	return int64(len(items)), nil
}

func (f *fakeRepo) GetByID(ctx context.Context, tenantID, id string) (Vehicle, error) {
	v, ok := f.vehicles[id]
	if !ok || v.TenantID != tenantID {
		return Vehicle{}, mongo.ErrNoDocuments
	}
	return v, nil
}

func (f *fakeRepo) GetBySlug(ctx context.Context, tenantID, slug string) (Vehicle, error) {
	for _, v := range f.vehicles {
		if v.TenantID == tenantID && v.Slug == slug {
			return v, nil
		}
	}
	return Vehicle{}, mongo.ErrNoDocuments
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, tenantID, id, status string, now time.Time) (Vehicle, error) {
	v, err := f.GetByID(ctx, tenantID, id)
	if err != nil {
		return Vehicle{}, err
	}
	v.Status = status
	v.UpdatedAt = now
	f.vehicles[id] = v
	return v, nil
}

func (f *fakeRepo) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := f.GetByID(ctx, tenantID, id); err != nil {
		return err
	}
	delete(f.vehicles, id)
	return nil
}

type fakeChecker struct {
	decision membership.Decision
	calls    int
}

func (f *fakeChecker) CanExecute(ctx context.Context, tenantID string, action membership.Action) (membership.Decision, error) {
	f.calls++
	return f.decision, nil
}

func TestCreateBuildsSlugAndDefaults(t *testing.T) {
	repo := newFakeRepo()
	checker := &fakeChecker{decision: membership.Decision{Allowed: true}}
	svc := NewService(repo, checker, time.UTC)

	vehicle, err := svc.Create(context.Background(), "t1", CreateRequest{
		Make:       "Toyota",
		Model:      "RAV4",
		Year:       2022,
		PriceCents: 185000000,
	}, false)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if vehicle.Slug != "toyota-rav4-2022" {
		t.Fatalf("unexpected slug %q", vehicle.Slug)
	}
	if vehicle.Currency != "DOP" {
		t.Fatalf("expected default currency DOP, got %q", vehicle.Currency)
	}
	if vehicle.Status != StatusAvailable {
		t.Fatalf("expected status available, got %q", vehicle.Status)
	}
	if checker.calls != 1 {
		t.Fatalf("expected one entitlement check, got %d", checker.calls)
	}

	found, err := svc.GetBySlug(context.Background(), "t1", "toyota-rav4-2022")
	if err != nil {
		t.Fatalf("GetBySlug error: %v", err)
	}
	if found.ID != vehicle.ID {
		t.Fatalf("slug lookup returned %s, want %s", found.ID, vehicle.ID)
	}
}

func TestCreateDeniedByQuota(t *testing.T) {
	repo := newFakeRepo()
	limit := int64(10)
	checker := &fakeChecker{decision: membership.Decision{
		Allowed:      false,
		Reason:       "vehicle limit reached",
		Limit:        &limit,
		LimitReached: true,
	}}
	svc := NewService(repo, checker, time.UTC)

	_, err := svc.Create(context.Background(), "t1", CreateRequest{Make: "Kia", Model: "Rio", Year: 2021}, false)
	var entErr *EntitlementError
	if !errors.As(err, &entErr) {
		t.Fatalf("expected EntitlementError, got %v", err)
	}
	if !entErr.Decision.LimitReached {
		t.Fatal("expected LimitReached in decision")
	}
	if len(repo.vehicles) != 0 {
		t.Fatal("denied create must not persist a vehicle")
	}
}

func TestCreateAdminBypassesEntitlements(t *testing.T) {
	repo := newFakeRepo()
	checker := &fakeChecker{decision: membership.Decision{Allowed: false}}
	svc := NewService(repo, checker, time.UTC)

	if _, err := svc.Create(context.Background(), "t1", CreateRequest{Make: "Kia", Model: "Rio", Year: 2021}, true); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if checker.calls != 0 {
		t.Fatalf("expected no entitlement checks, got %d", checker.calls)
	}
}

func TestUpdateStatusValidation(t *testing.T) {
	repo := newFakeRepo()
	checker := &fakeChecker{decision: membership.Decision{Allowed: true}}
	svc := NewService(repo, checker, time.UTC)

	vehicle, err := svc.Create(context.Background(), "t1", CreateRequest{Make: "Kia", Model: "Rio", Year: 2021}, false)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), "t1", vehicle.ID, StatusSold)
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if updated.Status != StatusSold {
		t.Fatalf("expected sold, got %q", updated.Status)
	}

	if _, err := svc.UpdateStatus(context.Background(), "t1", vehicle.ID, "scrapped"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), "t2", vehicle.ID, StatusReserved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeChecker{}, time.UTC)
	if err := svc.Delete(context.Background(), "t1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
