package promotions

import (
	"context"
	"errors"
	"testing"
	"time"

	"autodealers-backend/internal/membership"

	"go.mongodb.org/mongo-driver/mongo"
)

type fakeRepo struct {
	promos    map[string]Promotion
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{promos: make(map[string]Promotion)}
}

func (f *fakeRepo) Create(ctx context.Context, promo Promotion) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.promos[promo.ID] = promo
	return nil
}

func (f *fakeRepo) List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int64) ([]Promotion, error) {
	out := make([]Promotion, 0)
	for _, p := range f.promos {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) Count(ctx context.Context, tenantID string, filter ListFilter) (int64, error) {
	items, _ := f.List(ctx, tenantID, filter, 0, 0)
	return int64(len(items)), nil
}

func (f *fakeRepo) GetByID(ctx context.Context, tenantID, id string) (Promotion, error) {
	p, ok := f.promos[id]
	if !ok || p.TenantID != tenantID {
		return Promotion{}, mongo.ErrNoDocuments
	}
	return p, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, tenantID, id, status string, now time.Time) (Promotion, error) {
	p, ok := f.promos[id]
	if !ok || p.TenantID != tenantID {
		return Promotion{}, mongo.ErrNoDocuments
	}
	p.Status = status
	p.UpdatedAt = now
	f.promos[id] = p
	return p, nil
}

func (f *fakeRepo) ListActiveLanding(ctx context.Context, limit int64) ([]Promotion, error) {
	out := make([]Promotion, 0)
	for _, p := range f.promos {
		if p.Status == StatusActive && p.Placement == PlacementLanding {
			out = append(out, p)
		}
	}
	return out, nil
}

// fakeSlots mimics the bounded counter: Acquire succeeds while below cap.
type fakeSlots struct {
	used     int64
	cap      int64
	acquires int
	releases int
}

func (f *fakeSlots) Acquire(ctx context.Context) (bool, error) {
	f.acquires++
	if f.used >= f.cap {
		return false, nil
	}
	f.used++
	return true, nil
}

func (f *fakeSlots) Release(ctx context.Context) error {
	f.releases++
	if f.used > 0 {
		f.used--
	}
	return nil
}

func (f *fakeSlots) Available(ctx context.Context) (int64, error) {
	return f.cap - f.used, nil
}

type fakeChecker struct {
	decisions map[membership.Action]membership.Decision
	calls     []membership.Action
}

func (f *fakeChecker) CanExecute(ctx context.Context, tenantID string, action membership.Action) (membership.Decision, error) {
	f.calls = append(f.calls, action)
	if d, ok := f.decisions[action]; ok {
		return d, nil
	}
	return membership.Decision{Allowed: true}, nil
}

func newTestService(repo Repository, slots SlotCounter, checker EntitlementChecker) *Service {
	return NewService(repo, slots, checker, time.UTC)
}

func landingRequest(kind string) CreateRequest {
	return CreateRequest{
		Title:     "Summer clearance",
		Kind:      kind,
		Placement: PlacementLanding,
	}
}

func TestCreateAcquiresLandingSlot(t *testing.T) {
	repo := newFakeRepo()
	slots := &fakeSlots{cap: 12}
	svc := newTestService(repo, slots, &fakeChecker{})

	promo, err := svc.Create(context.Background(), "t1", landingRequest(KindPaid), false)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if slots.used != 1 {
		t.Fatalf("expected 1 slot used, got %d", slots.used)
	}
	if promo.Status != StatusActive || promo.Slug == "" {
		t.Fatalf("unexpected promotion: %+v", promo)
	}
	if promo.EndsAt.Sub(promo.StartsAt) != 30*24*time.Hour {
		t.Fatalf("expected default 30 day duration, got %v", promo.EndsAt.Sub(promo.StartsAt))
	}
}

func TestCreateSearchPlacementSkipsSlots(t *testing.T) {
	slots := &fakeSlots{cap: 12}
	svc := newTestService(newFakeRepo(), slots, &fakeChecker{})

	req := landingRequest(KindPaid)
	req.Placement = PlacementSearch
	if _, err := svc.Create(context.Background(), "t1", req, false); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if slots.acquires != 0 {
		t.Fatalf("search placement must not touch the landing counter, got %d acquires", slots.acquires)
	}
}

func TestCreateSlotsExhausted(t *testing.T) {
	slots := &fakeSlots{cap: 1, used: 1}
	svc := newTestService(newFakeRepo(), slots, &fakeChecker{})

	_, err := svc.Create(context.Background(), "t1", landingRequest(KindPaid), false)
	var exhausted *SlotsExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected SlotsExhaustedError, got %v", err)
	}
	d := exhausted.Decision()
	if d.Allowed || !d.LimitReached || d.AvailableSlots == nil || *d.AvailableSlots != 0 {
		t.Fatalf("unexpected capacity decision: %+v", d)
	}
}

func TestCreateReleasesSlotOnInsertFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = errors.New("write failed")
	slots := &fakeSlots{cap: 12}
	svc := newTestService(repo, slots, &fakeChecker{})

	if _, err := svc.Create(context.Background(), "t1", landingRequest(KindPaid), false); err == nil {
		t.Fatal("expected insert failure to surface")
	}
	if slots.used != 0 {
		t.Fatalf("slot must be released after a failed insert, got %d used", slots.used)
	}
	if slots.releases != 1 {
		t.Fatalf("expected 1 release, got %d", slots.releases)
	}
}

func TestCreateQuotaDenial(t *testing.T) {
	checker := &fakeChecker{decisions: map[membership.Action]membership.Decision{
		membership.ActionCreatePromotion: {Allowed: false, Reason: "plan limit reached"},
	}}
	slots := &fakeSlots{cap: 12}
	svc := newTestService(newFakeRepo(), slots, checker)

	_, err := svc.Create(context.Background(), "t1", landingRequest(KindPaid), false)
	var entErr *EntitlementError
	if !errors.As(err, &entErr) {
		t.Fatalf("expected EntitlementError, got %v", err)
	}
	if slots.acquires != 0 {
		t.Fatal("denied request must not consume a slot")
	}
}

func TestCreateFreeKindChecksFeatureFlagBeforeSlots(t *testing.T) {
	checker := &fakeChecker{decisions: map[membership.Action]membership.Decision{
		membership.ActionPublishFreePromotion: {Allowed: false, Reason: "current membership does not include free landing promotions"},
	}}
	slots := &fakeSlots{cap: 12}
	svc := newTestService(newFakeRepo(), slots, checker)

	_, err := svc.Create(context.Background(), "t1", landingRequest(KindFree), false)
	var entErr *EntitlementError
	if !errors.As(err, &entErr) {
		t.Fatalf("expected EntitlementError, got %v", err)
	}
	if entErr.Decision.LimitReached {
		t.Fatalf("feature denial must not read as capacity: %+v", entErr.Decision)
	}
	if slots.acquires != 0 {
		t.Fatal("feature-denied request must not consume a slot")
	}
	if len(checker.calls) != 2 || checker.calls[1] != membership.ActionPublishFreePromotion {
		t.Fatalf("expected quota then feature check, got %v", checker.calls)
	}
}

func TestCreateAdminBypassesEntitlements(t *testing.T) {
	checker := &fakeChecker{decisions: map[membership.Action]membership.Decision{
		membership.ActionCreatePromotion: {Allowed: false, Reason: "plan limit reached"},
	}}
	slots := &fakeSlots{cap: 12}
	svc := newTestService(newFakeRepo(), slots, checker)

	if _, err := svc.Create(context.Background(), "t1", landingRequest(KindPaid), true); err != nil {
		t.Fatalf("admin bypass failed: %v", err)
	}
	if len(checker.calls) != 0 {
		t.Fatalf("admin create must skip entitlement checks, got %v", checker.calls)
	}
	// The global cap still applies to admins.
	if slots.used != 1 {
		t.Fatalf("expected slot consumed, got %d", slots.used)
	}
}

func TestUpdateStatusReleasesAndReacquiresSlot(t *testing.T) {
	repo := newFakeRepo()
	slots := &fakeSlots{cap: 1}
	svc := newTestService(repo, slots, &fakeChecker{})

	promo, err := svc.Create(context.Background(), "t1", landingRequest(KindPaid), false)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if slots.used != 1 {
		t.Fatalf("expected slot held, got %d", slots.used)
	}

	if _, err := svc.UpdateStatus(context.Background(), "t1", promo.ID, StatusPaused); err != nil {
		t.Fatalf("pause error: %v", err)
	}
	if slots.used != 0 {
		t.Fatalf("pausing must free the slot, got %d used", slots.used)
	}

	if _, err := svc.UpdateStatus(context.Background(), "t1", promo.ID, StatusActive); err != nil {
		t.Fatalf("reactivate error: %v", err)
	}
	if slots.used != 1 {
		t.Fatalf("reactivating must re-acquire the slot, got %d used", slots.used)
	}

	// Same-status update is a no-op.
	acquiresBefore := slots.acquires
	if _, err := svc.UpdateStatus(context.Background(), "t1", promo.ID, StatusActive); err != nil {
		t.Fatalf("no-op update error: %v", err)
	}
	if slots.acquires != acquiresBefore {
		t.Fatal("same-status update must not touch the counter")
	}
}

func TestUpdateStatusReactivationBlockedWhenFull(t *testing.T) {
	repo := newFakeRepo()
	slots := &fakeSlots{cap: 1}
	svc := newTestService(repo, slots, &fakeChecker{})

	promo, err := svc.Create(context.Background(), "t1", landingRequest(KindPaid), false)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), "t1", promo.ID, StatusPaused); err != nil {
		t.Fatalf("pause error: %v", err)
	}

	// Another tenant takes the freed slot.
	if _, err := svc.Create(context.Background(), "t2", landingRequest(KindPaid), false); err != nil {
		t.Fatalf("competitor create error: %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), "t1", promo.ID, StatusActive)
	var exhausted *SlotsExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected SlotsExhaustedError on reactivation, got %v", err)
	}
}

func TestUpdateStatusInvalid(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeSlots{cap: 12}, &fakeChecker{})

	if _, err := svc.UpdateStatus(context.Background(), "t1", "p1", "archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), "t1", "missing", StatusPaused); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
