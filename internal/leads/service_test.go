package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

type fakeRepo struct {
	leads map[string]Lead
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{leads: make(map[string]Lead)}
}

func (f *fakeRepo) Create(ctx context.Context, lead Lead) error {
	f.leads[lead.ID] = lead
	return nil
}

func (f *fakeRepo) List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int64) ([]Lead, error) {
	out := make([]Lead, 0)
	for _, l := range f.leads {
		if l.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.Source != "" && l.Source != filter.Source {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeRepo) Count(ctx context.Context, tenantID string, filter ListFilter) (int64, error) {
	items, _ := f.List(ctx, tenantID, filter, 0, 0)
	return int64(len(items)), nil
}

func (f *fakeRepo) GetByID(ctx context.Context, tenantID, id string) (Lead, error) {
	l, ok := f.leads[id]
	if !ok || l.TenantID != tenantID {
		return Lead{}, mongo.ErrNoDocuments
	}
	return l, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, tenantID, id, status string, now time.Time) (Lead, error) {
	l, err := f.GetByID(ctx, tenantID, id)
	if err != nil {
		return Lead{}, err
	}
	l.Status = status
	l.UpdatedAt = now
	f.leads[id] = l
	return l, nil
}

func (f *fakeRepo) AppendInteraction(ctx context.Context, tenantID, id string, interaction Interaction) (Lead, error) {
	l, err := f.GetByID(ctx, tenantID, id)
	if err != nil {
		return Lead{}, err
	}
	l.Interactions = append(l.Interactions, interaction)
	f.leads[id] = l
	return l, nil
}

func (f *fakeRepo) AppendDocument(ctx context.Context, tenantID, id, document string, now time.Time) (Lead, error) {
	l, err := f.GetByID(ctx, tenantID, id)
	if err != nil {
		return Lead{}, err
	}
	l.Documents = append(l.Documents, document)
	f.leads[id] = l
	return l, nil
}

func (f *fakeRepo) SetClassification(ctx context.Context, tenantID, id string, ai AIClassification) error {
	l, err := f.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	l.AI = &ai
	f.leads[id] = l
	return nil
}

func (f *fakeRepo) UpdateScore(ctx context.Context, tenantID, id string, score Score, expectedVersion int64) error {
	l, err := f.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if l.ScoreVersion != expectedVersion {
		return ErrVersionConflict
	}
	l.Score = &score
	l.ScoreVersion++
	f.leads[id] = l
	return nil
}

func TestCreateDefaultsSourceToWeb(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, time.UTC)

	lead, err := svc.Create(context.Background(), "t1", CreateRequest{Name: "Ana Perez"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if lead.Source != SourceWeb {
		t.Fatalf("expected default source web, got %q", lead.Source)
	}
	if lead.Status != StatusNew {
		t.Fatalf("expected status new, got %q", lead.Status)
	}
	if len(lead.Interactions) != 0 {
		t.Fatalf("expected no interactions without a note, got %d", len(lead.Interactions))
	}
}

func TestCreateRejectsUnknownSource(t *testing.T) {
	svc := NewService(newFakeRepo(), time.UTC)

	_, err := svc.Create(context.Background(), "t1", CreateRequest{Name: "Ana", Source: "telegram"})
	if !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
}

func TestCreateRecordsInitialNote(t *testing.T) {
	svc := NewService(newFakeRepo(), time.UTC)

	lead, err := svc.Create(context.Background(), "t1", CreateRequest{
		Name:   "Luis Gomez",
		Source: "whatsapp",
		Note:   "interested in the 2022 RAV4",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(lead.Interactions) != 1 || lead.Interactions[0].Note != "interested in the 2022 RAV4" {
		t.Fatalf("expected initial note interaction, got %+v", lead.Interactions)
	}
}

func TestUpdateStatusAllowsAnyValidTransition(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, time.UTC)

	lead, err := svc.Create(context.Background(), "t1", CreateRequest{Name: "Ana"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	// Forward, then backwards: ordering is not enforced.
	for _, status := range []string{StatusQualified, StatusTestDrive, StatusContacted} {
		updated, err := svc.UpdateStatus(context.Background(), "t1", lead.ID, status)
		if err != nil {
			t.Fatalf("UpdateStatus(%s) error: %v", status, err)
		}
		if updated.Status != status {
			t.Fatalf("expected status %s, got %s", status, updated.Status)
		}
	}

	if _, err := svc.UpdateStatus(context.Background(), "t1", lead.ID, "archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdateStatusCrossTenantIsNotFound(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, time.UTC)

	lead, err := svc.Create(context.Background(), "t1", CreateRequest{Name: "Ana"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := svc.UpdateStatus(context.Background(), "t2", lead.ID, StatusContacted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}
}

func TestAddInteraction(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, time.UTC)

	lead, err := svc.Create(context.Background(), "t1", CreateRequest{Name: "Ana"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	updated, err := svc.AddInteraction(context.Background(), "t1", lead.ID, InteractionRequest{Type: "Call", Note: "left voicemail"}, "seller")
	if err != nil {
		t.Fatalf("AddInteraction error: %v", err)
	}
	if len(updated.Interactions) != 1 {
		t.Fatalf("expected 1 interaction, got %d", len(updated.Interactions))
	}
	got := updated.Interactions[0]
	if got.Type != "call" || got.By != "seller" {
		t.Fatalf("unexpected interaction %+v", got)
	}
}

func TestListFiltersValidated(t *testing.T) {
	svc := NewService(newFakeRepo(), time.UTC)

	if _, _, err := svc.List(context.Background(), "t1", ListFilter{Status: "archived"}, 20, 0); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, _, err := svc.List(context.Background(), "t1", ListFilter{Source: "telegram"}, 20, 0); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
}
