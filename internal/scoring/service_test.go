package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"autodealers-backend/internal/leads"

	"go.mongodb.org/mongo-driver/mongo"
)

type fakeSettings struct {
	cfg Config
	has bool
}

func (f *fakeSettings) Get(ctx context.Context, tenantID string) (Config, bool, error) {
	return f.cfg, f.has, nil
}

func (f *fakeSettings) Upsert(ctx context.Context, cfg Config) error {
	f.cfg = cfg
	f.has = true
	return nil
}

type fakeLeadStore struct {
	lead      leads.Lead
	missing   bool
	conflicts int
	attempts  int
}

func (f *fakeLeadStore) GetByID(ctx context.Context, tenantID, id string) (leads.Lead, error) {
	if f.missing {
		return leads.Lead{}, mongo.ErrNoDocuments
	}
	return f.lead, nil
}

func (f *fakeLeadStore) UpdateScore(ctx context.Context, tenantID, id string, score leads.Score, expectedVersion int64) error {
	f.attempts++
	if f.conflicts > 0 {
		f.conflicts--
		// A concurrent writer bumped the version between read and write.
		f.lead.ScoreVersion++
		return leads.ErrVersionConflict
	}
	if expectedVersion != f.lead.ScoreVersion {
		return leads.ErrVersionConflict
	}
	s := score
	f.lead.Score = &s
	f.lead.ScoreVersion++
	return nil
}

func newTestService(store *fakeLeadStore, settings *fakeSettings) *Service {
	return NewService(store, settings, time.UTC)
}

func TestRecalculatePersistsAutomaticScore(t *testing.T) {
	store := &fakeLeadStore{lead: leads.Lead{ID: "l1", TenantID: "t1", Source: leads.SourceWhatsApp}}
	svc := newTestService(store, &fakeSettings{})

	score, err := svc.Recalculate(context.Background(), "t1", "l1", "lead created", "system")
	if err != nil {
		t.Fatalf("Recalculate error: %v", err)
	}
	if score.Automatic != 15 {
		t.Fatalf("expected automatic 15, got %d", score.Automatic)
	}
	if score.Combined != 15 {
		t.Fatalf("expected combined to follow automatic, got %d", score.Combined)
	}
	if score.Manual != nil {
		t.Fatalf("expected no manual score, got %d", *score.Manual)
	}
	if len(score.History) != 1 || score.History[0].Type != leads.ScoreTypeAutomatic {
		t.Fatalf("expected one automatic history entry, got %+v", score.History)
	}
	if store.lead.Score == nil || store.lead.Score.Combined != 15 {
		t.Fatalf("score not persisted: %+v", store.lead.Score)
	}
}

func TestRecalculateCarriesStoredManualWithoutBlending(t *testing.T) {
	manual := 80
	store := &fakeLeadStore{lead: leads.Lead{
		ID: "l1", TenantID: "t1", Source: leads.SourcePhone,
		Score:        &leads.Score{Automatic: 10, Manual: &manual, Combined: 59},
		ScoreVersion: 4,
	}}
	svc := newTestService(store, &fakeSettings{})

	score, err := svc.Recalculate(context.Background(), "t1", "l1", "", "system")
	if err != nil {
		t.Fatalf("Recalculate error: %v", err)
	}
	if score.Manual == nil || *score.Manual != 80 {
		t.Fatalf("stored manual override should survive, got %+v", score.Manual)
	}
	if score.Combined != score.Automatic {
		t.Fatalf("recalculation should not re-blend the old override: combined=%d automatic=%d", score.Combined, score.Automatic)
	}
}

func TestSetManualScoreBlendsWithWeights(t *testing.T) {
	store := &fakeLeadStore{lead: leads.Lead{ID: "l1", TenantID: "t1", Source: leads.SourcePhone}}
	svc := newTestService(store, &fakeSettings{})

	score, err := svc.SetManualScore(context.Background(), "t1", "l1", 50, "adjusted after call", "dealer")
	if err != nil {
		t.Fatalf("SetManualScore error: %v", err)
	}
	// automatic 20, manual 50: round(20*0.7 + 50*0.3) = 29.
	if score.Automatic != 20 {
		t.Fatalf("expected automatic 20, got %d", score.Automatic)
	}
	if score.Combined != 29 {
		t.Fatalf("expected combined 29, got %d", score.Combined)
	}
	if score.Manual == nil || *score.Manual != 50 {
		t.Fatalf("expected manual 50, got %+v", score.Manual)
	}
	last := score.History[len(score.History)-1]
	if last.Type != leads.ScoreTypeManual || last.Score != 50 {
		t.Fatalf("expected manual history entry with score 50, got %+v", last)
	}
}

func TestSetManualScoreDisabled(t *testing.T) {
	cfg := DefaultConfig("t1")
	cfg.ManualOverride = false
	store := &fakeLeadStore{lead: leads.Lead{ID: "l1", TenantID: "t1"}}
	svc := newTestService(store, &fakeSettings{cfg: cfg, has: true})

	_, err := svc.SetManualScore(context.Background(), "t1", "l1", 40, "", "dealer")
	if !errors.Is(err, ErrManualOverrideDisabled) {
		t.Fatalf("expected ErrManualOverrideDisabled, got %v", err)
	}
}

func TestSetManualScoreOutOfRange(t *testing.T) {
	store := &fakeLeadStore{lead: leads.Lead{ID: "l1", TenantID: "t1"}}
	svc := newTestService(store, &fakeSettings{})

	for _, v := range []int{-1, 101} {
		if _, err := svc.SetManualScore(context.Background(), "t1", "l1", v, "", "dealer"); !errors.Is(err, ErrScoreOutOfRange) {
			t.Fatalf("manual %d: expected ErrScoreOutOfRange, got %v", v, err)
		}
	}
}

func TestUpdateScoreRetriesOnVersionConflict(t *testing.T) {
	store := &fakeLeadStore{
		lead:      leads.Lead{ID: "l1", TenantID: "t1", Source: leads.SourceWeb},
		conflicts: 2,
	}
	svc := newTestService(store, &fakeSettings{})

	if _, err := svc.Recalculate(context.Background(), "t1", "l1", "", "system"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if store.attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.attempts)
	}
}

func TestUpdateScoreGivesUpAfterMaxRetries(t *testing.T) {
	store := &fakeLeadStore{
		lead:      leads.Lead{ID: "l1", TenantID: "t1", Source: leads.SourceWeb},
		conflicts: maxUpdateRetries,
	}
	svc := newTestService(store, &fakeSettings{})

	_, err := svc.Recalculate(context.Background(), "t1", "l1", "", "system")
	if !errors.Is(err, leads.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestRecalculateLeadNotFound(t *testing.T) {
	svc := newTestService(&fakeLeadStore{missing: true}, &fakeSettings{})

	_, err := svc.Recalculate(context.Background(), "t1", "nope", "", "system")
	if !errors.Is(err, leads.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScoreHistoryEvictsOldestPastLimit(t *testing.T) {
	prev := &leads.Score{}
	for i := 0; i < HistoryLimit; i++ {
		prev.History = append(prev.History, leads.ScoreEntry{Score: i, Type: leads.ScoreTypeAutomatic})
	}
	store := &fakeLeadStore{lead: leads.Lead{ID: "l1", TenantID: "t1", Source: leads.SourceWeb, Score: prev}}
	svc := newTestService(store, &fakeSettings{})

	score, err := svc.Recalculate(context.Background(), "t1", "l1", "", "system")
	if err != nil {
		t.Fatalf("Recalculate error: %v", err)
	}
	if len(score.History) != HistoryLimit {
		t.Fatalf("expected history capped at %d, got %d", HistoryLimit, len(score.History))
	}
	if score.History[0].Score != 1 {
		t.Fatalf("expected oldest entry evicted, first entry score=%d", score.History[0].Score)
	}
}

func TestSaveConfigValidates(t *testing.T) {
	svc := newTestService(&fakeLeadStore{}, &fakeSettings{})

	req := ConfigUpdateRequest{
		Enabled:       true,
		AutoCalculate: true,
		MaxScore:      100,
		Weights:       Weights{Automatic: 0.7, Manual: 0.3},
		Rules: []Rule{
			{
				Points: 10, Enabled: true,
				Conditions: []Condition{{Field: "emailOpened", Operator: OperatorExists}},
			},
		},
	}
	if _, err := svc.SaveConfig(context.Background(), "t1", req); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
