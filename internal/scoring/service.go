package scoring

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"autodealers-backend/internal/leads"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrManualOverrideDisabled = errors.New("manual override disabled")
	ErrScoreOutOfRange        = errors.New("score out of range")
)

// maxUpdateRetries bounds the optimistic read-modify-write loop when two
// scoring events race on the same lead.
const maxUpdateRetries = 3

type LeadStore interface {
	GetByID(ctx context.Context, tenantID, id string) (leads.Lead, error)
	UpdateScore(ctx context.Context, tenantID, id string, score leads.Score, expectedVersion int64) error
}

type Service struct {
	leadStore LeadStore
	settings  SettingsRepository
	location  *time.Location
}

func NewService(leadStore LeadStore, settings SettingsRepository, location *time.Location) *Service {
	return &Service{
		leadStore: leadStore,
		settings:  settings,
		location:  location,
	}
}

// Config returns the tenant's scoring settings, falling back to the defaults
// when the tenant never saved any. Absence is not an error.
func (s *Service) Config(ctx context.Context, tenantID string) (Config, error) {
	cfg, ok, err := s.settings.Get(ctx, tenantID)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return DefaultConfig(tenantID), nil
	}
	if cfg.MaxScore <= 0 {
		cfg.MaxScore = DefaultMaxScore
	}
	if cfg.Weights.Automatic == 0 && cfg.Weights.Manual == 0 {
		cfg.Weights = Weights{Automatic: DefaultAutomaticWeight, Manual: DefaultManualWeight}
	}
	return cfg, nil
}

func (s *Service) SaveConfig(ctx context.Context, tenantID string, req ConfigUpdateRequest) (Config, error) {
	cfg := Config{
		TenantID:       tenantID,
		Enabled:        req.Enabled,
		AutoCalculate:  req.AutoCalculate,
		ManualOverride: req.ManualOverride,
		MaxScore:       req.MaxScore,
		Rules:          req.Rules,
		Weights:        req.Weights,
	}
	if cfg.Rules == nil {
		cfg.Rules = []Rule{}
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	if err := s.settings.Upsert(ctx, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Recalculate recomputes the automatic score for a lead and persists it. Any
// stored manual override stays on the document but the combined score follows
// the automatic value alone until the next explicit override.
func (s *Service) Recalculate(ctx context.Context, tenantID, leadID, reason, updatedBy string) (leads.Score, error) {
	cfg, err := s.Config(ctx, tenantID)
	if err != nil {
		return leads.Score{}, err
	}
	if reason == "" {
		reason = "automatic recalculation"
	}
	return s.updateScore(ctx, tenantID, leadID, cfg, nil, reason, updatedBy)
}

// SetManualScore records a human override and blends it with a freshly
// computed automatic score using the tenant's weights.
func (s *Service) SetManualScore(ctx context.Context, tenantID, leadID string, manual int, reason, updatedBy string) (leads.Score, error) {
	cfg, err := s.Config(ctx, tenantID)
	if err != nil {
		return leads.Score{}, err
	}
	if !cfg.ManualOverride {
		return leads.Score{}, ErrManualOverrideDisabled
	}
	if manual < 0 || manual > cfg.MaxScore {
		return leads.Score{}, ErrScoreOutOfRange
	}
	return s.updateScore(ctx, tenantID, leadID, cfg, &manual, reason, updatedBy)
}

func (s *Service) updateScore(ctx context.Context, tenantID, leadID string, cfg Config, manual *int, reason, updatedBy string) (leads.Score, error) {
	leadID = strings.TrimSpace(leadID)

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		lead, err := s.leadStore.GetByID(ctx, tenantID, leadID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return leads.Score{}, leads.ErrNotFound
			}
			return leads.Score{}, err
		}

		automatic := ComputeAutomaticScore(lead, cfg)

		score := leads.Score{
			Automatic:   automatic,
			Combined:    automatic,
			LastUpdated: time.Now().In(s.location),
		}

		if manual != nil {
			m := *manual
			score.Manual = &m
			score.Combined = combine(automatic, m, cfg.Weights)
		} else if lead.Score != nil && lead.Score.Manual != nil {
			// Keep the stored override on record; it does not feed the
			// combined score unless supplied with this update.
			m := *lead.Score.Manual
			score.Manual = &m
		}

		entry := leads.ScoreEntry{
			Score:     automatic,
			Type:      leads.ScoreTypeAutomatic,
			Reason:    reason,
			UpdatedBy: updatedBy,
			UpdatedAt: score.LastUpdated,
		}
		if manual != nil {
			entry.Score = *manual
			entry.Type = leads.ScoreTypeManual
		}

		score.History = appendHistory(lead.Score, entry)

		err = s.leadStore.UpdateScore(ctx, tenantID, leadID, score, lead.ScoreVersion)
		if errors.Is(err, leads.ErrVersionConflict) {
			continue
		}
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return leads.Score{}, leads.ErrNotFound
			}
			return leads.Score{}, err
		}
		return score, nil
	}

	return leads.Score{}, leads.ErrVersionConflict
}

func combine(automatic, manual int, weights Weights) int {
	blended := float64(automatic)*weights.Automatic + float64(manual)*weights.Manual
	return int(math.Round(blended))
}

// appendHistory appends the new entry and evicts from the front past
// HistoryLimit. Eviction is purely by insertion order.
func appendHistory(prev *leads.Score, entry leads.ScoreEntry) []leads.ScoreEntry {
	var history []leads.ScoreEntry
	if prev != nil {
		history = append(history, prev.History...)
	}
	history = append(history, entry)
	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}
	return history
}
