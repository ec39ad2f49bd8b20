package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DefaultMaxScore        = 100
	DefaultAutomaticWeight = 0.7
	DefaultManualWeight    = 0.3

	// HistoryLimit bounds a lead's score history; oldest entries are
	// evicted first.
	HistoryLimit = 50
)

// ConditionField is the closed set of attributes a scoring rule can test.
type ConditionField string

const (
	FieldSource               ConditionField = "source"
	FieldStatus               ConditionField = "status"
	FieldInteractions         ConditionField = "interactions"
	FieldDocumentUploaded     ConditionField = "documentUploaded"
	FieldAppointmentScheduled ConditionField = "appointmentScheduled"
)

const (
	OperatorEquals      = "equals"
	OperatorGreaterThan = "greaterThan"
	OperatorExists      = "exists"
)

// Condition tests one lead attribute. The payload field that applies depends
// on Field: Equals for source/status, MinCount for interactions, neither for
// the presence checks.
type Condition struct {
	Field    ConditionField `bson:"field" json:"field"`
	Operator string         `bson:"operator" json:"operator"`
	Equals   string         `bson:"equals,omitempty" json:"equals,omitempty"`
	MinCount int            `bson:"minCount,omitempty" json:"minCount,omitempty"`
}

// Rule contributes Points when every condition holds. Rules are additive;
// Priority orders evaluation but does not make rules exclusive.
type Rule struct {
	Name       string      `bson:"name,omitempty" json:"name,omitempty"`
	Conditions []Condition `bson:"conditions" json:"conditions"`
	Points     int         `bson:"points" json:"points"`
	Priority   int         `bson:"priority" json:"priority"`
	Enabled    bool        `bson:"enabled" json:"enabled"`
}

type Weights struct {
	Automatic float64 `bson:"automatic" json:"automatic"`
	Manual    float64 `bson:"manual" json:"manual"`
}

type Config struct {
	ID             string    `bson:"_id,omitempty" json:"-"`
	TenantID       string    `bson:"tenantId" json:"tenantId"`
	Enabled        bool      `bson:"enabled" json:"enabled"`
	AutoCalculate  bool      `bson:"autoCalculate" json:"autoCalculate"`
	ManualOverride bool      `bson:"manualOverride" json:"manualOverride"`
	MaxScore       int       `bson:"maxScore" json:"maxScore"`
	Rules          []Rule    `bson:"rules" json:"rules"`
	Weights        Weights   `bson:"weights" json:"weights"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// DefaultConfig is what a tenant gets before it ever writes scoring settings.
func DefaultConfig(tenantID string) Config {
	return Config{
		TenantID:       tenantID,
		Enabled:        true,
		AutoCalculate:  true,
		ManualOverride: true,
		MaxScore:       DefaultMaxScore,
		Rules:          []Rule{},
		Weights: Weights{
			Automatic: DefaultAutomaticWeight,
			Manual:    DefaultManualWeight,
		},
	}
}

var supportedFields = map[ConditionField]struct{}{
	FieldSource:               {},
	FieldStatus:               {},
	FieldInteractions:         {},
	FieldDocumentUploaded:     {},
	FieldAppointmentScheduled: {},
}

// Condition fields the dashboard historically offered but that were never
// wired to lead data. They are rejected outright instead of silently
// evaluating to false.
var unsupportedFields = map[ConditionField]struct{}{
	"responseTime": {},
	"emailOpened":  {},
	"linkClicked":  {},
}

var ErrInvalidConfig = errors.New("invalid scoring config")

// ValidateConfig is applied on every settings write. Documents written before
// validation existed may still carry unknown fields; the engine fails those
// closed at evaluation time.
func ValidateConfig(cfg Config) error {
	if cfg.MaxScore <= 0 {
		return fmt.Errorf("%w: maxScore must be positive", ErrInvalidConfig)
	}
	if cfg.Weights.Automatic < 0 || cfg.Weights.Manual < 0 {
		return fmt.Errorf("%w: weights must not be negative", ErrInvalidConfig)
	}
	if sum := cfg.Weights.Automatic + cfg.Weights.Manual; math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("%w: weights must sum to 1.0, got %.3f", ErrInvalidConfig, sum)
	}
	for i, rule := range cfg.Rules {
		if len(rule.Conditions) == 0 {
			return fmt.Errorf("%w: rule %d has no conditions", ErrInvalidConfig, i)
		}
		for _, cond := range rule.Conditions {
			if err := validateCondition(cond); err != nil {
				return fmt.Errorf("%w: rule %d: %v", ErrInvalidConfig, i, err)
			}
		}
	}
	return nil
}

func validateCondition(cond Condition) error {
	if _, unsupported := unsupportedFields[cond.Field]; unsupported {
		return fmt.Errorf("condition field %q is not supported", cond.Field)
	}
	if _, ok := supportedFields[cond.Field]; !ok {
		return fmt.Errorf("unknown condition field %q", cond.Field)
	}

	switch cond.Field {
	case FieldSource, FieldStatus:
		if cond.Operator != OperatorEquals {
			return fmt.Errorf("field %q requires operator %q", cond.Field, OperatorEquals)
		}
		if cond.Equals == "" {
			return fmt.Errorf("field %q requires a comparison value", cond.Field)
		}
	case FieldInteractions:
		if cond.Operator != OperatorGreaterThan {
			return fmt.Errorf("field %q requires operator %q", cond.Field, OperatorGreaterThan)
		}
		if cond.MinCount < 0 {
			return fmt.Errorf("field %q requires a non-negative minCount", cond.Field)
		}
	case FieldDocumentUploaded, FieldAppointmentScheduled:
		if cond.Operator != OperatorExists {
			return fmt.Errorf("field %q requires operator %q", cond.Field, OperatorExists)
		}
	}
	return nil
}

type ConfigUpdateRequest struct {
	Enabled        bool    `json:"enabled"`
	AutoCalculate  bool    `json:"autoCalculate"`
	ManualOverride bool    `json:"manualOverride"`
	MaxScore       int     `json:"maxScore" validate:"required,gt=0"`
	Rules          []Rule  `json:"rules"`
	Weights        Weights `json:"weights"`
}

type ManualScoreRequest struct {
	Score  int    `json:"score" validate:"gte=0"`
	Reason string `json:"reason" validate:"required"`
}

type RecalculateRequest struct {
	Reason string `json:"reason"`
}
