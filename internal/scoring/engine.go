package scoring

import (
	"sort"

	"autodealers-backend/internal/leads"
)

// Per-source base points. Sources that tend to convert for dealerships
// (direct calls, WhatsApp) score higher than passive channels.
var sourcePoints = map[string]int{
	leads.SourcePhone:     20,
	leads.SourceWhatsApp:  15,
	leads.SourceFacebook:  12,
	leads.SourceInstagram: 12,
	leads.SourceWeb:       10,
	leads.SourceSMS:       10,
	leads.SourceEmail:     8,
}

const unknownSourcePoints = 5

const (
	interactionBonusCap   = 30
	engagedThreshold      = 5
	veryEngagedThreshold  = 10
	engagedFlatBonus      = 10
	veryEngagedExtraBonus = 15
)

const (
	priorityHighBonus   = 20
	priorityMediumBonus = 10
	priorityLowBonus    = 5

	sentimentPositiveBonus   = 10
	sentimentNegativePenalty = -10
)

// ComputeAutomaticScore evaluates the tenant's scoring rules plus the fixed
// source/engagement/AI factors against a lead snapshot. Pure function; the
// result is always within [0, cfg.MaxScore].
func ComputeAutomaticScore(lead leads.Lead, cfg Config) int {
	if !cfg.Enabled || !cfg.AutoCalculate {
		return 0
	}

	total := 0

	rules := make([]Rule, len(cfg.Rules))
	copy(rules, cfg.Rules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if ruleMatches(lead, rule) {
			total += rule.Points
		}
	}

	total += sourceScore(lead.Source)
	total += interactionBonus(len(lead.Interactions))
	total += classificationBonus(lead.AI)

	maxScore := cfg.MaxScore
	if maxScore <= 0 {
		maxScore = DefaultMaxScore
	}
	if total > maxScore {
		total = maxScore
	}
	if total < 0 {
		total = 0
	}
	return total
}

func ruleMatches(lead leads.Lead, rule Rule) bool {
	for _, cond := range rule.Conditions {
		if !conditionHolds(lead, cond) {
			return false
		}
	}
	return true
}

// conditionHolds fails closed: a condition kind the engine does not know
// (legacy documents predating config validation) contributes nothing rather
// than erroring the whole scoring pass.
func conditionHolds(lead leads.Lead, cond Condition) bool {
	switch cond.Field {
	case FieldSource:
		return lead.Source == cond.Equals
	case FieldStatus:
		return lead.Status == cond.Equals
	case FieldInteractions:
		return len(lead.Interactions) > cond.MinCount
	case FieldDocumentUploaded:
		return len(lead.Documents) > 0
	case FieldAppointmentScheduled:
		return lead.Status == leads.StatusAppointment || lead.Status == leads.StatusTestDrive
	default:
		return false
	}
}

func sourceScore(source string) int {
	if points, ok := sourcePoints[source]; ok {
		return points
	}
	return unknownSourcePoints
}

// interactionBonus rewards engagement volume. The flat thresholds count
// toward the cap, not on top of it.
func interactionBonus(count int) int {
	bonus := 2 * count
	if count >= engagedThreshold {
		bonus += engagedFlatBonus
	}
	if count >= veryEngagedThreshold {
		bonus += veryEngagedExtraBonus
	}
	if bonus > interactionBonusCap {
		bonus = interactionBonusCap
	}
	return bonus
}

func classificationBonus(ai *leads.AIClassification) int {
	if ai == nil {
		return 0
	}

	bonus := 0
	switch ai.Priority {
	case leads.PriorityHigh:
		bonus += priorityHighBonus
	case leads.PriorityMedium:
		bonus += priorityMediumBonus
	case leads.PriorityLow:
		bonus += priorityLowBonus
	}

	switch ai.Sentiment {
	case leads.SentimentPositive:
		bonus += sentimentPositiveBonus
	case leads.SentimentNegative:
		bonus += sentimentNegativePenalty
	}

	return bonus
}
