package scoring

import (
	"testing"

	"autodealers-backend/internal/leads"
)

func makeInteractions(n int) []leads.Interaction {
	out := make([]leads.Interaction, n)
	for i := range out {
		out[i] = leads.Interaction{Type: "note", Note: "followup"}
	}
	return out
}

func TestComputeAutomaticScoreDisabled(t *testing.T) {
	lead := leads.Lead{Source: leads.SourcePhone, Interactions: makeInteractions(8)}

	cfg := DefaultConfig("t1")
	cfg.Enabled = false
	if got := ComputeAutomaticScore(lead, cfg); got != 0 {
		t.Fatalf("disabled config: expected 0, got %d", got)
	}

	cfg = DefaultConfig("t1")
	cfg.AutoCalculate = false
	if got := ComputeAutomaticScore(lead, cfg); got != 0 {
		t.Fatalf("autoCalculate off: expected 0, got %d", got)
	}
}

func TestComputeAutomaticScoreSourcePoints(t *testing.T) {
	cases := []struct {
		source string
		want   int
	}{
		{leads.SourcePhone, 20},
		{leads.SourceWhatsApp, 15},
		{leads.SourceFacebook, 12},
		{leads.SourceInstagram, 12},
		{leads.SourceWeb, 10},
		{leads.SourceSMS, 10},
		{leads.SourceEmail, 8},
		{"carrier-pigeon", 5},
	}

	cfg := DefaultConfig("t1")
	for _, tc := range cases {
		lead := leads.Lead{Source: tc.source}
		if got := ComputeAutomaticScore(lead, cfg); got != tc.want {
			t.Fatalf("source %q: expected %d, got %d", tc.source, tc.want, got)
		}
	}
}

func TestComputeAutomaticScoreRulesAdditive(t *testing.T) {
	cfg := DefaultConfig("t1")
	cfg.Rules = []Rule{
		{
			Name: "whatsapp", Points: 10, Priority: 2, Enabled: true,
			Conditions: []Condition{{Field: FieldSource, Operator: OperatorEquals, Equals: "whatsapp"}},
		},
		{
			Name: "qualified", Points: 15, Priority: 1, Enabled: true,
			Conditions: []Condition{{Field: FieldStatus, Operator: OperatorEquals, Equals: "qualified"}},
		},
		{
			Name: "disabled", Points: 100, Priority: 3, Enabled: false,
			Conditions: []Condition{{Field: FieldSource, Operator: OperatorEquals, Equals: "whatsapp"}},
		},
	}

	lead := leads.Lead{Source: leads.SourceWhatsApp, Status: "qualified"}
	// 10 + 15 rules, 15 source.
	if got := ComputeAutomaticScore(lead, cfg); got != 40 {
		t.Fatalf("expected 40, got %d", got)
	}
}

func TestComputeAutomaticScoreRuleAllConditionsMustHold(t *testing.T) {
	cfg := DefaultConfig("t1")
	cfg.Rules = []Rule{
		{
			Points: 25, Enabled: true,
			Conditions: []Condition{
				{Field: FieldSource, Operator: OperatorEquals, Equals: "whatsapp"},
				{Field: FieldInteractions, Operator: OperatorGreaterThan, MinCount: 3},
			},
		},
	}

	lead := leads.Lead{Source: leads.SourceWhatsApp, Interactions: makeInteractions(2)}
	// Rule misses; 15 source + 4 interactions.
	if got := ComputeAutomaticScore(lead, cfg); got != 19 {
		t.Fatalf("partial match: expected 19, got %d", got)
	}

	lead.Interactions = makeInteractions(4)
	// Rule hits; 25 + 15 source + 8 interactions.
	if got := ComputeAutomaticScore(lead, cfg); got != 48 {
		t.Fatalf("full match: expected 48, got %d", got)
	}
}

func TestComputeAutomaticScoreUnknownConditionFailsClosed(t *testing.T) {
	cfg := DefaultConfig("t1")
	cfg.Rules = []Rule{
		{
			Points: 50, Enabled: true,
			Conditions: []Condition{{Field: "responseTime", Operator: OperatorGreaterThan, MinCount: 1}},
		},
	}

	lead := leads.Lead{Source: leads.SourceWeb}
	if got := ComputeAutomaticScore(lead, cfg); got != 10 {
		t.Fatalf("unknown condition should contribute nothing: expected 10, got %d", got)
	}
}

func TestComputeAutomaticScorePresenceConditions(t *testing.T) {
	cfg := DefaultConfig("t1")
	cfg.Rules = []Rule{
		{
			Name: "docs", Points: 10, Enabled: true,
			Conditions: []Condition{{Field: FieldDocumentUploaded, Operator: OperatorExists}},
		},
		{
			Name: "appointment", Points: 20, Enabled: true,
			Conditions: []Condition{{Field: FieldAppointmentScheduled, Operator: OperatorExists}},
		},
	}

	lead := leads.Lead{Source: leads.SourceEmail}
	if got := ComputeAutomaticScore(lead, cfg); got != 8 {
		t.Fatalf("no docs, no appointment: expected 8, got %d", got)
	}

	lead.Documents = []string{"cedula.pdf"}
	lead.Status = leads.StatusTestDrive
	// 10 docs + 20 appointment + 8 source.
	if got := ComputeAutomaticScore(lead, cfg); got != 38 {
		t.Fatalf("docs and test drive: expected 38, got %d", got)
	}

	lead.Status = leads.StatusAppointment
	if got := ComputeAutomaticScore(lead, cfg); got != 38 {
		t.Fatalf("docs and appointment: expected 38, got %d", got)
	}
}

func TestInteractionBonus(t *testing.T) {
	cases := []struct {
		count int
		want  int
	}{
		{0, 0},
		{1, 2},
		{4, 8},
		{5, 20},  // 10 + flat 10
		{9, 28},  // 18 + flat 10
		{10, 30}, // 20 + 10 + 15 capped
		{50, 30},
	}
	for _, tc := range cases {
		if got := interactionBonus(tc.count); got != tc.want {
			t.Fatalf("interactionBonus(%d): expected %d, got %d", tc.count, tc.want, got)
		}
	}
}

func TestClassificationBonus(t *testing.T) {
	if got := classificationBonus(nil); got != 0 {
		t.Fatalf("nil classification: expected 0, got %d", got)
	}

	cases := []struct {
		priority  string
		sentiment string
		want      int
	}{
		{leads.PriorityHigh, leads.SentimentPositive, 30},
		{leads.PriorityHigh, leads.SentimentNeutral, 20},
		{leads.PriorityMedium, leads.SentimentNegative, 0},
		{leads.PriorityLow, leads.SentimentNegative, -5},
		{"", leads.SentimentNegative, -10},
	}
	for _, tc := range cases {
		ai := &leads.AIClassification{Priority: tc.priority, Sentiment: tc.sentiment}
		if got := classificationBonus(ai); got != tc.want {
			t.Fatalf("classification %s/%s: expected %d, got %d", tc.priority, tc.sentiment, tc.want, got)
		}
	}
}

func TestComputeAutomaticScoreClamped(t *testing.T) {
	cfg := DefaultConfig("t1")
	cfg.MaxScore = 50
	cfg.Rules = []Rule{
		{
			Points: 100, Enabled: true,
			Conditions: []Condition{{Field: FieldSource, Operator: OperatorEquals, Equals: "phone"}},
		},
	}

	lead := leads.Lead{Source: leads.SourcePhone}
	if got := ComputeAutomaticScore(lead, cfg); got != 50 {
		t.Fatalf("expected clamp to 50, got %d", got)
	}

	// Unknown source (5) plus a hard negative rule drives the raw total
	// below zero; the floor holds.
	cfg = DefaultConfig("t1")
	cfg.Rules = []Rule{
		{
			Points: -40, Enabled: true,
			Conditions: []Condition{{Field: FieldStatus, Operator: OperatorEquals, Equals: "lost"}},
		},
	}
	lead = leads.Lead{Source: "unknown", Status: "lost"}
	if got := ComputeAutomaticScore(lead, cfg); got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
}

func TestValidateConfigRejectsUnsupportedFields(t *testing.T) {
	for _, field := range []ConditionField{"responseTime", "emailOpened", "linkClicked"} {
		cfg := DefaultConfig("t1")
		cfg.Rules = []Rule{
			{
				Points: 10, Enabled: true,
				Conditions: []Condition{{Field: field, Operator: OperatorExists}},
			},
		}
		if err := ValidateConfig(cfg); err == nil {
			t.Fatalf("expected validation error for field %q", field)
		}
	}
}

func TestValidateConfigWeights(t *testing.T) {
	cfg := DefaultConfig("t1")
	cfg.Weights = Weights{Automatic: 0.5, Manual: 0.3}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected error for weights not summing to 1.0")
	}

	cfg.Weights = Weights{Automatic: 0.6, Manual: 0.4}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("expected valid weights, got %v", err)
	}
}
