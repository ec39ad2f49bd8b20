package leads

import "time"

const (
	StatusNew          = "new"
	StatusContacted    = "contacted"
	StatusQualified    = "qualified"
	StatusPreQualified = "pre_qualified"
	StatusAppointment  = "appointment"
	StatusTestDrive    = "test_drive"
	StatusNegotiation  = "negotiation"
	StatusClosed       = "closed"
	StatusLost         = "lost"

	SourceWeb       = "web"
	SourceWhatsApp  = "whatsapp"
	SourceFacebook  = "facebook"
	SourceInstagram = "instagram"
	SourceEmail     = "email"
	SourcePhone     = "phone"
	SourceSMS       = "sms"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"

	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"

	ScoreTypeAutomatic = "automatic"
	ScoreTypeManual    = "manual"
)

var validStatuses = map[string]struct{}{
	StatusNew:          {},
	StatusContacted:    {},
	StatusQualified:    {},
	StatusPreQualified: {},
	StatusAppointment:  {},
	StatusTestDrive:    {},
	StatusNegotiation:  {},
	StatusClosed:       {},
	StatusLost:         {},
}

var validSources = map[string]struct{}{
	SourceWeb:       {},
	SourceWhatsApp:  {},
	SourceFacebook:  {},
	SourceInstagram: {},
	SourceEmail:     {},
	SourcePhone:     {},
	SourceSMS:       {},
}

func IsValidStatus(value string) bool {
	_, ok := validStatuses[value]
	return ok
}

func IsValidSource(value string) bool {
	_, ok := validSources[value]
	return ok
}

type Interaction struct {
	Type string    `bson:"type" json:"type"`
	Note string    `bson:"note,omitempty" json:"note,omitempty"`
	By   string    `bson:"by,omitempty" json:"by,omitempty"`
	At   time.Time `bson:"at" json:"at"`
}

type AIClassification struct {
	Priority     string    `bson:"priority" json:"priority"`
	Sentiment    string    `bson:"sentiment" json:"sentiment"`
	Summary      string    `bson:"summary,omitempty" json:"summary,omitempty"`
	ClassifiedAt time.Time `bson:"classifiedAt" json:"classifiedAt"`
}

type ScoreEntry struct {
	Score     int       `bson:"score" json:"score"`
	Type      string    `bson:"type" json:"type"`
	Reason    string    `bson:"reason,omitempty" json:"reason,omitempty"`
	UpdatedBy string    `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Score is owned by exactly one lead and only written through the score
// combiner. Manual is nil until a human override is recorded.
type Score struct {
	Automatic   int          `bson:"automatic" json:"automatic"`
	Manual      *int         `bson:"manual,omitempty" json:"manual,omitempty"`
	Combined    int          `bson:"combined" json:"combined"`
	History     []ScoreEntry `bson:"history" json:"history"`
	LastUpdated time.Time    `bson:"lastUpdated" json:"lastUpdated"`
}

type Lead struct {
	ID           string            `bson:"_id,omitempty" json:"id"`
	TenantID     string            `bson:"tenantId" json:"tenantId"`
	Name         string            `bson:"name" json:"name"`
	Email        string            `bson:"email,omitempty" json:"email,omitempty"`
	Phone        string            `bson:"phone,omitempty" json:"phone,omitempty"`
	Status       string            `bson:"status" json:"status"`
	Source       string            `bson:"source" json:"source"`
	VehicleID    string            `bson:"vehicleId,omitempty" json:"vehicleId,omitempty"`
	AssignedTo   string            `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	Documents    []string          `bson:"documents,omitempty" json:"documents,omitempty"`
	Interactions []Interaction     `bson:"interactions" json:"interactions"`
	AI           *AIClassification `bson:"ai,omitempty" json:"ai,omitempty"`
	Score        *Score            `bson:"score,omitempty" json:"score,omitempty"`
	// ScoreVersion guards score read-modify-write cycles against concurrent
	// scoring events on the same lead.
	ScoreVersion int64     `bson:"scoreVersion" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

type CreateRequest struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,phone"`
	Source    string `json:"source" validate:"omitempty,oneof=web whatsapp facebook instagram email phone sms"`
	VehicleID string `json:"vehicleId"`
	Note      string `json:"note"`
}

type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted qualified pre_qualified appointment test_drive negotiation closed lost"`
}

type InteractionRequest struct {
	Type string `json:"type" validate:"required,oneof=note call email whatsapp sms visit document"`
	Note string `json:"note"`
}

type ListFilter struct {
	Status   string
	Source   string
	Assigned string
}
