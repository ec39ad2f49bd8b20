package promotions

import "time"

const (
	KindFree = "free"
	KindPaid = "paid"

	PlacementLanding = "landing"
	PlacementSearch  = "search"

	StatusActive  = "active"
	StatusPaused  = "paused"
	StatusExpired = "expired"
)

func IsValidStatus(value string) bool {
	switch value {
	case StatusActive, StatusPaused, StatusExpired:
		return true
	}
	return false
}

type Promotion struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	TenantID    string    `bson:"tenantId" json:"tenantId"`
	Title       string    `bson:"title" json:"title"`
	Slug        string    `bson:"slug" json:"slug"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	VehicleID   string    `bson:"vehicleId,omitempty" json:"vehicleId,omitempty"`
	Kind        string    `bson:"kind" json:"kind"`
	Placement   string    `bson:"placement" json:"placement"`
	Status      string    `bson:"status" json:"status"`
	StartsAt    time.Time `bson:"startsAt" json:"startsAt"`
	EndsAt      time.Time `bson:"endsAt,omitempty" json:"endsAt,omitempty"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

type CreateRequest struct {
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description"`
	VehicleID    string `json:"vehicleId"`
	Kind         string `json:"kind" validate:"required,oneof=free paid"`
	Placement    string `json:"placement" validate:"required,oneof=landing search"`
	DurationDays int    `json:"durationDays" validate:"omitempty,gt=0,lte=90"`
}

type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=active paused expired"`
}

type ListFilter struct {
	Status    string
	Placement string
}
