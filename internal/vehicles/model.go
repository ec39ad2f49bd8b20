package vehicles

import "time"

const (
	StatusAvailable = "available"
	StatusReserved  = "reserved"
	StatusSold      = "sold"
)

func IsValidStatus(value string) bool {
	switch value {
	case StatusAvailable, StatusReserved, StatusSold:
		return true
	}
	return false
}

type Vehicle struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	TenantID     string    `bson:"tenantId" json:"tenantId"`
	Make         string    `bson:"make" json:"make"`
	Model        string    `bson:"model" json:"model"`
	Year         int       `bson:"year" json:"year"`
	Slug         string    `bson:"slug" json:"slug"`
	PriceCents   int64     `bson:"priceCents" json:"priceCents"`
	Currency     string    `bson:"currency" json:"currency"`
	Mileage      int64     `bson:"mileage,omitempty" json:"mileage,omitempty"`
	Transmission string    `bson:"transmission,omitempty" json:"transmission,omitempty"`
	Fuel         string    `bson:"fuel,omitempty" json:"fuel,omitempty"`
	Status       string    `bson:"status" json:"status"`
	Photos       []string  `bson:"photos,omitempty" json:"photos,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

type CreateRequest struct {
	Make         string   `json:"make" validate:"required"`
	Model        string   `json:"model" validate:"required"`
	Year         int      `json:"year" validate:"required,modelyear"`
	PriceCents   int64    `json:"priceCents" validate:"required,gt=0"`
	Currency     string   `json:"currency" validate:"omitempty,oneof=DOP USD"`
	Mileage      int64    `json:"mileage" validate:"omitempty,gte=0"`
	Transmission string   `json:"transmission" validate:"omitempty,oneof=manual automatic"`
	Fuel         string   `json:"fuel" validate:"omitempty,oneof=gasoline diesel hybrid electric"`
	Photos       []string `json:"photos" validate:"omitempty,dive,url"`
}

type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=available reserved sold"`
}

type ListFilter struct {
	Status  string
	Make    string
	MaxYear int
	MinYear int
}
