package models

import "time"

const (
	RolePlatformAdmin = "platform_admin"
	RoleDealer        = "dealer"
	RoleSeller        = "seller"
	RoleAdvertiser    = "advertiser"
)

func IsValidRole(role string) bool {
	switch role {
	case RolePlatformAdmin, RoleDealer, RoleSeller, RoleAdvertiser:
		return true
	}
	return false
}

type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	TenantID     string    `bson:"tenantId,omitempty" json:"tenantId,omitempty"`
	Username     string    `bson:"username" json:"username"`
	Email        string    `bson:"email,omitempty" json:"email,omitempty"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	Role         string    `bson:"role" json:"role"`
	Active       bool      `bson:"active" json:"active"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}
