package membership

import "time"

const (
	PlanFree    = "free"
	PlanStarter = "starter"
	PlanPro     = "pro"
	PlanDealer  = "dealer"

	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// Limits are per-tenant numeric quotas. A nil limit means unlimited; zero is
// a real limit of zero.
type Limits struct {
	MaxSellers          *int64 `bson:"maxSellers" json:"maxSellers"`
	MaxInventory        *int64 `bson:"maxInventory" json:"maxInventory"`
	MaxPromotions       *int64 `bson:"maxPromotions" json:"maxPromotions"`
	MaxAPICallsPerMonth *int64 `bson:"maxApiCallsPerMonth" json:"maxApiCallsPerMonth"`
}

type Features struct {
	FreePromotionsOnLanding bool `bson:"freePromotionsOnLanding" json:"freePromotionsOnLanding"`
	APIAccess               bool `bson:"apiAccess" json:"apiAccess"`
	WhiteLabel              bool `bson:"whiteLabel" json:"whiteLabel"`
	AILeadScoring           bool `bson:"aiLeadScoring" json:"aiLeadScoring"`
	AdvancedReports         bool `bson:"advancedReports" json:"advancedReports"`
	PrioritySupport         bool `bson:"prioritySupport" json:"prioritySupport"`
}

type Plan struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	Code          string    `bson:"code" json:"code"`
	Name          string    `bson:"name" json:"name"`
	PriceMonthly  int64     `bson:"priceMonthly" json:"priceMonthly"`
	Currency      string    `bson:"currency" json:"currency"`
	StripePriceID string    `bson:"stripePriceId,omitempty" json:"-"`
	Limits        Limits    `bson:"limits" json:"limits"`
	Features      Features  `bson:"features" json:"features"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
}

type Membership struct {
	ID                   string    `bson:"_id,omitempty" json:"id"`
	TenantID             string    `bson:"tenantId" json:"tenantId"`
	PlanCode             string    `bson:"planCode" json:"planCode"`
	Status               string    `bson:"status" json:"status"`
	StripeCustomerID     string    `bson:"stripeCustomerId,omitempty" json:"-"`
	StripeSubscriptionID string    `bson:"stripeSubscriptionId,omitempty" json:"-"`
	CurrentPeriodEnd     time.Time `bson:"currentPeriodEnd,omitempty" json:"currentPeriodEnd,omitempty"`
	CreatedAt            time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time `bson:"updatedAt" json:"updatedAt"`
}

// DefaultMembership is assumed for tenants that never went through checkout.
func DefaultMembership(tenantID string) Membership {
	return Membership{
		TenantID: tenantID,
		PlanCode: PlanFree,
		Status:   StatusActive,
	}
}

func intPtr(v int64) *int64 { return &v }

// DefaultPlans is the seeded catalog. Dealer tier limits are nil: unlimited.
func DefaultPlans() []Plan {
	return []Plan{
		{
			Code:         PlanFree,
			Name:         "Free",
			PriceMonthly: 0,
			Currency:     "usd",
			Limits: Limits{
				MaxSellers:          intPtr(1),
				MaxInventory:        intPtr(10),
				MaxPromotions:       intPtr(1),
				MaxAPICallsPerMonth: intPtr(0),
			},
			Features: Features{},
		},
		{
			Code:         PlanStarter,
			Name:         "Starter",
			PriceMonthly: 2900,
			Currency:     "usd",
			Limits: Limits{
				MaxSellers:          intPtr(3),
				MaxInventory:        intPtr(50),
				MaxPromotions:       intPtr(5),
				MaxAPICallsPerMonth: intPtr(1000),
			},
			Features: Features{
				FreePromotionsOnLanding: true,
			},
		},
		{
			Code:         PlanPro,
			Name:         "Professional",
			PriceMonthly: 7900,
			Currency:     "usd",
			Limits: Limits{
				MaxSellers:          intPtr(10),
				MaxInventory:        intPtr(250),
				MaxPromotions:       intPtr(20),
				MaxAPICallsPerMonth: intPtr(10000),
			},
			Features: Features{
				FreePromotionsOnLanding: true,
				APIAccess:               true,
				AILeadScoring:           true,
				AdvancedReports:         true,
			},
		},
		{
			Code:         PlanDealer,
			Name:         "Dealer Unlimited",
			PriceMonthly: 19900,
			Currency:     "usd",
			Limits:       Limits{},
			Features: Features{
				FreePromotionsOnLanding: true,
				APIAccess:               true,
				WhiteLabel:              true,
				AILeadScoring:           true,
				AdvancedReports:         true,
				PrioritySupport:         true,
			},
		},
	}
}
