package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autodealers-backend/internal/cache"
)

// Action is a gated operation a tenant may ask the platform to perform.
type Action string

const (
	ActionPublishFreePromotion Action = "publish_free_promotion"
	ActionCreatePromotion      Action = "create_promotion"
	ActionAddSeller            Action = "add_seller"
	ActionAddVehicle           Action = "add_vehicle"
	ActionUseAPI               Action = "api_access"
	ActionWhiteLabel           Action = "white_label"
	ActionAIScoring            Action = "ai_lead_scoring"
)

var ErrUnknownAction = errors.New("unknown action")

// Decision is the result of an entitlement check. A denial is a normal
// negative result, not an error; infrastructure failures surface as errors.
type Decision struct {
	Allowed        bool   `json:"allowed"`
	Reason         string `json:"reason,omitempty"`
	Limit          *int64 `json:"limit,omitempty"`
	Current        *int64 `json:"current,omitempty"`
	Remaining      *int64 `json:"remaining,omitempty"`
	LimitReached   bool   `json:"limitReached,omitempty"`
	AvailableSlots *int64 `json:"availableSlots,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func denyFeature(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

func quotaDecision(limit *int64, current int64) Decision {
	if limit == nil {
		return allow()
	}
	remaining := *limit - current
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   current < *limit,
		Limit:     limit,
		Current:   &current,
		Remaining: &remaining,
	}
	if !d.Allowed {
		d.Reason = "plan limit reached"
	}
	return d
}

// Checker resolves a tenant's plan and answers entitlement questions. It is
// stateless between calls; membership and plan documents are re-read (through
// a short-lived cache) per invocation.
type Checker struct {
	repo  Repository
	usage UsageRepository
	cache cache.Cache
	ttl   time.Duration

	// landingCap is the platform-wide ceiling on simultaneously active
	// landing promotions, across all tenants.
	landingCap int64
}

func NewChecker(repo Repository, usage UsageRepository, c cache.Cache, ttl time.Duration, landingCap int64) *Checker {
	if c == nil {
		c = cache.NewNoop()
	}
	return &Checker{
		repo:       repo,
		usage:      usage,
		cache:      c,
		ttl:        ttl,
		landingCap: landingCap,
	}
}

// Resolve returns the tenant's membership and the plan it references,
// substituting documented defaults when either is absent.
func (c *Checker) Resolve(ctx context.Context, tenantID string) (Membership, Plan, error) {
	cacheKey := "membership:" + tenantID

	type cached struct {
		Membership Membership `json:"membership"`
		Plan       Plan       `json:"plan"`
	}
	var hit cached
	if ok, _ := cache.GetJSON(ctx, c.cache, cacheKey, &hit); ok {
		return hit.Membership, hit.Plan, nil
	}

	m, ok, err := c.repo.ByTenant(ctx, tenantID)
	if err != nil {
		return Membership{}, Plan{}, fmt.Errorf("membership lookup: %w", err)
	}
	if !ok {
		m = DefaultMembership(tenantID)
	}
	if m.Status != StatusActive {
		// Lapsed subscriptions degrade to the free tier until payment clears.
		m.PlanCode = PlanFree
	}

	plan, ok, err := c.repo.PlanByCode(ctx, m.PlanCode)
	if err != nil {
		return Membership{}, Plan{}, fmt.Errorf("plan lookup: %w", err)
	}
	if !ok {
		for _, p := range DefaultPlans() {
			if p.Code == m.PlanCode {
				plan = p
				break
			}
		}
		if plan.Code == "" {
			plan = DefaultPlans()[0]
		}
	}

	_ = cache.SetJSON(ctx, c.cache, cacheKey, cached{Membership: m, Plan: plan}, c.ttl)
	return m, plan, nil
}

// Invalidate drops the cached membership after billing updates it.
func (c *Checker) Invalidate(ctx context.Context, tenantID string) {
	_ = c.cache.Delete(ctx, "membership:"+tenantID)
}

// CanExecute answers whether the tenant's current plan permits the action.
// Platform admin bypass is the calling middleware's responsibility, not done
// here.
func (c *Checker) CanExecute(ctx context.Context, tenantID string, action Action) (Decision, error) {
	_, plan, err := c.Resolve(ctx, tenantID)
	if err != nil {
		return Decision{}, err
	}

	switch action {
	case ActionPublishFreePromotion:
		if !plan.Features.FreePromotionsOnLanding {
			return denyFeature("current membership does not include free landing promotions"), nil
		}
		return c.landingCapDecision(ctx)

	case ActionCreatePromotion:
		current, err := c.usage.CountActivePromotions(ctx, tenantID)
		if err != nil {
			return Decision{}, fmt.Errorf("promotion usage: %w", err)
		}
		return quotaDecision(plan.Limits.MaxPromotions, current), nil

	case ActionAddSeller:
		current, err := c.usage.CountSellers(ctx, tenantID)
		if err != nil {
			return Decision{}, fmt.Errorf("seller usage: %w", err)
		}
		return quotaDecision(plan.Limits.MaxSellers, current), nil

	case ActionAddVehicle:
		current, err := c.usage.CountVehicles(ctx, tenantID)
		if err != nil {
			return Decision{}, fmt.Errorf("inventory usage: %w", err)
		}
		return quotaDecision(plan.Limits.MaxInventory, current), nil

	case ActionUseAPI:
		if !plan.Features.APIAccess {
			return denyFeature("current membership does not include API access"), nil
		}
		return allow(), nil

	case ActionWhiteLabel:
		if !plan.Features.WhiteLabel {
			return denyFeature("current membership does not include white label"), nil
		}
		return allow(), nil

	case ActionAIScoring:
		if !plan.Features.AILeadScoring {
			return denyFeature("current membership does not include AI lead scoring"), nil
		}
		return allow(), nil
	}

	return Decision{}, fmt.Errorf("%w: %s", ErrUnknownAction, action)
}

// landingCapDecision is advisory: the admission counter in the promotions
// service is what actually closes the race at creation time.
func (c *Checker) landingCapDecision(ctx context.Context) (Decision, error) {
	active, err := c.usage.CountActiveLandingPromotions(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("landing usage: %w", err)
	}

	available := c.landingCap - active
	if available < 0 {
		available = 0
	}
	d := Decision{
		Allowed:        active < c.landingCap,
		AvailableSlots: &available,
	}
	if !d.Allowed {
		d.Reason = "no landing promotion slots available"
		d.LimitReached = true
	}
	return d, nil
}

// ParseAction maps an HTTP path segment to an Action.
func ParseAction(raw string) (Action, bool) {
	switch Action(raw) {
	case ActionPublishFreePromotion, ActionCreatePromotion, ActionAddSeller,
		ActionAddVehicle, ActionUseAPI, ActionWhiteLabel, ActionAIScoring:
		return Action(raw), true
	}
	return "", false
}
