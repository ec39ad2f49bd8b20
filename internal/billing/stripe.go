// Package billing connects tenant memberships to Stripe subscriptions.
// Checkout upgrades a tenant's plan; webhook events keep the membership
// document in sync with the subscription lifecycle.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"autodealers-backend/internal/membership"

	"github.com/stripe/stripe-go/v76"
	billingportalsession "github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/webhook"
)

var (
	ErrUnknownPlan   = errors.New("unknown plan")
	ErrFreePlan      = errors.New("free plan needs no checkout")
	ErrNoSubscriber  = errors.New("tenant has no billing account")
	ErrNotConfigured = errors.New("billing is not configured")
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	PriceStarter  string
	PricePro      string
	PriceDealer   string
	SuccessURL    string
	CancelURL     string
}

func (c Config) Enabled() bool { return c.SecretKey != "" }

// Invalidator drops the cached entitlement snapshot after a plan change.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID string)
}

type Service struct {
	memberships membership.Repository
	checker     Invalidator
	cfg         Config
	log         *slog.Logger
}

func NewService(memberships membership.Repository, checker Invalidator, cfg Config, log *slog.Logger) *Service {
	if cfg.Enabled() {
		stripe.Key = cfg.SecretKey
	}
	return &Service{
		memberships: memberships,
		checker:     checker,
		cfg:         cfg,
		log:         log,
	}
}

type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expiresAt"`
}

type PortalResponse struct {
	URL string `json:"url"`
}

// CreateCheckoutSession starts a subscription checkout for the given plan.
// The tenant's Stripe customer is created lazily and remembered on the
// membership document so later checkouts and the portal reuse it.
func (s *Service) CreateCheckoutSession(ctx context.Context, tenantID, planCode, email string) (CheckoutResponse, error) {
	if !s.cfg.Enabled() {
		return CheckoutResponse{}, ErrNotConfigured
	}

	priceID, err := s.priceForPlan(planCode)
	if err != nil {
		return CheckoutResponse{}, err
	}

	m, found, err := s.memberships.ByTenant(ctx, tenantID)
	if err != nil {
		return CheckoutResponse{}, err
	}
	if !found {
		m = membership.DefaultMembership(tenantID)
	}

	if m.StripeCustomerID == "" {
		params := &stripe.CustomerParams{
			Email: stripe.String(email),
			Metadata: map[string]string{
				"tenant_id": tenantID,
			},
		}
		cust, err := customer.New(params)
		if err != nil {
			return CheckoutResponse{}, fmt.Errorf("create stripe customer: %w", err)
		}
		m.StripeCustomerID = cust.ID
		if err := s.memberships.Upsert(ctx, m); err != nil {
			return CheckoutResponse{}, fmt.Errorf("save stripe customer id: %w", err)
		}
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(m.StripeCustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
		Metadata: map[string]string{
			"tenant_id": tenantID,
			"plan_code": planCode,
		},
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return CheckoutResponse{}, fmt.Errorf("create checkout session: %w", err)
	}

	s.log.Info("checkout session created",
		slog.String("tenant_id", tenantID),
		slog.String("plan", planCode),
		slog.String("session_id", sess.ID),
	)
	return CheckoutResponse{
		SessionID: sess.ID,
		URL:       sess.URL,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// CreatePortalSession opens the Stripe customer portal so a dealer can manage
// payment methods and cancellation without touching our API.
func (s *Service) CreatePortalSession(ctx context.Context, tenantID, returnURL string) (PortalResponse, error) {
	if !s.cfg.Enabled() {
		return PortalResponse{}, ErrNotConfigured
	}

	m, found, err := s.memberships.ByTenant(ctx, tenantID)
	if err != nil {
		return PortalResponse{}, err
	}
	if !found || m.StripeCustomerID == "" {
		return PortalResponse{}, ErrNoSubscriber
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(m.StripeCustomerID),
		ReturnURL: stripe.String(returnURL),
	}
	sess, err := billingportalsession.New(params)
	if err != nil {
		return PortalResponse{}, fmt.Errorf("create portal session: %w", err)
	}
	return PortalResponse{URL: sess.URL}, nil
}

// HandleWebhook verifies and applies a Stripe event. Unhandled event types
// are acknowledged so Stripe stops retrying them.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	s.log.Info("stripe webhook received", slog.String("type", string(event.Type)))

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_failed":
		return s.handlePaymentFailed(ctx, event)
	default:
		s.log.Info("stripe webhook ignored", slog.String("type", string(event.Type)))
	}
	return nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}

	tenantID, ok := sess.Metadata["tenant_id"]
	if !ok || tenantID == "" {
		return errors.New("checkout session missing tenant_id metadata")
	}
	planCode := sess.Metadata["plan_code"]
	if _, found, err := s.memberships.PlanByCode(ctx, planCode); err != nil {
		return err
	} else if !found {
		return fmt.Errorf("%w: %q", ErrUnknownPlan, planCode)
	}

	m, found, err := s.memberships.ByTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if !found {
		m = membership.DefaultMembership(tenantID)
	}

	m.PlanCode = planCode
	m.Status = membership.StatusActive
	if sess.Customer != nil {
		m.StripeCustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		m.StripeSubscriptionID = sess.Subscription.ID
	}
	if err := s.memberships.Upsert(ctx, m); err != nil {
		return err
	}
	s.checker.Invalidate(ctx, tenantID)

	s.log.Info("membership upgraded",
		slog.String("tenant_id", tenantID),
		slog.String("plan", planCode),
	)
	return nil
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}

	m, found, err := s.memberships.BySubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	if !found {
		// Subscription events can arrive before checkout.session.completed;
		// the completed handler will write the full record.
		s.log.Warn("subscription update for unknown membership", slog.String("subscription_id", sub.ID))
		return nil
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		m.Status = membership.StatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		m.Status = membership.StatusPastDue
	case stripe.SubscriptionStatusCanceled:
		m.Status = membership.StatusCanceled
	}
	if sub.CurrentPeriodEnd > 0 {
		m.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if err := s.memberships.Upsert(ctx, m); err != nil {
		return err
	}
	s.checker.Invalidate(ctx, m.TenantID)
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}

	m, found, err := s.memberships.BySubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	// Canceled tenants fall back to the free tier rather than losing access
	// to the dashboard entirely.
	m.PlanCode = membership.PlanFree
	m.Status = membership.StatusCanceled
	m.StripeSubscriptionID = ""
	if err := s.memberships.Upsert(ctx, m); err != nil {
		return err
	}
	s.checker.Invalidate(ctx, m.TenantID)

	s.log.Info("membership downgraded to free", slog.String("tenant_id", m.TenantID))
	return nil
}

func (s *Service) handlePaymentFailed(ctx context.Context, event stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return fmt.Errorf("unmarshal invoice: %w", err)
	}
	if inv.Subscription == nil {
		return nil
	}

	m, found, err := s.memberships.BySubscription(ctx, inv.Subscription.ID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	m.Status = membership.StatusPastDue
	if err := s.memberships.Upsert(ctx, m); err != nil {
		return err
	}
	s.checker.Invalidate(ctx, m.TenantID)

	s.log.Warn("membership payment failed", slog.String("tenant_id", m.TenantID))
	return nil
}

func (s *Service) priceForPlan(planCode string) (string, error) {
	switch planCode {
	case membership.PlanFree:
		return "", ErrFreePlan
	case membership.PlanStarter:
		return s.cfg.PriceStarter, nil
	case membership.PlanPro:
		return s.cfg.PricePro, nil
	case membership.PlanDealer:
		return s.cfg.PriceDealer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlan, planCode)
}
