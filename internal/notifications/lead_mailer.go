package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"autodealers-backend/internal/leads"
	"autodealers-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// LeadMailer emails the tenant's dealer account about lead activity. A nil
// underlying Brevo client turns every send into a no-op.
type LeadMailer struct {
	client *BrevoClient
	users  *mongo.Collection
	log    *slog.Logger
}

func NewLeadMailer(client *BrevoClient, users *mongo.Collection, log *slog.Logger) *LeadMailer {
	return &LeadMailer{
		client: client,
		users:  users,
		log:    log,
	}
}

func (m *LeadMailer) NotifyNewLead(ctx context.Context, lead leads.Lead) error {
	if m.client == nil {
		return nil
	}
	html, err := buildNewLeadHTML(lead)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Nuevo lead: %s", lead.Name)
	return m.sendToDealer(ctx, lead.TenantID, subject, html)
}

func (m *LeadMailer) NotifyHotLead(ctx context.Context, lead leads.Lead, score int) error {
	if m.client == nil {
		return nil
	}
	html, err := buildHotLeadHTML(lead, score)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Lead caliente (%d): %s", score, lead.Name)
	return m.sendToDealer(ctx, lead.TenantID, subject, html)
}

func (m *LeadMailer) sendToDealer(ctx context.Context, tenantID, subject, html string) error {
	email, name, err := m.dealerContact(ctx, tenantID)
	if err != nil {
		return err
	}
	messageID, err := m.client.SendHTML(ctx, email, name, subject, html)
	if err != nil {
		return err
	}
	m.log.Info("lead email sent",
		slog.String("tenant_id", tenantID),
		slog.String("message_id", messageID),
	)
	return nil
}

func (m *LeadMailer) dealerContact(ctx context.Context, tenantID string) (string, string, error) {
	var user models.User
	filter := bson.M{
		"tenantId": tenantID,
		"role":     models.RoleDealer,
		"active":   true,
	}
	if err := m.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", "", fmt.Errorf("no active dealer account for tenant %s", tenantID)
		}
		return "", "", err
	}
	if strings.TrimSpace(user.Email) == "" {
		return "", "", fmt.Errorf("dealer account for tenant %s has no email", tenantID)
	}
	return user.Email, user.Username, nil
}
