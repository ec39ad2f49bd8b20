package membership

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	PlanByCode(ctx context.Context, code string) (Plan, bool, error)
	ListPlans(ctx context.Context) ([]Plan, error)
	UpsertPlan(ctx context.Context, plan Plan) error
	ByTenant(ctx context.Context, tenantID string) (Membership, bool, error)
	BySubscription(ctx context.Context, subscriptionID string) (Membership, bool, error)
	Upsert(ctx context.Context, m Membership) error
}

type MongoRepository struct {
	plans       *mongo.Collection
	memberships *mongo.Collection
}

func NewRepository(plans, memberships *mongo.Collection) *MongoRepository {
	return &MongoRepository{plans: plans, memberships: memberships}
}

func (r *MongoRepository) PlanByCode(ctx context.Context, code string) (Plan, bool, error) {
	var plan Plan
	err := r.plans.FindOne(ctx, bson.M{"code": code}).Decode(&plan)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Plan{}, false, nil
	}
	if err != nil {
		return Plan{}, false, err
	}
	return plan, true, nil
}

func (r *MongoRepository) ListPlans(ctx context.Context) ([]Plan, error) {
	cursor, err := r.plans.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "priceMonthly", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Plan, 0)
	for cursor.Next(ctx) {
		var plan Plan
		if err := cursor.Decode(&plan); err != nil {
			return nil, err
		}
		items = append(items, plan)
	}
	return items, cursor.Err()
}

func (r *MongoRepository) UpsertPlan(ctx context.Context, plan Plan) error {
	update := bson.M{
		"$set": bson.M{
			"name":          plan.Name,
			"priceMonthly":  plan.PriceMonthly,
			"currency":      plan.Currency,
			"stripePriceId": plan.StripePriceID,
			"limits":        plan.Limits,
			"features":      plan.Features,
		},
		"$setOnInsert": bson.M{
			"code":      plan.Code,
			"createdAt": time.Now(),
		},
	}
	_, err := r.plans.UpdateOne(ctx, bson.M{"code": plan.Code}, update, options.Update().SetUpsert(true))
	return err
}

func (r *MongoRepository) ByTenant(ctx context.Context, tenantID string) (Membership, bool, error) {
	var m Membership
	err := r.memberships.FindOne(ctx, bson.M{"tenantId": tenantID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Membership{}, false, nil
	}
	if err != nil {
		return Membership{}, false, err
	}
	return m, true, nil
}

func (r *MongoRepository) BySubscription(ctx context.Context, subscriptionID string) (Membership, bool, error) {
	var m Membership
	err := r.memberships.FindOne(ctx, bson.M{"stripeSubscriptionId": subscriptionID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Membership{}, false, nil
	}
	if err != nil {
		return Membership{}, false, err
	}
	return m, true, nil
}

func (r *MongoRepository) Upsert(ctx context.Context, m Membership) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"planCode":             m.PlanCode,
			"status":               m.Status,
			"stripeCustomerId":     m.StripeCustomerID,
			"stripeSubscriptionId": m.StripeSubscriptionID,
			"currentPeriodEnd":     m.CurrentPeriodEnd,
			"updatedAt":            now,
		},
		"$setOnInsert": bson.M{
			"tenantId":  m.TenantID,
			"createdAt": now,
		},
	}
	_, err := r.memberships.UpdateOne(ctx, bson.M{"tenantId": m.TenantID}, update, options.Update().SetUpsert(true))
	return err
}

// UsageRepository counts what a tenant currently consumes against its limits.
type UsageRepository interface {
	CountSellers(ctx context.Context, tenantID string) (int64, error)
	CountVehicles(ctx context.Context, tenantID string) (int64, error)
	CountActivePromotions(ctx context.Context, tenantID string) (int64, error)
	// CountActiveLandingPromotions sums active landing promotions across all
	// tenants, paid and free alike.
	CountActiveLandingPromotions(ctx context.Context) (int64, error)
}

type MongoUsageRepository struct {
	users      *mongo.Collection
	vehicles   *mongo.Collection
	promotions *mongo.Collection
}

func NewUsageRepository(users, vehicles, promotions *mongo.Collection) *MongoUsageRepository {
	return &MongoUsageRepository{users: users, vehicles: vehicles, promotions: promotions}
}

func (r *MongoUsageRepository) CountSellers(ctx context.Context, tenantID string) (int64, error) {
	return r.users.CountDocuments(ctx, bson.M{"tenantId": tenantID, "role": "seller", "active": true})
}

func (r *MongoUsageRepository) CountVehicles(ctx context.Context, tenantID string) (int64, error) {
	return r.vehicles.CountDocuments(ctx, bson.M{"tenantId": tenantID, "status": bson.M{"$ne": "sold"}})
}

func (r *MongoUsageRepository) CountActivePromotions(ctx context.Context, tenantID string) (int64, error) {
	return r.promotions.CountDocuments(ctx, bson.M{"tenantId": tenantID, "status": "active"})
}

func (r *MongoUsageRepository) CountActiveLandingPromotions(ctx context.Context) (int64, error) {
	return r.promotions.CountDocuments(ctx, bson.M{"status": "active", "placement": "landing"})
}
