package main

import (
	"context"
	"log"
	"os"
	"time"

	"autodealers-backend/internal/auth"
	"autodealers-backend/internal/config"
	"autodealers-backend/internal/db"
	"autodealers-backend/internal/membership"
	"autodealers-backend/internal/models"
	"autodealers-backend/internal/promotions"
	"autodealers-backend/internal/scoring"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	plansRepo := membership.NewRepository(cols.Plans, cols.Memberships)
	for _, plan := range membership.DefaultPlans() {
		switch plan.Code {
		case membership.PlanStarter:
			plan.StripePriceID = cfg.StripePriceStarter
		case membership.PlanPro:
			plan.StripePriceID = cfg.StripePricePro
		case membership.PlanDealer:
			plan.StripePriceID = cfg.StripePriceDealer
		}
		if err := plansRepo.UpsertPlan(ctx, plan); err != nil {
			log.Fatalf("seed plan %s: %v", plan.Code, err)
		}
	}
	log.Println("plans seeded")

	slotCounter := promotions.NewMongoSlotCounter(cols.Counters, cfg.LandingPromotionCap)
	if err := slotCounter.EnsureCounter(ctx); err != nil {
		log.Fatalf("seed slot counter: %v", err)
	}
	log.Printf("landing slot counter ready (cap %d)", cfg.LandingPromotionCap)

	if err := seedAdmin(ctx, cols, cfg.Timezone); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	if os.Getenv("SEED_DEMO") == "true" {
		if err := seedDemoTenant(ctx, cols, cfg.Timezone); err != nil {
			log.Fatalf("seed demo tenant: %v", err)
		}
		log.Println("demo tenant seeded")
	}

	log.Println("seed completed")
}

func seedAdmin(ctx context.Context, cols *db.Collections, loc *time.Location) error {
	username := envOrDefault("ADMIN_USER", "admin")
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Println("seed admin: ADMIN_PASSWORD missing, skipping")
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().In(loc)
	update := bson.M{
		"$set": bson.M{
			"passwordHash": hash,
			"role":         models.RolePlatformAdmin,
			"active":       true,
			"updatedAt":    now,
		},
		"$setOnInsert": bson.M{
			"_id":       primitive.NewObjectID().Hex(),
			"username":  username,
			"createdAt": now,
		},
	}
	_, err = cols.Users.UpdateOne(ctx, bson.M{"username": username}, update, options.Update().SetUpsert(true))
	return err
}

// seedDemoTenant creates a dealership with a dealer login and a scoring
// config so the dashboard has something to show on first run.
func seedDemoTenant(ctx context.Context, cols *db.Collections, loc *time.Location) error {
	const tenantID = "demo-motors"
	now := time.Now().In(loc)

	password := envOrDefault("DEMO_PASSWORD", "demo-password")
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	userUpdate := bson.M{
		"$set": bson.M{
			"passwordHash": hash,
			"role":         models.RoleDealer,
			"tenantId":     tenantID,
			"email":        "dealer@demo-motors.example",
			"active":       true,
			"updatedAt":    now,
		},
		"$setOnInsert": bson.M{
			"_id":       primitive.NewObjectID().Hex(),
			"username":  "demo-dealer",
			"createdAt": now,
		},
	}
	if _, err := cols.Users.UpdateOne(ctx, bson.M{"username": "demo-dealer"}, userUpdate, options.Update().SetUpsert(true)); err != nil {
		return err
	}

	settingsRepo := scoring.NewSettingsRepository(cols.ScoringSettings)
	demoConfig := scoring.DefaultConfig(tenantID)
	demoConfig.Rules = []scoring.Rule{
		{
			Name:     "whatsapp inquiries",
			Priority: 1,
			Points:   10,
			Enabled:  true,
			Conditions: []scoring.Condition{
				{Field: scoring.FieldSource, Operator: scoring.OperatorEquals, Equals: "whatsapp"},
			},
		},
		{
			Name:     "engaged leads",
			Priority: 2,
			Points:   15,
			Enabled:  true,
			Conditions: []scoring.Condition{
				{Field: scoring.FieldInteractions, Operator: scoring.OperatorGreaterThan, MinCount: 3},
			},
		},
	}
	return settingsRepo.Upsert(ctx, demoConfig)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
