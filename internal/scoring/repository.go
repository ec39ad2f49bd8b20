package scoring

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SettingsRepository interface {
	// Get returns the tenant's config, or ok=false when the tenant never
	// saved one.
	Get(ctx context.Context, tenantID string) (Config, bool, error)
	Upsert(ctx context.Context, cfg Config) error
}

type MongoSettingsRepository struct {
	col *mongo.Collection
}

func NewSettingsRepository(col *mongo.Collection) *MongoSettingsRepository {
	return &MongoSettingsRepository{col: col}
}

func (r *MongoSettingsRepository) Get(ctx context.Context, tenantID string) (Config, bool, error) {
	var cfg Config
	err := r.col.FindOne(ctx, bson.M{"tenantId": tenantID}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Config{}, false, nil
	}
	if err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}

func (r *MongoSettingsRepository) Upsert(ctx context.Context, cfg Config) error {
	cfg.UpdatedAt = time.Now()
	update := bson.M{
		"$set": bson.M{
			"enabled":        cfg.Enabled,
			"autoCalculate":  cfg.AutoCalculate,
			"manualOverride": cfg.ManualOverride,
			"maxScore":       cfg.MaxScore,
			"rules":          cfg.Rules,
			"weights":        cfg.Weights,
			"updatedAt":      cfg.UpdatedAt,
		},
		"$setOnInsert": bson.M{"tenantId": cfg.TenantID},
	}
	_, err := r.col.UpdateOne(ctx, bson.M{"tenantId": cfg.TenantID}, update, options.Update().SetUpsert(true))
	return err
}
