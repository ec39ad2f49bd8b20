package promotions

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, promo Promotion) error
	List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int64) ([]Promotion, error)
	Count(ctx context.Context, tenantID string, filter ListFilter) (int64, error)
	GetByID(ctx context.Context, tenantID, id string) (Promotion, error)
	UpdateStatus(ctx context.Context, tenantID, id, status string, now time.Time) (Promotion, error)
	// ListActiveLanding feeds the public landing page, newest first, across
	// all tenants.
	ListActiveLanding(ctx context.Context, limit int64) ([]Promotion, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, promo Promotion) error {
	_, err := r.col.InsertOne(ctx, promo)
	return err
}

func (r *MongoRepository) List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int64) ([]Promotion, error) {
	query := r.filterToBSON(tenantID, filter)
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Promotion, 0)
	for cursor.Next(ctx) {
		var promo Promotion
		if err := cursor.Decode(&promo); err != nil {
			return nil, err
		}
		items = append(items, promo)
	}
	return items, cursor.Err()
}

func (r *MongoRepository) Count(ctx context.Context, tenantID string, filter ListFilter) (int64, error) {
	return r.col.CountDocuments(ctx, r.filterToBSON(tenantID, filter))
}

func (r *MongoRepository) GetByID(ctx context.Context, tenantID, id string) (Promotion, error) {
	var promo Promotion
	if err := r.col.FindOne(ctx, bson.M{"_id": id, "tenantId": tenantID}).Decode(&promo); err != nil {
		return Promotion{}, err
	}
	return promo, nil
}

func (r *MongoRepository) UpdateStatus(ctx context.Context, tenantID, id, status string, now time.Time) (Promotion, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$set": bson.M{
			"status":    status,
			"updatedAt": now,
		},
	}

	var updated Promotion
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "tenantId": tenantID}, update, opts).Decode(&updated); err != nil {
		return Promotion{}, err
	}
	return updated, nil
}

func (r *MongoRepository) ListActiveLanding(ctx context.Context, limit int64) ([]Promotion, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.col.Find(ctx, bson.M{"status": StatusActive, "placement": PlacementLanding}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Promotion, 0)
	for cursor.Next(ctx) {
		var promo Promotion
		if err := cursor.Decode(&promo); err != nil {
			return nil, err
		}
		items = append(items, promo)
	}
	return items, cursor.Err()
}

func (r *MongoRepository) filterToBSON(tenantID string, filter ListFilter) bson.M {
	query := bson.M{"tenantId": tenantID}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Placement != "" {
		query["placement"] = filter.Placement
	}
	return query
}
