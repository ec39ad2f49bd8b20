package vehicles

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, vehicle Vehicle) error
	List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int64) ([]Vehicle, error)
	Count(ctx context.Context, tenantID string, filter ListFilter) (int64, error)
	GetByID(ctx context.Context, tenantID, id string) (Vehicle, error)
	GetBySlug(ctx context.Context, tenantID, slug string) (Vehicle, error)
	UpdateStatus(ctx context.Context, tenantID, id, status string, now time.Time) (Vehicle, error)
	Delete(ctx context.Context, tenantID, id string) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, vehicle Vehicle) error {
	_, err := r.col.InsertOne(ctx, vehicle)
	return err
}

func (r *MongoRepository) List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int64) ([]Vehicle, error) {
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

	items := make([]Vehicle, 0)
	for cursor.Next(ctx) {
		var vehicle Vehicle
		if err := cursor.Decode(&vehicle); err != nil {
			return nil, err
		}
		items = append(items, vehicle)
	}
	return items, cursor.Err()
}

func (r *MongoRepository) Count(ctx context.Context, tenantID string, filter ListFilter) (int64, error) {
	return r.col.CountDocuments(ctx, r.filterToBSON(tenantID, filter))
}

func (r *MongoRepository) GetByID(ctx context.Context, tenantID, id string) (Vehicle, error) {
	var vehicle Vehicle
	if err := r.col.FindOne(ctx, bson.M{"_id": id, "tenantId": tenantID}).Decode(&vehicle); err != nil {
		return Vehicle{}, err
	}
	return vehicle, nil
}

func (r *MongoRepository) GetBySlug(ctx context.Context, tenantID, slug string) (Vehicle, error) {
	var vehicle Vehicle
	if err := r.col.FindOne(ctx, bson.M{"slug": slug, "tenantId": tenantID}).Decode(&vehicle); err != nil {
		return Vehicle{}, err
	}
	return vehicle, nil
}

func (r *MongoRepository) UpdateStatus(ctx context.Context, tenantID, id, status string, now time.Time) (Vehicle, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$set": bson.M{
			"status":    status,
			"updatedAt": now,
		},
	}

	var updated Vehicle
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "tenantId": tenantID}, update, opts).Decode(&updated); err != nil {
		return Vehicle{}, err
	}
	return updated, nil
}

func (r *MongoRepository) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "tenantId": tenantID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRepository) filterToBSON(tenantID string, filter ListFilter) bson.M {
	query := bson.M{"tenantId": tenantID}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Make != "" {
		query["make"] = filter.Make
	}
	year := bson.M{}
	if filter.MinYear > 0 {
		year["$gte"] = filter.MinYear
	}
	if filter.MaxYear > 0 {
		year["$lte"] = filter.MaxYear
	}
	if len(year) > 0 {
		query["year"] = year
	}
	return query
}
