package leads

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, lead Lead) error
	List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int64) ([]Lead, error)
	Count(ctx context.Context, tenantID string, filter ListFilter) (int64, error)
	GetByID(ctx context.Context, tenantID, id string) (Lead, error)
	UpdateStatus(ctx context.Context, tenantID, id, status string, now time.Time) (Lead, error)
	AppendInteraction(ctx context.Context, tenantID, id string, interaction Interaction) (Lead, error)
	AppendDocument(ctx context.Context, tenantID, id, document string, now time.Time) (Lead, error)
	SetClassification(ctx context.Context, tenantID, id string, ai AIClassification) error
	// UpdateScore replaces the lead's score iff its version still matches
	// expectedVersion. Returns ErrVersionConflict when another writer won.
	UpdateScore(ctx context.Context, tenantID, id string, score Score, expectedVersion int64) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, lead Lead) error {
	_, err := r.col.InsertOne(ctx, lead)
	return err
}

func (r *MongoRepository) List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int64) ([]Lead, error) {
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

	items := make([]Lead, 0)
	for cursor.Next(ctx) {
		var lead Lead
		if err := cursor.Decode(&lead); err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *MongoRepository) Count(ctx context.Context, tenantID string, filter ListFilter) (int64, error) {
	return r.col.CountDocuments(ctx, r.filterToBSON(tenantID, filter))
}

func (r *MongoRepository) GetByID(ctx context.Context, tenantID, id string) (Lead, error) {
	var lead Lead
	if err := r.col.FindOne(ctx, bson.M{"_id": id, "tenantId": tenantID}).Decode(&lead); err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (r *MongoRepository) UpdateStatus(ctx context.Context, tenantID, id, status string, now time.Time) (Lead, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$set": bson.M{
			"status":    status,
			"updatedAt": now,
		},
	}

	var updated Lead
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "tenantId": tenantID}, update, opts).Decode(&updated); err != nil {
		return Lead{}, err
	}
	return updated, nil
}

func (r *MongoRepository) AppendInteraction(ctx context.Context, tenantID, id string, interaction Interaction) (Lead, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$push": bson.M{"interactions": interaction},
		"$set":  bson.M{"updatedAt": interaction.At},
	}

	var updated Lead
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "tenantId": tenantID}, update, opts).Decode(&updated); err != nil {
		return Lead{}, err
	}
	return updated, nil
}

func (r *MongoRepository) AppendDocument(ctx context.Context, tenantID, id, document string, now time.Time) (Lead, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$push": bson.M{"documents": document},
		"$set":  bson.M{"updatedAt": now},
	}

	var updated Lead
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "tenantId": tenantID}, update, opts).Decode(&updated); err != nil {
		return Lead{}, err
	}
	return updated, nil
}

func (r *MongoRepository) SetClassification(ctx context.Context, tenantID, id string, ai AIClassification) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "tenantId": tenantID}, bson.M{
		"$set": bson.M{
			"ai":        ai,
			"updatedAt": ai.ClassifiedAt,
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRepository) UpdateScore(ctx context.Context, tenantID, id string, score Score, expectedVersion int64) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "tenantId": tenantID, "scoreVersion": expectedVersion},
		bson.M{
			"$set": bson.M{
				"score":     score,
				"updatedAt": score.LastUpdated,
			},
			"$inc": bson.M{"scoreVersion": 1},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Either the lead is gone or another scoring event bumped the version.
		count, err := r.col.CountDocuments(ctx, bson.M{"_id": id, "tenantId": tenantID})
		if err != nil {
			return err
		}
		if count == 0 {
			return mongo.ErrNoDocuments
		}
		return ErrVersionConflict
	}
	return nil
}

func (r *MongoRepository) filterToBSON(tenantID string, filter ListFilter) bson.M {
	query := bson.M{"tenantId": tenantID}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Source != "" {
		query["source"] = filter.Source
	}
	if filter.Assigned != "" {
		query["assignedTo"] = filter.Assigned
	}
	return query
}
