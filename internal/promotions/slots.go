package promotions

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const slotCounterID = "landing_promotion_slots"

// SlotCounter admits promotions onto the shared landing page. Acquire must be
// atomic so two concurrent creations cannot both squeeze past the ceiling.
type SlotCounter interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	Available(ctx context.Context) (int64, error)
}

type slotDoc struct {
	ID    string `bson:"_id"`
	Value int64  `bson:"value"`
	Cap   int64  `bson:"cap"`
}

// MongoSlotCounter keeps the occupancy count in a single counter document and
// increments it with a ceiling filter, so admission is a single compare-and-
// increment on the server.
type MongoSlotCounter struct {
	col *mongo.Collection
	cap int64
}

func NewMongoSlotCounter(col *mongo.Collection, capacity int64) *MongoSlotCounter {
	return &MongoSlotCounter{col: col, cap: capacity}
}

// EnsureCounter creates the counter document if missing and keeps its cap in
// sync with configuration.
func (c *MongoSlotCounter) EnsureCounter(ctx context.Context) error {
	update := bson.M{
		"$set":         bson.M{"cap": c.cap},
		"$setOnInsert": bson.M{"value": int64(0)},
	}
	_, err := c.col.UpdateByID(ctx, slotCounterID, update, options.Update().SetUpsert(true))
	return err
}

func (c *MongoSlotCounter) Acquire(ctx context.Context) (bool, error) {
	filter := bson.M{"_id": slotCounterID, "value": bson.M{"$lt": c.cap}}
	err := c.col.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{"value": 1}}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *MongoSlotCounter) Release(ctx context.Context) error {
	filter := bson.M{"_id": slotCounterID, "value": bson.M{"$gt": 0}}
	err := c.col.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{"value": -1}}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return err
}

func (c *MongoSlotCounter) Available(ctx context.Context) (int64, error) {
	var doc slotDoc
	err := c.col.FindOne(ctx, bson.M{"_id": slotCounterID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return c.cap, nil
	}
	if err != nil {
		return 0, err
	}
	available := c.cap - doc.Value
	if available < 0 {
		available = 0
	}
	return available, nil
}
