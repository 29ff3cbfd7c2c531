package repository

import (
	"context"
	"storefront/models"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDrifts struct {
	coll *mongo.Collection
}

func NewMongoDrifts(coll *mongo.Collection) *MongoDrifts {
	return &MongoDrifts{coll: coll}
}

func (r *MongoDrifts) InsertDrift(ctx context.Context, d *models.StockDrift) error {
	if d.ID == "" {
		d.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.coll.InsertOne(ctx, d)
	return errors.Wrapf(err, "insert drift for product %s", d.ProductID)
}

func (r *MongoDrifts) ListDrifts(ctx context.Context, status models.DriftStatus) ([]models.StockDrift, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list drifts")
	}
	drifts := []models.StockDrift{}
	if err := cursor.All(ctx, &drifts); err != nil {
		return nil, errors.Wrap(err, "decode drifts")
	}
	return drifts, nil
}

func (r *MongoDrifts) RecordDriftAttempt(ctx context.Context, id string, lastErr string) error {
	return r.update(ctx, id, bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"lastError": lastErr},
	})
}

func (r *MongoDrifts) ResolveDrift(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, bson.M{
		"$set": bson.M{"status": models.DriftResolved, "resolvedAt": at},
	})
}

func (r *MongoDrifts) update(ctx context.Context, id string, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return errors.Wrapf(err, "update drift %s", id)
	}
	if res.MatchedCount == 0 {
		return ErrDriftNotFound
	}
	return nil
}
