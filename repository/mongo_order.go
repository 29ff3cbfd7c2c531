package repository

import (
	"context"
	"storefront/apperror"
	"storefront/models"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoOrders struct {
	coll *mongo.Collection
}

func NewMongoOrders(coll *mongo.Collection) *MongoOrders {
	return &MongoOrders{coll: coll}
}

func (r *MongoOrders) InsertOrder(ctx context.Context, o *models.Order) error {
	if o.ID == "" {
		o.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.coll.InsertOne(ctx, o)
	if mongo.IsDuplicateKeyError(err) && o.IdempotencyKey != "" {
		return apperror.ErrIdempotencyInProgress
	}
	return errors.Wrapf(err, "insert order %s", o.ID)
}

func (r *MongoOrders) FindOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find order %s", id)
	}
	return &o, nil
}

func (r *MongoOrders) FindOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	if key == "" {
		return nil, apperror.ErrOrderNotFound
	}
	var o models.Order
	err := r.coll.FindOne(ctx, bson.M{"idempotencyKey": key}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find order by idempotency key")
	}
	return &o, nil
}

func (r *MongoOrders) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	filter := bson.M{}
	if userID != "" {
		filter["userId"] = userID
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	return orders, nil
}

func (r *MongoOrders) UpdateOrderStatus(ctx context.Context, id string, change models.StatusChange) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": change.From},
		bson.M{
			"$set":  bson.M{"status": change.To, "updatedAt": change.At},
			"$push": bson.M{"history": change},
		},
	)
	if err != nil {
		return false, errors.Wrapf(err, "update status of order %s", id)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, errors.Wrapf(err, "find order %s", id)
	}
	if n == 0 {
		return false, apperror.ErrOrderNotFound
	}
	return false, nil
}
