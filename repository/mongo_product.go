package repository

import (
	"context"
	"storefront/apperror"
	"storefront/inventory"
	"storefront/models"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoProducts is the products collection. It is also the inventory
// StockStore: stock lives on the product document.
type MongoProducts struct {
	coll *mongo.Collection
}

func NewMongoProducts(coll *mongo.Collection) *MongoProducts {
	return &MongoProducts{coll: coll}
}

func (r *MongoProducts) FindProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.ProductNotFoundFor(id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find product %s", id)
	}
	return &p, nil
}

func (r *MongoProducts) FindProducts(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errors.Wrap(err, "find products")
	}
	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	out := make(map[string]*models.Product, len(products))
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

func (r *MongoProducts) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	cursor, err := r.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}

func (r *MongoProducts) InsertProduct(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = primitive.NewObjectID().Hex()
	}
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return errors.Wrapf(err, "insert product %s", p.ID)
	}
	return nil
}

func (r *MongoProducts) UpdateProductDetails(ctx context.Context, p *models.Product) error {
	update := bson.M{"$set": bson.M{
		"name":            p.Name,
		"slug":            p.Slug,
		"description":     p.Description,
		"category":        p.Category,
		"image":           p.Image,
		"price":           p.Price,
		"mrp":             p.ListPrice,
		"discountPercent": p.DiscountPercent,
		"updatedAt":       p.UpdatedAt,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": p.ID}, update, opts).Decode(p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperror.ProductNotFoundFor(p.ID)
	}
	return errors.Wrapf(err, "update product %s", p.ID)
}

func (r *MongoProducts) DeleteProduct(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(err, "delete product %s", id)
	}
	if res.DeletedCount == 0 {
		return apperror.ProductNotFoundFor(id)
	}
	return nil
}

// DecrementIfAvailable is one conditional FindOneAndUpdate. When nothing
// matched, a read classifies the miss; it never decides the write.
func (r *MongoProducts) DecrementIfAvailable(ctx context.Context, id string, qty int) (int, error) {
	var p models.Product
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "availableStock": bson.M{"$gte": qty}},
		bson.M{
			"$inc": bson.M{"availableStock": -qty},
			"$set": bson.M{"updatedAt": time.Now()},
		},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"availableStock": 1}),
	).Decode(&p)
	if err == nil {
		return p.AvailableStock, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, errors.Wrapf(err, "reserve %d of product %s", qty, id)
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, errors.Wrapf(err, "classify reservation miss for product %s", id)
	}
	if n == 0 {
		return 0, apperror.ProductNotFoundFor(id)
	}
	return 0, apperror.OutOfStockFor(id)
}

func (r *MongoProducts) Increment(ctx context.Context, id string, qty int) (int, error) {
	var p models.Product
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"availableStock": qty},
			"$set": bson.M{"updatedAt": time.Now()},
		},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"availableStock": 1}),
	).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, inventory.ErrProductGone
	}
	if err != nil {
		return 0, errors.Wrapf(err, "release %d of product %s", qty, id)
	}
	return p.AvailableStock, nil
}
