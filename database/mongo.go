package database

import (
	"context"
	"fmt"
	"storefront/config"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database

	ProductCollection *mongo.Collection
	OrderCollection   *mongo.Collection
	DriftCollection   *mongo.Collection
}

func ConnectMongo(ctx context.Context, cfg config.MongoConfig) (*Mongo, error) {
	if cfg.URI == "" || cfg.Database == "" {
		return nil, fmt.Errorf("MONGO_URI or DB_NAME not set")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	m := &Mongo{Client: client, DB: client.Database(cfg.Database)}
	m.InitCollections()

	zap.L().Info("connected to mongodb", zap.String("database", cfg.Database))
	return m, nil
}

func (m *Mongo) InitCollections() {
	m.ProductCollection = m.DB.Collection("products")
	m.OrderCollection = m.DB.Collection("orders")
	m.DriftCollection = m.DB.Collection("stock_drifts")
}

func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		m.OrderCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{
				Keys:    bson.D{{Key: "idempotencyKey", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
		m.ProductCollection: {
			{Keys: bson.D{{Key: "slug", Value: 1}}},
		},
		m.DriftCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// SupportsTransactions reports whether the deployment is a replica set or
// sharded cluster, the only topologies that accept multi-document
// transactions.
func (m *Mongo) SupportsTransactions(ctx context.Context) bool {
	var hello bson.M
	if err := m.DB.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		return false
	}
	if _, ok := hello["setName"]; ok {
		return true
	}
	return hello["msg"] == "isdbgrid"
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.Client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Disconnect(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
