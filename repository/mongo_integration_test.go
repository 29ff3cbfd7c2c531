package repository_test

import (
	"context"
	"errors"
	"storefront/apperror"
	"storefront/checkout"
	"storefront/config"
	"storefront/database"
	"storefront/inventory"
	"storefront/models"
	"storefront/reconcile"
	"storefront/repository"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func startMongo(t *testing.T) *database.Mongo {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	if strings.Contains(uri, "?") {
		uri += "&directConnection=true"
	} else {
		uri = strings.TrimSuffix(uri, "/") + "/?directConnection=true"
	}

	m, err := database.ConnectMongo(ctx, config.MongoConfig{URI: uri, Database: "storefront_test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Disconnect(context.Background()) })
	require.NoError(t, m.EnsureIndexes(ctx))
	require.True(t, m.SupportsTransactions(ctx))
	return m
}

func TestMongoPlacementStrategies(t *testing.T) {
	m := startMongo(t)
	products := repository.NewMongoProducts(m.ProductCollection)
	orders := repository.NewMongoOrders(m.OrderCollection)
	drifts := repository.NewMongoDrifts(m.DriftCollection)
	ledger := inventory.NewLedger(products, 2*time.Second, nil)
	comp := reconcile.NewCompensator(ledger, drifts, nil, config.ReconcileConfig{MaxAttempts: 3, Timeout: 5 * time.Second}, nil)

	strategies := map[string]checkout.Strategy{
		config.StrategyCompensating:  checkout.NewCompensatingStrategy(ledger, orders, comp, 2*time.Second),
		config.StrategyTransactional: checkout.NewTransactionalStrategy(m.Client, ledger, orders),
	}
	shipping := models.ShippingAddress{Name: "Ana", Address: "1 Main St", City: "Springfield", Zip: "12345"}
	user := models.Identity{UserID: "u1", Role: models.RoleUser}

	for name, strategy := range strategies {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, b := name+"-A", name+"-B"
			require.NoError(t, products.InsertProduct(ctx, &models.Product{ID: a, Name: "A", Price: 100, ListPrice: 100, AvailableStock: 5}))
			require.NoError(t, products.InsertProduct(ctx, &models.Product{ID: b, Name: "B", Price: 10, ListPrice: 10, AvailableStock: 1}))
			placer := checkout.NewPlacer(checkout.NewValidator(products, models.PricingCatalog), strategy)

			order, err := placer.Place(ctx, user, models.Cart{
				Lines:    []models.CartLine{{ProductID: a, Qty: 2, Price: 100}},
				Shipping: shipping,
			})
			require.NoError(t, err)
			stored, err := orders.FindOrder(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, 200.0, stored.TotalAmount)
			assert.Equal(t, models.StatusPending, stored.Status)

			p, err := products.FindProduct(ctx, a)
			require.NoError(t, err)
			assert.Equal(t, 3, p.AvailableStock)

			_, err = placer.Place(ctx, user, models.Cart{
				Lines: []models.CartLine{
					{ProductID: a, Qty: 1, Price: 100},
					{ProductID: b, Qty: 2, Price: 10},
				},
				Shipping: shipping,
			})
			require.ErrorIs(t, err, apperror.ErrOutOfStock)
			p, err = products.FindProduct(ctx, a)
			require.NoError(t, err)
			assert.Equal(t, 3, p.AvailableStock, "the first line was rolled back")

			errs := make([]error, 2)
			var wg sync.WaitGroup
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = placer.Place(ctx, user, models.Cart{
						Lines:    []models.CartLine{{ProductID: a, Qty: 2, Price: 100}},
						Shipping: shipping,
					})
				}(i)
			}
			wg.Wait()
			wins := 0
			for _, err := range errs {
				if err == nil {
					wins++
				} else {
					assert.True(t, errors.Is(err, apperror.ErrOutOfStock), "unexpected error: %v", err)
				}
			}
			assert.Equal(t, 1, wins)
			p, err = products.FindProduct(ctx, a)
			require.NoError(t, err)
			assert.Equal(t, 1, p.AvailableStock)
		})
	}
}

func TestMongoConditionalStatusWrite(t *testing.T) {
	m := startMongo(t)
	orders := repository.NewMongoOrders(m.OrderCollection)
	ctx := context.Background()

	order := &models.Order{UserID: "u1", Status: models.StatusPending, History: []models.StatusChange{}, CreatedAt: time.Now()}
	require.NoError(t, orders.InsertOrder(ctx, order))

	change := models.StatusChange{From: models.StatusPending, To: models.StatusProcessing, By: "admin", At: time.Now().UTC()}
	ok, err := orders.UpdateOrderStatus(ctx, order.ID, change)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = orders.UpdateOrderStatus(ctx, order.ID, change)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = orders.UpdateOrderStatus(ctx, "missing", change)
	assert.ErrorIs(t, err, apperror.ErrOrderNotFound)

	stored, err := orders.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, stored.Status)
	assert.Len(t, stored.History, 1)
}

func TestMongoDuplicateIdempotencyKey(t *testing.T) {
	m := startMongo(t)
	orders := repository.NewMongoOrders(m.OrderCollection)
	ctx := context.Background()

	require.NoError(t, orders.InsertOrder(ctx, &models.Order{UserID: "u1", IdempotencyKey: "u1:k"}))
	err := orders.InsertOrder(ctx, &models.Order{UserID: "u1", IdempotencyKey: "u1:k"})
	assert.ErrorIs(t, err, apperror.ErrIdempotencyInProgress)

	require.NoError(t, orders.InsertOrder(ctx, &models.Order{UserID: "u1"}))
	require.NoError(t, orders.InsertOrder(ctx, &models.Order{UserID: "u1"}), "orders without a key do not collide")
}
