// Package repository persists products, orders and stock drift records.
// The Mongo implementations back production; Memory backs tests and
// single-process deployments without a database.
package repository

import (
	"context"
	"storefront/models"
	"time"

	"github.com/pkg/errors"
)

var ErrDriftNotFound = errors.New("stock drift not found")

type ProductFilter struct {
	Category string
}

type ProductRepository interface {
	FindProduct(ctx context.Context, id string) (*models.Product, error)
	// FindProducts returns the products whose ids are known, keyed by id.
	// Missing ids are simply absent from the map.
	FindProducts(ctx context.Context, ids []string) (map[string]*models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	InsertProduct(ctx context.Context, p *models.Product) error
	// UpdateProductDetails rewrites catalog fields. Stock is never touched
	// here; it only moves through the inventory ledger.
	UpdateProductDetails(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

type OrderRepository interface {
	InsertOrder(ctx context.Context, o *models.Order) error
	FindOrder(ctx context.Context, id string) (*models.Order, error)
	FindOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	// ListOrders returns orders newest first; an empty userID lists all.
	ListOrders(ctx context.Context, userID string) ([]models.Order, error)
	// UpdateOrderStatus applies change only while the stored status still
	// equals change.From. It reports false when another writer got there first.
	UpdateOrderStatus(ctx context.Context, id string, change models.StatusChange) (bool, error)
}

type DriftRepository interface {
	InsertDrift(ctx context.Context, d *models.StockDrift) error
	ListDrifts(ctx context.Context, status models.DriftStatus) ([]models.StockDrift, error)
	RecordDriftAttempt(ctx context.Context, id string, lastErr string) error
	ResolveDrift(ctx context.Context, id string, at time.Time) error
}
