package repository

import (
	"context"
	"sort"
	"storefront/apperror"
	"storefront/inventory"
	"storefront/models"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type productEntry struct {
	mu      sync.Mutex
	product models.Product
}

// Memory keeps every collection in process. Stock changes on one product are
// serialized by that product's own mutex, so unrelated products never
// contend.
type Memory struct {
	mu       sync.RWMutex
	products map[string]*productEntry
	orders   map[string]models.Order
	byKey    map[string]string
	drifts   map[string]models.StockDrift
}

func NewMemory() *Memory {
	return &Memory{
		products: make(map[string]*productEntry),
		orders:   make(map[string]models.Order),
		byKey:    make(map[string]string),
		drifts:   make(map[string]models.StockDrift),
	}
}

func (m *Memory) entry(id string) (*productEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.products[id]
	return e, ok
}

func (m *Memory) FindProduct(_ context.Context, id string) (*models.Product, error) {
	e, ok := m.entry(id)
	if !ok {
		return nil, apperror.ProductNotFoundFor(id)
	}
	e.mu.Lock()
	p := e.product
	e.mu.Unlock()
	return &p, nil
}

func (m *Memory) FindProducts(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	out := make(map[string]*models.Product, len(ids))
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		p, err := m.FindProduct(ctx, id)
		if err != nil {
			continue
		}
		out[id] = p
	}
	return out, nil
}

func (m *Memory) ListProducts(_ context.Context, filter ProductFilter) ([]models.Product, error) {
	m.mu.RLock()
	entries := make([]*productEntry, 0, len(m.products))
	for _, e := range m.products {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]models.Product, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		p := e.product
		e.mu.Unlock()
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) InsertProduct(_ context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = primitive.NewObjectID().Hex()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = &productEntry{product: *p}
	return nil
}

func (m *Memory) UpdateProductDetails(_ context.Context, p *models.Product) error {
	e, ok := m.entry(p.ID)
	if !ok {
		return apperror.ProductNotFoundFor(p.ID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	stock, created := e.product.AvailableStock, e.product.CreatedAt
	e.product = *p
	e.product.AvailableStock, e.product.CreatedAt = stock, created
	p.AvailableStock, p.CreatedAt = stock, created
	return nil
}

func (m *Memory) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return apperror.ProductNotFoundFor(id)
	}
	delete(m.products, id)
	return nil
}

func (m *Memory) DecrementIfAvailable(_ context.Context, id string, qty int) (int, error) {
	e, ok := m.entry(id)
	if !ok {
		return 0, apperror.ProductNotFoundFor(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.product.AvailableStock < qty {
		return 0, apperror.OutOfStockFor(id)
	}
	e.product.AvailableStock -= qty
	e.product.UpdatedAt = time.Now()
	return e.product.AvailableStock, nil
}

func (m *Memory) Increment(_ context.Context, id string, qty int) (int, error) {
	e, ok := m.entry(id)
	if !ok {
		return 0, inventory.ErrProductGone
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.product.AvailableStock += qty
	e.product.UpdatedAt = time.Now()
	return e.product.AvailableStock, nil
}

func (m *Memory) InsertOrder(_ context.Context, o *models.Order) error {
	if o.ID == "" {
		o.ID = primitive.NewObjectID().Hex()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.IdempotencyKey != "" {
		if _, taken := m.byKey[o.IdempotencyKey]; taken {
			return apperror.ErrIdempotencyInProgress
		}
		m.byKey[o.IdempotencyKey] = o.ID
	}
	m.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (m *Memory) FindOrder(_ context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperror.ErrOrderNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (m *Memory) FindOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	m.mu.RLock()
	id, ok := m.byKey[key]
	m.mu.RUnlock()
	if !ok || key == "" {
		return nil, apperror.ErrOrderNotFound
	}
	return m.FindOrder(ctx, id)
}

func (m *Memory) ListOrders(_ context.Context, userID string) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Order, 0)
	for _, o := range m.orders {
		if userID != "" && o.UserID != userID {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) UpdateOrderStatus(_ context.Context, id string, change models.StatusChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return false, apperror.ErrOrderNotFound
	}
	if o.Status != change.From {
		return false, nil
	}
	o.Status = change.To
	o.UpdatedAt = change.At
	o.History = append(append([]models.StatusChange(nil), o.History...), change)
	m.orders[id] = o
	return true, nil
}

func (m *Memory) InsertDrift(_ context.Context, d *models.StockDrift) error {
	if d.ID == "" {
		d.ID = primitive.NewObjectID().Hex()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drifts[d.ID] = *d
	return nil
}

func (m *Memory) ListDrifts(_ context.Context, status models.DriftStatus) ([]models.StockDrift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.StockDrift, 0)
	for _, d := range m.drifts {
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) RecordDriftAttempt(_ context.Context, id string, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drifts[id]
	if !ok {
		return ErrDriftNotFound
	}
	d.Attempts++
	d.LastError = lastErr
	m.drifts[id] = d
	return nil
}

func (m *Memory) ResolveDrift(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drifts[id]
	if !ok {
		return ErrDriftNotFound
	}
	d.Status = models.DriftResolved
	d.ResolvedAt = &at
	m.drifts[id] = d
	return nil
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.LineItem(nil), o.Items...)
	o.History = append([]models.StatusChange(nil), o.History...)
	return o
}
