package checkout

import (
	"context"
	"errors"
	"storefront/apperror"
	"storefront/events"
	"storefront/idempotency"
	"storefront/models"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type OrderReader interface {
	FindOrder(ctx context.Context, id string) (*models.Order, error)
}

// KeyedOrderReader also finds the order an idempotency key was stored with.
type KeyedOrderReader interface {
	OrderReader
	FindOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
}

type Placer struct {
	validator *Validator
	strategy  Strategy
	orders    KeyedOrderReader
	keys      idempotency.Store
	bus       *events.Bus
	log       *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

type PlacerOption func(*Placer)

func WithIdempotency(keys idempotency.Store, orders KeyedOrderReader) PlacerOption {
	return func(p *Placer) {
		p.keys = keys
		p.orders = orders
	}
}

func WithEvents(bus *events.Bus) PlacerOption {
	return func(p *Placer) { p.bus = bus }
}

func WithTimeout(d time.Duration) PlacerOption {
	return func(p *Placer) { p.timeout = d }
}

func WithLogger(log *zap.Logger) PlacerOption {
	return func(p *Placer) { p.log = log.Named("checkout") }
}

func NewPlacer(validator *Validator, strategy Strategy, opts ...PlacerOption) *Placer {
	p := &Placer{
		validator: validator,
		strategy:  strategy,
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Place turns cart into a Pending order for identity.
func (p *Placer) Place(ctx context.Context, identity models.Identity, cart models.Cart) (*models.Order, error) {
	order, _, err := p.PlaceOnce(ctx, identity, cart, "")
	return order, err
}

// PlaceOnce is Place guarded by an idempotency key. A key that already
// produced an order returns that order with replayed set and touches no
// stock. An empty key disables the guard.
func (p *Placer) PlaceOnce(ctx context.Context, identity models.Identity, cart models.Cart, key string) (order *models.Order, replayed bool, err error) {
	if !identity.Authenticated() {
		return nil, false, apperror.ErrNotAuthenticated
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	scoped := ""
	if key != "" && p.keys != nil {
		scoped = identity.UserID + ":" + key
		orderID, cerr := p.keys.Claim(ctx, scoped)
		if cerr != nil {
			return nil, false, cerr
		}
		if orderID != "" {
			prior, ferr := p.orders.FindOrder(ctx, orderID)
			return prior, ferr == nil, ferr
		}
		defer func() {
			bg := context.WithoutCancel(ctx)
			var kerr error
			if err == nil {
				kerr = p.keys.Complete(bg, scoped, order.ID)
			} else {
				kerr = p.keys.Abandon(bg, scoped)
			}
			if kerr != nil {
				p.log.Warn("idempotency key not updated", zap.String("key", scoped), zap.Error(kerr))
			}
		}()
	}

	// The claim can expire while the order it produced lives on.
	if scoped != "" {
		prior, ferr := p.orders.FindOrderByIdempotencyKey(ctx, scoped)
		if ferr == nil {
			return prior, true, nil
		}
		if !errors.Is(ferr, apperror.ErrOrderNotFound) {
			return nil, false, ferr
		}
	}

	order, err = p.place(ctx, identity, cart, scoped)
	if scoped != "" && apperror.CodeOf(err) == apperror.CodeIdempotencyInProgress {
		// Another request stored an order with this key first.
		if prior, ferr := p.orders.FindOrderByIdempotencyKey(ctx, scoped); ferr == nil {
			return prior, true, nil
		}
	}
	return order, false, err
}

func (p *Placer) place(ctx context.Context, identity models.Identity, cart models.Cart, idemKey string) (*models.Order, error) {
	// 1. validate
	vc, err := p.validator.Validate(ctx, cart)
	if err != nil {
		return nil, err
	}

	// 2. build the order
	now := p.now().UTC()
	order := &models.Order{
		ID:                primitive.NewObjectID().Hex(),
		UserID:            identity.UserID,
		Items:             vc.Items,
		TotalAmount:       vc.Total.InexactFloat64(),
		Shipping:          vc.Shipping,
		Status:            models.StatusPending,
		History:           []models.StatusChange{},
		Pricing:           vc.Pricing,
		IdempotencyKey:    idemKey,
		CreatedAt:         now,
		UpdatedAt:         now,
		EstimatedDelivery: now.Add(models.DeliveryLeadTime),
	}

	// 3. reserve stock and persist
	attemptID := uuid.NewString()
	if err := p.strategy.Commit(ctx, attemptID, vc, order); err != nil {
		p.log.Info("order rejected",
			zap.String("attempt_id", attemptID),
			zap.String("user_id", identity.UserID),
			zap.String("code", string(apperror.CodeOf(err))),
			zap.String("product_id", apperror.ProductOf(err)),
			zap.Error(err),
		)
		return nil, err
	}

	p.log.Info("order placed",
		zap.String("attempt_id", attemptID),
		zap.String("order_id", order.ID),
		zap.String("user_id", identity.UserID),
		zap.Int("lines", len(order.Items)),
		zap.Float64("total", order.TotalAmount),
	)
	p.bus.PublishOrderPlaced(*order)
	return order, nil
}
