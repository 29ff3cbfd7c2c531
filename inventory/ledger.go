// Package inventory is the stock ledger: reserve and release units of a
// product's available stock.
//
// The ledger keeps no state of its own. Every change is a single conditional
// write in the StockStore, so two reservations racing for the last unit are
// decided by the store and never by a read-then-write in this process.
package inventory

import (
	"context"
	"errors"
	"storefront/apperror"
	"time"

	"go.uber.org/zap"
)

// ErrProductGone is returned by Release when the product has been deleted.
// The release is a no-op and callers treat it as a warning.
var ErrProductGone = errors.New("product no longer exists")

type Reservation struct {
	ProductID string `bson:"productId" json:"productId"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

type StockStore interface {
	// DecrementIfAvailable subtracts qty only when at least qty units are
	// available, as one atomic write. It fails with apperror.ErrOutOfStock or
	// apperror.ErrProductNotFound.
	DecrementIfAvailable(ctx context.Context, productID string, qty int) (int, error)
	// Increment adds qty, failing with ErrProductGone for a missing product.
	Increment(ctx context.Context, productID string, qty int) (int, error)
}

type Ledger struct {
	store     StockStore
	opTimeout time.Duration
	log       *zap.Logger
}

func NewLedger(store StockStore, opTimeout time.Duration, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{store: store, opTimeout: opTimeout, log: log.Named("ledger")}
}

// opContext detaches a single store call from the caller's cancellation so
// that a write already sent is seen through; the call is still bounded by
// the ledger's own timeout.
func (l *Ledger) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if l.opTimeout <= 0 {
		return detached, func() {}
	}
	return context.WithTimeout(detached, l.opTimeout)
}

// Reserve takes qty units of productID and returns the stock left.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, apperror.InvalidQuantityFor(productID)
	}
	opCtx, cancel := l.opContext(ctx)
	defer cancel()

	stock, err := l.store.DecrementIfAvailable(opCtx, productID, qty)
	if err != nil {
		return 0, err
	}
	l.log.Debug("stock reserved",
		zap.String("product_id", productID),
		zap.Int("quantity", qty),
		zap.Int("stock", stock),
	)
	return stock, nil
}

// Release gives qty units of productID back.
func (l *Ledger) Release(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return apperror.InvalidQuantityFor(productID)
	}
	opCtx, cancel := l.opContext(ctx)
	defer cancel()

	stock, err := l.store.Increment(opCtx, productID, qty)
	if errors.Is(err, ErrProductGone) {
		l.log.Warn("release skipped, product deleted",
			zap.String("product_id", productID),
			zap.Int("quantity", qty),
		)
		return err
	}
	if err != nil {
		return err
	}
	l.log.Debug("stock released",
		zap.String("product_id", productID),
		zap.Int("quantity", qty),
		zap.Int("stock", stock),
	)
	return nil
}

// Adjust applies an administrative stock correction. Positive deltas restock,
// negative deltas consume through the same conditional write as Reserve.
func (l *Ledger) Adjust(ctx context.Context, productID string, delta int) (int, error) {
	switch {
	case delta < 0:
		return l.Reserve(ctx, productID, -delta)
	case delta > 0:
		opCtx, cancel := l.opContext(ctx)
		defer cancel()
		stock, err := l.store.Increment(opCtx, productID, delta)
		if errors.Is(err, ErrProductGone) {
			return 0, apperror.ProductNotFoundFor(productID)
		}
		return stock, err
	default:
		return 0, apperror.InvalidQuantityFor(productID)
	}
}
