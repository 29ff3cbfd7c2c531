package checkout

import (
	"context"
	"errors"
	"storefront/apperror"
	"storefront/inventory"
	"storefront/models"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Strategy reserves stock for a validated cart and persists the order as
// one unit: either every reservation and the order exist afterwards, or
// none do.
type Strategy interface {
	Commit(ctx context.Context, attemptID string, vc *ValidatedCart, order *models.Order) error
}

type Reserver interface {
	Reserve(ctx context.Context, productID string, qty int) (int, error)
}

type OrderWriter interface {
	InsertOrder(ctx context.Context, o *models.Order) error
}

// OrderStore can read back the order it was asked to write.
type OrderStore interface {
	OrderWriter
	OrderReader
}

type Compensator interface {
	Compensate(ctx context.Context, attemptID string, reservations []inventory.Reservation, cause error) error
	Hold(ctx context.Context, attemptID, orderID string, reservations []inventory.Reservation, cause error) error
}

// CompensatingStrategy reserves line by line with single-document writes and
// releases what it took when a later step fails.
type CompensatingStrategy struct {
	ledger      Reserver
	orders      OrderStore
	compensator Compensator
	opTimeout   time.Duration
}

func NewCompensatingStrategy(ledger Reserver, orders OrderStore, compensator Compensator, opTimeout time.Duration) *CompensatingStrategy {
	return &CompensatingStrategy{ledger: ledger, orders: orders, compensator: compensator, opTimeout: opTimeout}
}

func (s *CompensatingStrategy) Commit(ctx context.Context, attemptID string, vc *ValidatedCart, order *models.Order) error {
	reserved := make([]inventory.Reservation, 0, len(vc.Reservations))
	for _, r := range vc.Reservations {
		if err := ctx.Err(); err != nil {
			return s.abort(ctx, attemptID, reserved, err)
		}
		if _, err := s.ledger.Reserve(ctx, r.ProductID, r.Quantity); err != nil {
			return s.abort(ctx, attemptID, reserved, err)
		}
		reserved = append(reserved, r)
	}
	if err := ctx.Err(); err != nil {
		return s.abort(ctx, attemptID, reserved, err)
	}

	writeCtx, cancel := detach(ctx, s.opTimeout)
	defer cancel()
	if err := s.orders.InsertOrder(writeCtx, order); err != nil {
		return s.confirm(ctx, attemptID, reserved, order, err)
	}
	return nil
}

// confirm decides what a failed insert means. The write may have landed
// before the error (a write concern timeout, a reset after send), so the
// order is read back by id: found means placed, not found means the stock
// can go back, and an unreadable store means the stock is held as drift.
func (s *CompensatingStrategy) confirm(ctx context.Context, attemptID string, reserved []inventory.Reservation, order *models.Order, cause error) error {
	readCtx, cancel := detach(ctx, s.opTimeout)
	defer cancel()

	_, err := s.orders.FindOrder(readCtx, order.ID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperror.ErrOrderNotFound):
		return s.abort(ctx, attemptID, reserved, cause)
	default:
		return s.compensator.Hold(ctx, attemptID, order.ID, reserved, cause)
	}
}

func (s *CompensatingStrategy) abort(ctx context.Context, attemptID string, reserved []inventory.Reservation, cause error) error {
	if len(reserved) == 0 {
		return cause
	}
	if err := s.compensator.Compensate(ctx, attemptID, reserved, cause); err != nil {
		return err
	}
	return cause
}

// TransactionalStrategy runs every reservation and the order insert in one
// MongoDB transaction. Any failure aborts it, so nothing needs releasing.
type TransactionalStrategy struct {
	client *mongo.Client
	ledger Reserver
	orders OrderWriter
}

func NewTransactionalStrategy(client *mongo.Client, ledger Reserver, orders OrderWriter) *TransactionalStrategy {
	return &TransactionalStrategy{client: client, ledger: ledger, orders: orders}
}

func (s *TransactionalStrategy) Commit(ctx context.Context, attemptID string, vc *ValidatedCart, order *models.Order) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, r := range vc.Reservations {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if _, err := s.ledger.Reserve(sc, r.ProductID, r.Quantity); err != nil {
				return nil, err
			}
		}
		return nil, s.orders.InsertOrder(sc, order)
	})
	return err
}

func detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
