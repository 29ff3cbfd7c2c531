package orderstatus

import (
	"context"
	"storefront/apperror"
	"storefront/events"
	"storefront/models"
	"time"

	"go.uber.org/zap"
)

const maxWriteAttempts = 3

type OrderStore interface {
	FindOrder(ctx context.Context, id string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, change models.StatusChange) (bool, error)
}

// StockRestorer gives back the stock held by a cancelled order.
type StockRestorer interface {
	RestoreOrder(ctx context.Context, order *models.Order) error
}

type Service struct {
	machine  Machine
	orders   OrderStore
	restorer StockRestorer
	bus      *events.Bus
	log      *zap.Logger
	now      func() time.Time
}

func NewService(machine Machine, orders OrderStore, restorer StockRestorer, bus *events.Bus, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		machine:  machine,
		orders:   orders,
		restorer: restorer,
		bus:      bus,
		log:      log.Named("orderstatus"),
		now:      time.Now,
	}
}

// UpdateStatus moves order orderID to target. The write only lands if the
// order still has the status it was read with; a lost race re-reads and
// re-evaluates.
//
// Cancelling gives the order's stock back. If that partly fails the order
// stays cancelled and the returned error is a reconciliation failure.
func (s *Service) UpdateStatus(ctx context.Context, identity models.Identity, orderID, target string) (*models.Order, error) {
	if err := s.machine.Authorize(identity); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		order, err := s.orders.FindOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		next, changed, err := s.machine.Transition(order.Status, target, identity)
		if err != nil {
			return nil, err
		}
		if !changed {
			return order, nil
		}

		change := models.StatusChange{From: order.Status, To: next, By: identity.UserID, At: s.now().UTC()}
		ok, err := s.orders.UpdateOrderStatus(ctx, orderID, change)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.log.Debug("status changed underneath, retrying",
				zap.String("order_id", orderID),
				zap.String("from", string(change.From)),
				zap.Int("attempt", attempt+1),
			)
			continue
		}

		order.Status = next
		order.UpdatedAt = change.At
		order.History = append(order.History, change)
		s.log.Info("order status changed",
			zap.String("order_id", orderID),
			zap.String("from", string(change.From)),
			zap.String("to", string(change.To)),
			zap.String("by", change.By),
		)
		s.bus.PublishStatusChanged(orderID, change)

		if next == models.StatusCancelled && s.restorer != nil {
			if err := s.restorer.RestoreOrder(ctx, order); err != nil {
				return order, err
			}
		}
		return order, nil
	}
	return nil, apperror.ErrStatusConflict
}

func (s *Service) Cancel(ctx context.Context, identity models.Identity, orderID string) (*models.Order, error) {
	return s.UpdateStatus(ctx, identity, orderID, string(models.StatusCancelled))
}
