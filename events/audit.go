package events

import (
	"go.uber.org/zap"
)

// Audit writes one log line per placed order and per status transition.
func Audit(bus *Bus, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("audit")

	if err := bus.OnOrderPlaced(func(e OrderPlaced) {
		log.Info("order placed",
			zap.String("order_id", e.Order.ID),
			zap.String("user_id", e.Order.UserID),
			zap.Int("lines", len(e.Order.Items)),
			zap.Float64("total", e.Order.TotalAmount),
			zap.String("pricing", string(e.Order.Pricing)),
		)
	}); err != nil {
		return err
	}
	return bus.OnStatusChanged(func(e StatusChanged) {
		log.Info("order status changed",
			zap.String("order_id", e.OrderID),
			zap.String("from", string(e.Change.From)),
			zap.String("to", string(e.Change.To)),
			zap.String("by", e.Change.By),
		)
	})
}
