// Package events fans domain events out to in-process subscribers.
package events

import (
	"storefront/models"

	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

const (
	TopicOrderPlaced = "order:placed"
	TopicOrderStatus = "order:status"
	TopicStockDrift  = "stock:drift"
)

type OrderPlaced struct {
	Order models.Order
}

type StatusChanged struct {
	OrderID string
	Change  models.StatusChange
}

type DriftRecorded struct {
	Drift models.StockDrift
}

// Bus is safe to use as a nil pointer; publishing on it is then a no-op.
type Bus struct {
	bus EventBus.Bus
	log *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{bus: EventBus.New(), log: log.Named("events")}
}

func (b *Bus) PublishOrderPlaced(o models.Order) {
	b.publish(TopicOrderPlaced, OrderPlaced{Order: o})
}

func (b *Bus) PublishStatusChanged(orderID string, change models.StatusChange) {
	b.publish(TopicOrderStatus, StatusChanged{OrderID: orderID, Change: change})
}

func (b *Bus) PublishDrift(d models.StockDrift) {
	b.publish(TopicStockDrift, DriftRecorded{Drift: d})
}

func (b *Bus) publish(topic string, event interface{}) {
	if b == nil {
		return
	}
	if !b.bus.HasCallback(topic) {
		return
	}
	b.log.Debug("publish", zap.String("topic", topic))
	b.bus.Publish(topic, event)
}

// Subscribers run asynchronously, one at a time per handler.

func (b *Bus) OnOrderPlaced(fn func(OrderPlaced)) error {
	return b.bus.SubscribeAsync(TopicOrderPlaced, fn, true)
}

func (b *Bus) OnStatusChanged(fn func(StatusChanged)) error {
	return b.bus.SubscribeAsync(TopicOrderStatus, fn, true)
}

func (b *Bus) OnDrift(fn func(DriftRecorded)) error {
	return b.bus.SubscribeAsync(TopicStockDrift, fn, true)
}

// Wait blocks until every asynchronous handler has returned.
func (b *Bus) Wait() {
	if b == nil {
		return
	}
	b.bus.WaitAsync()
}
