package events

import (
	"storefront/models"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBusDeliversEachTopic(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	var got []string
	record := func(s string) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}

	require.NoError(t, bus.OnOrderPlaced(func(e OrderPlaced) { record("placed:" + e.Order.ID) }))
	require.NoError(t, bus.OnStatusChanged(func(e StatusChanged) { record("status:" + string(e.Change.To)) }))
	require.NoError(t, bus.OnDrift(func(e DriftRecorded) { record("drift:" + e.Drift.ProductID) }))

	bus.PublishOrderPlaced(models.Order{ID: "o1"})
	bus.PublishStatusChanged("o1", models.StatusChange{To: models.StatusShipped})
	bus.PublishDrift(models.StockDrift{ProductID: "P1"})
	bus.Wait()

	assert.ElementsMatch(t, []string{"placed:o1", "status:Shipped", "drift:P1"}, got)
}

func TestNilBusIsNoop(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() {
		bus.PublishOrderPlaced(models.Order{})
		bus.PublishDrift(models.StockDrift{})
		bus.Wait()
	})
}
