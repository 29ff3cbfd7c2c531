package reconcile

import (
	"context"
	"errors"
	"storefront/apperror"
	"storefront/config"
	"storefront/events"
	"storefront/inventory"
	"storefront/models"
	"storefront/repository"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockReleaser struct {
	mock.Mock
}

func (m *mockReleaser) Release(ctx context.Context, productID string, qty int) error {
	return m.Called(ctx, productID, qty).Error(0)
}

var liveCtx = mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })

func testConfig() config.ReconcileConfig {
	return config.ReconcileConfig{MaxAttempts: 3, Backoff: time.Millisecond, Timeout: time.Second, SweepSpec: "@every 1h", SweepWorkers: 2}
}

func TestCompensateReleasesEverything(t *testing.T) {
	rel := &mockReleaser{}
	rel.On("Release", liveCtx, "P1", 2).Return(nil).Once()
	rel.On("Release", liveCtx, "P2", 1).Return(nil).Once()
	drifts := repository.NewMemory()

	c := NewCompensator(rel, drifts, nil, testConfig(), nil)
	err := c.Compensate(context.Background(), "a1", []inventory.Reservation{
		{ProductID: "P1", Quantity: 2},
		{ProductID: "P2", Quantity: 1},
	}, apperror.OutOfStockFor("P3"))

	require.NoError(t, err)
	rel.AssertExpectations(t)
	open, _ := drifts.ListDrifts(context.Background(), models.DriftOpen)
	assert.Empty(t, open)
}

func TestCompensateRetriesFlakyRelease(t *testing.T) {
	rel := &mockReleaser{}
	rel.On("Release", liveCtx, "P1", 2).Return(errors.New("socket closed")).Twice()
	rel.On("Release", liveCtx, "P1", 2).Return(nil).Once()

	c := NewCompensator(rel, repository.NewMemory(), nil, testConfig(), nil)
	err := c.Compensate(context.Background(), "a1", []inventory.Reservation{{ProductID: "P1", Quantity: 2}}, nil)

	require.NoError(t, err)
	rel.AssertNumberOfCalls(t, "Release", 3)
}

func TestCompensateTreatsDeletedProductAsDone(t *testing.T) {
	rel := &mockReleaser{}
	rel.On("Release", liveCtx, "P1", 2).Return(inventory.ErrProductGone).Once()

	c := NewCompensator(rel, repository.NewMemory(), nil, testConfig(), nil)
	err := c.Compensate(context.Background(), "a1", []inventory.Reservation{{ProductID: "P1", Quantity: 2}}, nil)

	assert.NoError(t, err)
	rel.AssertNumberOfCalls(t, "Release", 1)
}

func TestCompensateRecordsDrift(t *testing.T) {
	rel := &mockReleaser{}
	rel.On("Release", liveCtx, "P1", 2).Return(nil).Once()
	rel.On("Release", liveCtx, "P2", 4).Return(errors.New("primary stepped down"))
	drifts := repository.NewMemory()
	bus := events.NewBus(nil)

	var mu sync.Mutex
	var published []models.StockDrift
	require.NoError(t, bus.OnDrift(func(e events.DriftRecorded) {
		mu.Lock()
		published = append(published, e.Drift)
		mu.Unlock()
	}))

	cause := apperror.OutOfStockFor("P3")
	c := NewCompensator(rel, drifts, bus, testConfig(), nil)
	err := c.Compensate(context.Background(), "attempt-7", []inventory.Reservation{
		{ProductID: "P1", Quantity: 2},
		{ProductID: "P2", Quantity: 4},
	}, cause)
	bus.Wait()

	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrReconciliationFailure)
	assert.ErrorIs(t, err, apperror.ErrOutOfStock)
	assert.Equal(t, apperror.CodeReconciliationFailure, apperror.CodeOf(err))

	var recErr *apperror.ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 1, recErr.Pending)

	rel.AssertNumberOfCalls(t, "Release", 4)

	open, err := drifts.ListDrifts(context.Background(), models.DriftOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "attempt-7", open[0].AttemptID)
	assert.Equal(t, "P2", open[0].ProductID)
	assert.Equal(t, 4, open[0].Quantity)
	assert.Equal(t, 3, open[0].Attempts)
	assert.Equal(t, "primary stepped down", open[0].LastError)

	require.Len(t, published, 1)
	assert.Equal(t, "P2", published[0].ProductID)
}

func TestCompensateIgnoresCallerCancellation(t *testing.T) {
	rel := &mockReleaser{}
	rel.On("Release", liveCtx, "P1", 1).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCompensator(rel, repository.NewMemory(), nil, testConfig(), nil)
	err := c.Compensate(ctx, "a1", []inventory.Reservation{{ProductID: "P1", Quantity: 1}}, context.Canceled)

	require.NoError(t, err)
	rel.AssertExpectations(t)
}

func TestRestoreOrder(t *testing.T) {
	rel := &mockReleaser{}
	rel.On("Release", liveCtx, "P1", 2).Return(errors.New("down"))
	drifts := repository.NewMemory()

	c := NewCompensator(rel, drifts, nil, config.ReconcileConfig{MaxAttempts: 1}, nil)
	err := c.RestoreOrder(context.Background(), &models.Order{
		ID:    "o1",
		Items: []models.LineItem{{ProductID: "P1", Quantity: 2}},
	})

	assert.ErrorIs(t, err, apperror.ErrReconciliationFailure)
	open, _ := drifts.ListDrifts(context.Background(), models.DriftOpen)
	require.Len(t, open, 1)
	assert.Equal(t, "o1", open[0].OrderID)
	assert.Equal(t, "order cancelled", open[0].Reason)
}

func TestBackoffGrowsWithJitter(t *testing.T) {
	base := 10 * time.Millisecond
	for attempt := 0; attempt < 4; attempt++ {
		exp := base * time.Duration(1<<attempt)
		for i := 0; i < 20; i++ {
			d := Backoff(base, attempt)
			assert.GreaterOrEqual(t, d, exp)
			assert.Less(t, d, exp+exp/2)
		}
	}
	assert.Zero(t, Backoff(0, 3))
}

func TestHoldRecordsWithoutReleasing(t *testing.T) {
	rel := &mockReleaser{}
	drifts := repository.NewMemory()
	cause := errors.New("write concern timeout")

	c := NewCompensator(rel, drifts, nil, testConfig(), nil)
	err := c.Hold(context.Background(), "att-9", "o9", []inventory.Reservation{
		{ProductID: "P1", Quantity: 2},
		{ProductID: "P2", Quantity: 1},
	}, cause)

	assert.ErrorIs(t, err, apperror.ErrReconciliationFailure)
	assert.ErrorIs(t, err, cause)
	rel.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)

	open, _ := drifts.ListDrifts(context.Background(), models.DriftOpen)
	require.Len(t, open, 2)
	for _, d := range open {
		assert.True(t, d.Unconfirmed)
		assert.Equal(t, "o9", d.OrderID)
		assert.Equal(t, "write concern timeout", d.LastError)
	}
}
