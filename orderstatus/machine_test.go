package orderstatus

import (
	"storefront/apperror"
	"storefront/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = models.Identity{UserID: "a1", Role: models.RoleAdmin}
	customer = models.Identity{UserID: "u1", Role: models.RoleUser}
)

func TestTransitionLegalMoves(t *testing.T) {
	tests := []struct {
		from models.OrderStatus
		to   string
		want models.OrderStatus
	}{
		{models.StatusPending, "Processing", models.StatusProcessing},
		{models.StatusProcessing, "shipped", models.StatusShipped},
		{models.StatusShipped, "Delivered", models.StatusDelivered},
		{models.StatusPending, "Cancelled", models.StatusCancelled},
		{models.StatusProcessing, "cancelled", models.StatusCancelled},
		{models.StatusShipped, " Cancelled ", models.StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+tt.to, func(t *testing.T) {
			next, changed, err := Machine{}.Transition(tt.from, tt.to, admin)
			require.NoError(t, err)
			assert.True(t, changed)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestTransitionRejectsSkipsAndReversals(t *testing.T) {
	for _, tt := range []struct {
		from models.OrderStatus
		to   string
	}{
		{models.StatusPending, "Shipped"},
		{models.StatusPending, "Delivered"},
		{models.StatusShipped, "Processing"},
		{models.StatusProcessing, "Pending"},
	} {
		_, changed, err := Machine{}.Transition(tt.from, tt.to, admin)
		assert.ErrorIs(t, err, apperror.ErrInvalidStatus, "%s -> %s", tt.from, tt.to)
		assert.False(t, changed)
	}
}

func TestTransitionUnknownTarget(t *testing.T) {
	_, _, err := Machine{}.Transition(models.StatusPending, "Teleported", admin)
	assert.ErrorIs(t, err, apperror.ErrInvalidStatus)
}

func TestTransitionSameStateIsNoop(t *testing.T) {
	for _, st := range []models.OrderStatus{models.StatusPending, models.StatusProcessing, models.StatusShipped} {
		next, changed, err := Machine{}.Transition(st, string(st), admin)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, st, next)
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	for _, terminal := range []models.OrderStatus{models.StatusDelivered, models.StatusCancelled} {
		for _, target := range models.AllStatuses {
			_, changed, err := Machine{}.Transition(terminal, string(target), admin)
			assert.ErrorIs(t, err, apperror.ErrOrderLocked, "%s -> %s", terminal, target)
			assert.False(t, changed)
		}
	}
}

func TestTerminalSameStateWithNoopAllowed(t *testing.T) {
	m := Machine{AllowTerminalNoop: true}
	for _, terminal := range []models.OrderStatus{models.StatusDelivered, models.StatusCancelled} {
		next, changed, err := m.Transition(terminal, string(terminal), admin)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, terminal, next)

		for _, target := range models.AllStatuses {
			if target == terminal {
				continue
			}
			_, _, err := m.Transition(terminal, string(target), admin)
			assert.ErrorIs(t, err, apperror.ErrOrderLocked)
		}
	}
}

func TestTransitionRequiresAdmin(t *testing.T) {
	_, _, err := Machine{}.Transition(models.StatusPending, "Processing", customer)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)

	_, _, err = Machine{}.Transition(models.StatusPending, "Processing", models.Identity{})
	assert.ErrorIs(t, err, apperror.ErrNotAuthenticated)

	_, _, err = Machine{}.Transition(models.StatusDelivered, "Teleported", customer)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized, "role is checked before anything else")
}

func TestNext(t *testing.T) {
	assert.Equal(t, []models.OrderStatus{models.StatusProcessing, models.StatusCancelled}, Next(models.StatusPending))
	assert.Equal(t, []models.OrderStatus{models.StatusDelivered, models.StatusCancelled}, Next(models.StatusShipped))
	assert.Empty(t, Next(models.StatusDelivered))
}
