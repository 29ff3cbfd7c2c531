// Package orderstatus governs how an order moves through its lifecycle and
// who may move it.
package orderstatus

import (
	"storefront/apperror"
	"storefront/models"
)

type Action string

const (
	ActionProcess Action = "process"
	ActionShip    Action = "ship"
	ActionDeliver Action = "deliver"
	ActionCancel  Action = "cancel"
)

// transitions is the complete set of legal moves. Terminal states map to
// nothing.
var transitions = map[models.OrderStatus]map[Action]models.OrderStatus{
	models.StatusPending: {
		ActionProcess: models.StatusProcessing,
		ActionCancel:  models.StatusCancelled,
	},
	models.StatusProcessing: {
		ActionShip:   models.StatusShipped,
		ActionCancel: models.StatusCancelled,
	},
	models.StatusShipped: {
		ActionDeliver: models.StatusDelivered,
		ActionCancel:  models.StatusCancelled,
	},
	models.StatusDelivered: {},
	models.StatusCancelled: {},
}

// actionFor names the action that leads into a status. Pending has none:
// nothing moves an order back to it.
var actionFor = map[models.OrderStatus]Action{
	models.StatusProcessing: ActionProcess,
	models.StatusShipped:    ActionShip,
	models.StatusDelivered:  ActionDeliver,
	models.StatusCancelled:  ActionCancel,
}

type Machine struct {
	// AllowTerminalNoop lets a request for the current terminal status
	// succeed as a no-op instead of failing with ErrOrderLocked.
	AllowTerminalNoop bool
}

// Authorize checks that identity may change order status at all.
func (m Machine) Authorize(identity models.Identity) error {
	if !identity.Authenticated() {
		return apperror.ErrNotAuthenticated
	}
	if !identity.IsAdmin() {
		return apperror.ErrNotAuthorized
	}
	return nil
}

// Transition resolves a requested target status against current. changed is
// false for a same-state request, which needs no write.
func (m Machine) Transition(current models.OrderStatus, target string, identity models.Identity) (next models.OrderStatus, changed bool, err error) {
	if err := m.Authorize(identity); err != nil {
		return current, false, err
	}
	to, ok := models.ParseStatus(target)
	if !ok {
		return current, false, apperror.ErrInvalidStatus
	}

	if current.Terminal() {
		if to == current && m.AllowTerminalNoop {
			return current, false, nil
		}
		return current, false, apperror.InvalidTransition(apperror.ErrOrderLocked, string(current), string(to))
	}
	if to == current {
		return current, false, nil
	}

	next, ok = transitions[current][actionFor[to]]
	if !ok {
		return current, false, apperror.InvalidTransition(apperror.ErrInvalidStatus, string(current), string(to))
	}
	return next, true, nil
}

// Next lists the statuses reachable from current in one step.
func Next(current models.OrderStatus) []models.OrderStatus {
	var out []models.OrderStatus
	for _, st := range models.AllStatuses {
		if _, ok := transitions[current][actionFor[st]]; ok {
			out = append(out, st)
		}
	}
	return out
}
