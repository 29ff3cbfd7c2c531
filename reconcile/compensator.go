// Package reconcile gives back stock that a failed or cancelled order had
// taken, and keeps a durable record of anything it could not give back.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"storefront/apperror"
	"storefront/config"
	"storefront/events"
	"storefront/inventory"
	"storefront/models"
	"storefront/repository"
	"time"

	"go.uber.org/zap"
)

type Releaser interface {
	Release(ctx context.Context, productID string, qty int) error
}

type Compensator struct {
	releaser    Releaser
	drifts      repository.DriftRepository
	bus         *events.Bus
	log         *zap.Logger
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration
}

func NewCompensator(releaser Releaser, drifts repository.DriftRepository, bus *events.Bus, cfg config.ReconcileConfig, log *zap.Logger) *Compensator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Compensator{
		releaser:    releaser,
		drifts:      drifts,
		bus:         bus,
		log:         log.Named("compensator"),
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		timeout:     cfg.Timeout,
	}
}

// Compensate releases every reservation taken by a failed placement. It
// returns nil when all stock is back; otherwise the leftovers are stored as
// drift and the result is an *apperror.ReconciliationError wrapping cause.
//
// Compensation is not cut short by ctx: it runs detached, bounded by the
// compensator's own timeout.
func (c *Compensator) Compensate(ctx context.Context, attemptID string, reservations []inventory.Reservation, cause error) error {
	reason := "placement failed"
	if cause != nil {
		reason = cause.Error()
	}
	return c.run(ctx, attemptID, "", reason, reservations, cause)
}

// RestoreOrder gives back the stock of a cancelled order.
func (c *Compensator) RestoreOrder(ctx context.Context, order *models.Order) error {
	reservations := make([]inventory.Reservation, 0, len(order.Items))
	for _, item := range order.Items {
		reservations = append(reservations, inventory.Reservation{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return c.run(ctx, order.ID, order.ID, "order cancelled", reservations, nil)
}

// Hold records reservations whose order may or may not have been written.
// Nothing is released here: the sweeper gives the stock back only after
// confirming that orderID does not exist.
func (c *Compensator) Hold(ctx context.Context, attemptID, orderID string, reservations []inventory.Reservation, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	lastErr := "order write unconfirmed"
	if cause != nil {
		lastErr = cause.Error()
	}
	for _, r := range reservations {
		c.log.Error("order write unconfirmed, holding stock",
			zap.String("attempt_id", attemptID),
			zap.String("order_id", orderID),
			zap.String("product_id", r.ProductID),
			zap.Int("quantity", r.Quantity),
			zap.Error(cause),
		)
		c.recordDrift(ctx, models.StockDrift{
			AttemptID:   attemptID,
			OrderID:     orderID,
			ProductID:   r.ProductID,
			Quantity:    r.Quantity,
			Reason:      "order write unconfirmed",
			Status:      models.DriftOpen,
			LastError:   lastErr,
			Unconfirmed: true,
			CreatedAt:   time.Now(),
		})
	}
	if len(reservations) == 0 {
		return cause
	}
	return &apperror.ReconciliationError{Cause: cause, Pending: len(reservations)}
}

func (c *Compensator) run(ctx context.Context, attemptID, orderID, reason string, reservations []inventory.Reservation, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	pending := 0
	for _, r := range reservations {
		attempts, err := c.release(ctx, r)
		if err == nil {
			continue
		}
		pending++
		c.log.Error("release failed, recording drift",
			zap.String("attempt_id", attemptID),
			zap.String("product_id", r.ProductID),
			zap.Int("quantity", r.Quantity),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		c.recordDrift(ctx, models.StockDrift{
			AttemptID: attemptID,
			OrderID:   orderID,
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
			Reason:    reason,
			Attempts:  attempts,
			Status:    models.DriftOpen,
			LastError: err.Error(),
			CreatedAt: time.Now(),
		})
	}
	if pending == 0 {
		return nil
	}
	return &apperror.ReconciliationError{Cause: cause, Pending: pending}
}

// release retries one reservation with exponential backoff. A deleted
// product counts as released.
func (c *Compensator) release(ctx context.Context, r inventory.Reservation) (int, error) {
	var err error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if werr := wait(ctx, Backoff(c.backoff, attempt-1)); werr != nil {
				return attempt, fmt.Errorf("%w (after %v)", werr, err)
			}
		}
		err = c.releaser.Release(ctx, r.ProductID, r.Quantity)
		if err == nil || errors.Is(err, inventory.ErrProductGone) {
			return attempt + 1, nil
		}
		c.log.Warn("release attempt failed",
			zap.String("product_id", r.ProductID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return c.maxAttempts, err
}

func (c *Compensator) recordDrift(ctx context.Context, d models.StockDrift) {
	if c.drifts != nil {
		if err := c.drifts.InsertDrift(ctx, &d); err != nil {
			// The log line is then the only record left.
			c.log.Error("could not persist drift",
				zap.String("product_id", d.ProductID),
				zap.Int("quantity", d.Quantity),
				zap.Error(err),
			)
		}
	}
	c.bus.PublishDrift(d)
}

// Backoff is base·2^attempt plus up to half of that again as jitter.
func Backoff(base time.Duration, attempt int) time.Duration {
	exp := base * time.Duration(1<<attempt)
	if exp <= 1 {
		return exp
	}
	return exp + time.Duration(rand.Int63n(int64(exp/2)))
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
