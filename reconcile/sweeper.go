package reconcile

import (
	"context"
	"errors"
	"fmt"
	"storefront/apperror"
	"storefront/config"
	"storefront/inventory"
	"storefront/models"
	"storefront/repository"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// OrderFinder tells the sweeper whether an unconfirmed order was written.
type OrderFinder interface {
	FindOrder(ctx context.Context, id string) (*models.Order, error)
}

// Sweeper periodically retries open drift records.
type Sweeper struct {
	drifts   repository.DriftRepository
	releaser Releaser
	orders   OrderFinder
	log      *zap.Logger
	spec     string
	timeout  time.Duration

	sched *cron.Cron
	pool  *ants.Pool
}

type SweepResult struct {
	Resolved int
	Failed   int
}

func NewSweeper(drifts repository.DriftRepository, releaser Releaser, orders OrderFinder, cfg config.ReconcileConfig, log *zap.Logger) (*Sweeper, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := cronParser.Parse(cfg.SweepSpec); err != nil {
		return nil, fmt.Errorf("drift sweep spec %q: %w", cfg.SweepSpec, err)
	}
	workers := cfg.SweepWorkers
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	log = log.Named("sweeper")
	return &Sweeper{
		drifts:   drifts,
		releaser: releaser,
		orders:   orders,
		log:      log,
		spec:     cfg.SweepSpec,
		timeout:  cfg.Timeout,
		pool:     pool,
		sched: cron.New(
			cron.WithParser(cronParser),
			cron.WithChain(cron.Recover(cronLogger{log.Sugar()}), cron.SkipIfStillRunning(cronLogger{log.Sugar()})),
		),
	}, nil
}

func (s *Sweeper) Start() error {
	_, err := s.sched.AddFunc(s.spec, func() {
		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		res, err := s.Sweep(ctx)
		if err != nil {
			s.log.Error("drift sweep failed", zap.Error(err))
			return
		}
		if res.Resolved > 0 || res.Failed > 0 {
			s.log.Info("drift sweep done", zap.Int("resolved", res.Resolved), zap.Int("failed", res.Failed))
		}
	})
	if err != nil {
		return err
	}
	s.sched.Start()
	s.log.Info("drift sweeper started", zap.String("spec", s.spec))
	return nil
}

// Stop waits for a running sweep and releases the worker pool.
func (s *Sweeper) Stop() {
	<-s.sched.Stop().Done()
	s.pool.Release()
}

// Sweep makes one release attempt for every open drift record.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	open, err := s.drifts.ListDrifts(ctx, models.DriftOpen)
	if err != nil {
		return SweepResult{}, err
	}

	var resolved, failed atomic.Int32
	var wg sync.WaitGroup
	for _, d := range open {
		d := d
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			if s.retry(ctx, d) {
				resolved.Add(1)
			} else {
				failed.Add(1)
			}
		})
		if err != nil {
			wg.Done()
			failed.Add(1)
			s.log.Error("submit drift retry", zap.String("drift_id", d.ID), zap.Error(err))
		}
	}
	wg.Wait()
	return SweepResult{Resolved: int(resolved.Load()), Failed: int(failed.Load())}, nil
}

func (s *Sweeper) retry(ctx context.Context, d models.StockDrift) bool {
	if d.Unconfirmed {
		placed, err := s.orderExists(ctx, d.OrderID)
		if err != nil {
			s.recordAttempt(ctx, d, err)
			return false
		}
		if placed {
			// The order was written after all; its stock stays taken.
			return s.resolve(ctx, d, "drift resolved, order exists")
		}
	}

	err := s.releaser.Release(ctx, d.ProductID, d.Quantity)
	if err != nil && !errors.Is(err, inventory.ErrProductGone) {
		s.recordAttempt(ctx, d, err)
		return false
	}
	return s.resolve(ctx, d, "drift resolved")
}

func (s *Sweeper) orderExists(ctx context.Context, orderID string) (bool, error) {
	if s.orders == nil {
		return false, errors.New("no order store to confirm the order against")
	}
	_, err := s.orders.FindOrder(ctx, orderID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperror.ErrOrderNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Sweeper) recordAttempt(ctx context.Context, d models.StockDrift, err error) {
	if rerr := s.drifts.RecordDriftAttempt(ctx, d.ID, err.Error()); rerr != nil {
		s.log.Error("record drift attempt", zap.String("drift_id", d.ID), zap.Error(rerr))
	}
	s.log.Warn("drift still open",
		zap.String("drift_id", d.ID),
		zap.String("product_id", d.ProductID),
		zap.Error(err),
	)
}

func (s *Sweeper) resolve(ctx context.Context, d models.StockDrift, msg string) bool {
	if err := s.drifts.ResolveDrift(ctx, d.ID, time.Now()); err != nil {
		// The stock is settled; retrying on the next sweep would
		// over-restore, so this needs an operator.
		s.log.Error("drift settled but not marked resolved",
			zap.String("drift_id", d.ID),
			zap.String("product_id", d.ProductID),
			zap.Int("quantity", d.Quantity),
			zap.Error(err),
		)
		return false
	}
	s.log.Info(msg,
		zap.String("drift_id", d.ID),
		zap.String("product_id", d.ProductID),
		zap.Int("quantity", d.Quantity),
	)
	return true
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
