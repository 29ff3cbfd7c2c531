package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"storefront/alert"
	"storefront/checkout"
	"storefront/config"
	"storefront/controllers"
	"storefront/database"
	"storefront/events"
	"storefront/idempotency"
	"storefront/inventory"
	"storefront/logger"
	"storefront/middleware"
	"storefront/models"
	"storefront/orderstatus"
	"storefront/reconcile"
	"storefront/repository"
	"storefront/routes"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	envErr := config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("load config", zap.Error(err))
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	if envErr != nil {
		log.Warn("no .env file loaded", zap.Error(envErr))
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("storefront stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Disconnect(shutdownCtx); err != nil {
			log.Warn("disconnect mongo", zap.Error(err))
		}
	}()
	if err := db.EnsureIndexes(ctx); err != nil {
		return err
	}

	products := repository.NewMongoProducts(db.ProductCollection)
	orders := repository.NewMongoOrders(db.OrderCollection)
	drifts := repository.NewMongoDrifts(db.DriftCollection)

	bus := events.NewBus(log)
	defer bus.Wait()

	ledger := inventory.NewLedger(products, cfg.Checkout.StoreOpTimeout, log)
	compensator := reconcile.NewCompensator(ledger, drifts, bus, cfg.Reconcile, log)

	var strategy checkout.Strategy
	switch {
	case cfg.Checkout.Strategy == config.StrategyTransactional && db.SupportsTransactions(ctx):
		strategy = checkout.NewTransactionalStrategy(db.Client, ledger, orders)
	case cfg.Checkout.Strategy == config.StrategyTransactional:
		log.Warn("mongo deployment has no transactions, falling back to compensating placement")
		fallthrough
	default:
		strategy = checkout.NewCompensatingStrategy(ledger, orders, compensator, cfg.Checkout.StoreOpTimeout)
	}

	var keys idempotency.Store
	if cfg.RedisURL != "" {
		redisKeys, err := idempotency.NewRedisStore(cfg.RedisURL, idempotency.DefaultTTL, idempotency.DefaultPendingTTL)
		if err != nil {
			return err
		}
		defer redisKeys.Close()
		keys = redisKeys
	} else {
		log.Info("REDIS_URL not set, idempotency keys are kept in memory")
		keys = idempotency.NewMemoryStore(idempotency.DefaultTTL, idempotency.DefaultPendingTTL)
	}

	validator := checkout.NewValidator(products, models.PricingPolicy(cfg.Checkout.Pricing))
	placer := checkout.NewPlacer(validator, strategy,
		checkout.WithIdempotency(keys, orders),
		checkout.WithEvents(bus),
		checkout.WithTimeout(cfg.Checkout.PlacementTimeout),
		checkout.WithLogger(log),
	)
	status := orderstatus.NewService(orderstatus.Machine{}, orders, compensator, bus, log)

	if err := alert.NewNotifier(cfg.Alert, log).Subscribe(bus); err != nil {
		return err
	}
	if err := events.Audit(bus, log); err != nil {
		return err
	}

	sweeper, err := reconcile.NewSweeper(drifts, ledger, orders, cfg.Reconcile, log)
	if err != nil {
		return err
	}
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	handlers := &controllers.Handlers{
		Products: products,
		Orders:   orders,
		Drifts:   drifts,
		Stock:    ledger,
		Placer:   placer,
		Status:   status,
		Ping:     db.Ping,
		Log:      log,
	}

	if cfg.Logger.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(log), middleware.Recovery(log))
	_ = r.SetTrustedProxies(nil)
	routes.RegisterRoutes(r, handlers, []byte(cfg.JWTSecret))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("storefront listening",
			zap.String("addr", srv.Addr),
			zap.String("strategy", cfg.Checkout.Strategy),
			zap.String("pricing", cfg.Checkout.Pricing),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
