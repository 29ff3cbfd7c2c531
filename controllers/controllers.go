package controllers

import (
	"context"
	"net/http"
	"storefront/checkout"
	"storefront/inventory"
	"storefront/orderstatus"
	"storefront/repository"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers holds the dependencies of every HTTP handler.
type Handlers struct {
	Products repository.ProductRepository
	Orders   repository.OrderRepository
	Drifts   repository.DriftRepository
	Stock    *inventory.Ledger
	Placer   *checkout.Placer
	Status   *orderstatus.Service
	// Ping reports whether the backing store is reachable. Nil means always healthy.
	Ping func(ctx context.Context) error
	Log  *zap.Logger
}

func (h *Handlers) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func (h *Handlers) Healthz(c *gin.Context) {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			h.logger().Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
