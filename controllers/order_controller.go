package controllers

import (
	"net/http"
	"storefront/apperror"
	"storefront/middleware"
	"storefront/models"

	"github.com/gin-gonic/gin"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// PlaceOrder creates a Pending order from the submitted cart. A request
// carrying an Idempotency-Key already seen for this user returns the
// earlier order with 200 instead of 201.
func (h *Handlers) PlaceOrder(c *gin.Context) {
	var cart models.Cart
	if err := c.ShouldBindJSON(&cart); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	identity := middleware.CurrentIdentity(c)
	order, replayed, err := h.Placer.PlaceOnce(c.Request.Context(), identity, cart, c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		h.fail(c, err)
		return
	}

	if replayed {
		ok(c, http.StatusOK, "Order already placed", order)
		return
	}
	ok(c, http.StatusCreated, "Order placed", order)
}

func (h *Handlers) GetOrders(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	orders, err := h.Orders.ListOrders(c.Request.Context(), identity.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	ok(c, http.StatusOK, "Fetch success", orders)
}

// GetOrder returns one of the caller's orders. Someone else's order reads
// as not found so ids cannot be probed.
func (h *Handlers) GetOrder(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	order, err := h.Orders.FindOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if order.UserID != identity.UserID && !identity.IsAdmin() {
		h.fail(c, apperror.ErrOrderNotFound)
		return
	}
	ok(c, http.StatusOK, "Fetch success", order)
}
