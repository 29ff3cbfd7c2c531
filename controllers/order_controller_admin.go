package controllers

import (
	"net/http"
	"storefront/middleware"
	"storefront/models"
	"storefront/orderstatus"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) GetOrdersAdmin(c *gin.Context) {
	orders, err := h.Orders.ListOrders(c.Request.Context(), "")
	if err != nil {
		h.fail(c, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "count": len(orders), "data": orders})
}

func (h *Handlers) GetOrderByIDAdmin(c *gin.Context) {
	order, err := h.Orders.FindOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Fetch success",
		"data":         order,
		"nextStatuses": orderstatus.Next(order.Status),
	})
}

func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	order, err := h.Status.UpdateStatus(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), body.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order status updated", order)
}

func (h *Handlers) CancelOrderAdmin(c *gin.Context) {
	order, err := h.Status.Cancel(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order canceled", order)
}
