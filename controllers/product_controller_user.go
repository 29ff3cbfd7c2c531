package controllers

import (
	"net/http"
	"storefront/models"
	"storefront/repository"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) GetProductsPublic(c *gin.Context) {
	products, err := h.Products.ListProducts(c.Request.Context(), repository.ProductFilter{
		Category: c.Query("category"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	ok(c, http.StatusOK, "Fetch success", products)
}

func (h *Handlers) GetProductPublic(c *gin.Context) {
	product, err := h.Products.FindProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Fetch success", product)
}
