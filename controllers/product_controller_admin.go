package controllers

import (
	"net/http"
	"storefront/apperror"
	"storefront/models"
	"storefront/repository"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type productRequest struct {
	Name            string  `json:"name" binding:"required"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	Image           string  `json:"image"`
	Price           float64 `json:"price"`
	ListPrice       float64 `json:"listPrice" binding:"required"`
	DiscountPercent float64 `json:"discountPercent"`
	AvailableStock  int     `json:"availableStock"`
}

func (h *Handlers) CreateProduct(c *gin.Context) {
	var body productRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "name and listPrice are required")
		return
	}
	if body.AvailableStock < 0 {
		h.fail(c, apperror.ErrInvalidQuantity)
		return
	}

	now := time.Now().UTC()
	product := models.Product{
		ID:              primitive.NewObjectID().Hex(),
		Name:            strings.TrimSpace(body.Name),
		Slug:            slug.Make(body.Name),
		Description:     body.Description,
		Category:        body.Category,
		Image:           body.Image,
		Price:           body.Price,
		ListPrice:       body.ListPrice,
		DiscountPercent: body.DiscountPercent,
		AvailableStock:  body.AvailableStock,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := product.ApplyPricing(); err != nil {
		h.fail(c, err)
		return
	}

	if err := h.Products.InsertProduct(c.Request.Context(), &product); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Product created", product)
}

func (h *Handlers) GetProductsAdmin(c *gin.Context) {
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
	c.JSON(http.StatusOK, gin.H{
		"message": "Fetch products success",
		"count":   len(products),
		"data":    products,
	})
}

// UpdateProduct patches catalog fields. Stock is not accepted here; use
// AdjustStock so the change goes through the ledger.
func (h *Handlers) UpdateProduct(c *gin.Context) {
	var body struct {
		Name            *string  `json:"name"`
		Description     *string  `json:"description"`
		Category        *string  `json:"category"`
		Image           *string  `json:"image"`
		Price           *float64 `json:"price"`
		ListPrice       *float64 `json:"listPrice"`
		DiscountPercent *float64 `json:"discountPercent"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	product, err := h.Products.FindProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	if body.Name != nil {
		product.Name = strings.TrimSpace(*body.Name)
		product.Slug = slug.Make(product.Name)
	}
	if body.Description != nil {
		product.Description = *body.Description
	}
	if body.Category != nil {
		product.Category = *body.Category
	}
	if body.Image != nil {
		product.Image = *body.Image
	}
	repriced := false
	if body.ListPrice != nil {
		product.ListPrice = *body.ListPrice
		repriced = true
	}
	if body.DiscountPercent != nil {
		product.DiscountPercent = *body.DiscountPercent
		repriced = true
	}
	switch {
	case body.Price != nil:
		product.Price = *body.Price
	case repriced:
		product.Price = 0
	}
	if err := product.ApplyPricing(); err != nil {
		h.fail(c, err)
		return
	}
	product.UpdatedAt = time.Now().UTC()

	if err := h.Products.UpdateProductDetails(c.Request.Context(), product); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product updated", product)
}

func (h *Handlers) DeleteProduct(c *gin.Context) {
	if err := h.Products.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

// AdjustStock applies {delta} to a product's available stock. A negative
// delta larger than the stock is refused with OUT_OF_STOCK.
func (h *Handlers) AdjustStock(c *gin.Context) {
	var body struct {
		Delta int `json:"delta"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	id := c.Param("id")
	stock, err := h.Stock.Adjust(c.Request.Context(), id, body.Delta)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger().Info("stock adjusted",
		zap.String("product_id", id),
		zap.Int("delta", body.Delta),
		zap.Int("stock", stock),
	)
	ok(c, http.StatusOK, "Stock updated", gin.H{"productId": id, "availableStock": stock})
}
