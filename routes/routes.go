package routes

import (
	"storefront/controllers"
	"storefront/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, h *controllers.Handlers, jwtSecret []byte) {

	api := r.Group("/api")
	{
		api.GET("/healthz", h.Healthz)
		api.GET("/products", h.GetProductsPublic)
		api.GET("/products/:id", h.GetProductPublic)

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			protected.POST("/orders", h.PlaceOrder)
			protected.GET("/orders", h.GetOrders)
			protected.GET("/orders/:id", h.GetOrder)

			admin := protected.Group("/admin")
			admin.Use(middleware.AdminMiddleware())
			{
				admin.POST("/products", h.CreateProduct)
				admin.PUT("/products/:id", h.UpdateProduct)
				admin.DELETE("/products/:id", h.DeleteProduct)
				admin.GET("/products", h.GetProductsAdmin)
				admin.POST("/products/:id/stock", h.AdjustStock)

				admin.GET("/orders", h.GetOrdersAdmin)
				admin.GET("/orders/:id", h.GetOrderByIDAdmin)
				admin.PUT("/orders/:id/status", h.UpdateOrderStatus)
				admin.PUT("/orders/:id/cancel", h.CancelOrderAdmin)

				admin.GET("/drifts", h.GetDriftsAdmin)
			}
		}
	}
}
