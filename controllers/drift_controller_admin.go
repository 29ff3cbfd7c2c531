package controllers

import (
	"net/http"
	"storefront/models"

	"github.com/gin-gonic/gin"
)

// GetDriftsAdmin lists stock drift records, open ones unless ?status= says otherwise.
func (h *Handlers) GetDriftsAdmin(c *gin.Context) {
	status := models.DriftStatus(c.DefaultQuery("status", string(models.DriftOpen)))
	if status != models.DriftOpen && status != models.DriftResolved {
		h.badRequest(c, "status must be open or resolved")
		return
	}

	drifts, err := h.Drifts.ListDrifts(c.Request.Context(), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	if drifts == nil {
		drifts = []models.StockDrift{}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "count": len(drifts), "data": drifts})
}
