package controllers

import (
	"errors"
	"net/http"
	"storefront/apperror"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statusByCode = map[apperror.Code]int{
	apperror.CodeEmptyCart:             http.StatusBadRequest,
	apperror.CodeInvalidQuantity:       http.StatusBadRequest,
	apperror.CodeInvalidPrice:          http.StatusBadRequest,
	apperror.CodeInvalidTotal:          http.StatusBadRequest,
	apperror.CodeIncompleteShipping:    http.StatusBadRequest,
	apperror.CodeInvalidStatus:         http.StatusBadRequest,
	apperror.CodeInvalidRequest:        http.StatusBadRequest,
	apperror.CodeNotAuthenticated:      http.StatusUnauthorized,
	apperror.CodeNotAuthorized:         http.StatusForbidden,
	apperror.CodeProductNotFound:       http.StatusNotFound,
	apperror.CodeOrderNotFound:         http.StatusNotFound,
	apperror.CodeOutOfStock:            http.StatusConflict,
	apperror.CodeOrderLocked:           http.StatusConflict,
	apperror.CodeIdempotencyInProgress: http.StatusConflict,
	apperror.CodeStatusConflict:        http.StatusConflict,
	apperror.CodePriceMismatch:         http.StatusUnprocessableEntity,
}

func ok(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"message": message, "data": data})
}

// fail writes err as the error envelope. Errors without a known code are
// logged and reported as INTERNAL without their text.
func (h *Handlers) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	var rec *apperror.ReconciliationError
	if errors.As(err, &rec) {
		h.logger().Error("request left stock drift", zap.String("path", c.FullPath()), zap.Error(err))
		body := gin.H{"error": err.Error(), "code": apperror.CodeReconciliationFailure}
		if cause := apperror.CodeOf(rec.Cause); cause != "" {
			body["cause"] = cause
		}
		if pid := apperror.ProductOf(rec.Cause); pid != "" {
			body["productId"] = pid
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	code := apperror.CodeOf(err)
	status, known := statusByCode[code]
	if !known {
		h.logger().Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": "INTERNAL"})
		return
	}

	body := gin.H{"error": err.Error(), "code": code}
	if pid := apperror.ProductOf(err); pid != "" {
		body["productId"] = pid
	}
	c.JSON(status, body)
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": apperror.CodeInvalidRequest})
}
