package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-reconciler/internal/gateway"
	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
	"github.com/akylbek/payment-system/refund-reconciler/internal/telemetry"
	"github.com/akylbek/payment-system/refund-reconciler/internal/webhook"
)

// writeError maps an infrastructure error to a status code. Business failures never
// reach here; they are 200 responses with success=false.
func writeError(c *gin.Context, err error) {
	var (
		verr  *models.ValidationError
		gwErr *gateway.Error
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": verr.Message})
	case errors.Is(err, webhook.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	case errors.As(err, &gwErr):
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": gwErr.Message})
	default:
		telemetry.Logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}
