package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
	"github.com/akylbek/payment-system/refund-reconciler/internal/telemetry"
	"github.com/akylbek/payment-system/refund-reconciler/internal/webhook"
)

const maxWebhookBody = 1 << 20

type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, signature string, rawBody []byte) (*models.WebhookResult, error)
}

type WebhookHandler struct {
	processor WebhookProcessor
}

func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// HandleGatewayWebhook passes the body through byte-for-byte; the signature covers
// the exact bytes the gateway sent.
func (h *WebhookHandler) HandleGatewayWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		telemetry.Logger.Error("Error reading webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unreadable body"})
		return
	}

	result, err := h.processor.HandleWebhook(c.Request.Context(), c.GetHeader(webhook.SignatureHeader), body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
