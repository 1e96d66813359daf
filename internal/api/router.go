package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/refund-reconciler/internal/handlers"
	"github.com/akylbek/payment-system/refund-reconciler/internal/telemetry"
)

// Engine is everything the HTTP surface needs from the refund engine.
type Engine interface {
	handlers.RefundEngine
	handlers.WebhookProcessor
}

func NewRouter(engine Engine, reports handlers.RefundReports) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": telemetry.ServiceName})
	})

	refundHandler := handlers.NewRefundHandler(engine, reports)
	r.POST("/refunds", refundHandler.InitiateRefund)
	r.GET("/refunds", refundHandler.ListRefunds)
	r.GET("/refunds/metrics", refundHandler.Metrics)
	r.GET("/refunds/export", refundHandler.Export)
	r.GET("/refunds/:id", refundHandler.GetRefund)
	r.GET("/payments/:id/refunds", refundHandler.GetPaymentRefunds)
	r.POST("/payments/:id/refunds/sync", refundHandler.SyncPaymentRefunds)

	// Gateway callbacks
	webhookHandler := handlers.NewWebhookHandler(engine)
	r.POST("/webhooks/gateway", webhookHandler.HandleGatewayWebhook)

	return r
}
