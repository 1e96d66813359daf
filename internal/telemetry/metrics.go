package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RefundsInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_initiated_total",
		Help: "Refund initiation requests by outcome.",
	}, []string{"outcome"})

	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_webhooks_total",
		Help: "Gateway refund webhooks by result.",
	}, []string{"result"})

	// StatusAnomalies counts terminal-to-different-terminal corrections; alert on any increase.
	StatusAnomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_status_anomalies_total",
		Help: "Refunds moved from one terminal status to another by the gateway.",
	}, []string{"from", "to"})

	SideEffects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_side_effects_total",
		Help: "Best-effort side effects by kind and result.",
	}, []string{"kind", "result"})

	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_gateway_requests_total",
		Help: "Gateway API calls by operation and result.",
	}, []string{"op", "result"})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "refund_gateway_request_duration_seconds",
		Help:    "Gateway API call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	SyncInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refund_sync_inserted_total",
		Help: "Gateway refunds inserted locally by reconciliation.",
	})
)
