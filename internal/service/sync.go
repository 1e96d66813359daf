package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
	"github.com/akylbek/payment-system/refund-reconciler/internal/telemetry"
)

// CheckPaymentRefundStatus reconciles a payment's refunds with the gateway and returns
// the summary from the local store. When the gateway is unreachable it returns the
// last-known local summary with SyncedWithGateway=false.
func (e *Engine) CheckPaymentRefundStatus(ctx context.Context, paymentID string) (*models.PaymentRefundsResponse, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "refund.sync", trace.WithAttributes(attribute.String("payment_id", paymentID)))
	defer span.End()

	payment, err := e.payments.GetByGatewayID(ctx, paymentID)
	if errors.Is(err, models.ErrNotFound) {
		return &models.PaymentRefundsResponse{Success: false, Message: fmt.Sprintf("Payment not found: %s", paymentID)}, nil
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("look up payment %s: %w", paymentID, err)
	}

	synced := true
	message := "Refunds synced with gateway"
	items, err := e.gateway.ListRefunds(ctx, paymentID)
	if err != nil {
		synced = false
		message = "Gateway unavailable; showing last known refund state"
		telemetry.Logger.Warn("Gateway refund listing failed, falling back to local state",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
	} else {
		var inserted int
		for i := range items {
			item := &items[i]
			if item.PaymentID == "" {
				item.PaymentID = paymentID
			}
			res, err := e.applyGatewayRefund(ctx, item, MapStatus(item.Status), models.ReasonAutoSyncedGateway, false)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			if res.Created {
				inserted++
			}
		}
		if inserted > 0 {
			telemetry.SyncInserted.Add(float64(inserted))
			telemetry.Logger.Info("Inserted gateway refunds missing locally",
				zap.String("payment_id", paymentID),
				zap.Int("count", inserted),
			)
		}
		span.SetAttributes(attribute.Int("gateway_refunds", len(items)), attribute.Int("inserted", inserted))
	}

	summary, err := e.summarize(ctx, payment)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	summary.SyncedWithGateway = synced
	return &models.PaymentRefundsResponse{Success: true, Message: message, Summary: summary}, nil
}
