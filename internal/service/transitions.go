package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-reconciler/internal/gateway"
	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
	"github.com/akylbek/payment-system/refund-reconciler/internal/telemetry"
	"github.com/akylbek/payment-system/refund-reconciler/internal/webhook"
)

// maxTransitionAttempts bounds re-reads after losing a compare-and-swap.
const maxTransitionAttempts = 3

// HandleWebhook verifies and applies a gateway refund callback. Signature and secret
// failures are returned before the body is looked at.
func (e *Engine) HandleWebhook(ctx context.Context, signature string, rawBody []byte) (*models.WebhookResult, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "refund.webhook")
	defer span.End()

	if err := e.verifier.Verify(ctx, signature, rawBody); err != nil {
		telemetry.WebhooksReceived.WithLabelValues("rejected").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	env, err := webhook.Decode(rawBody)
	if err != nil {
		telemetry.WebhooksReceived.WithLabelValues("error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	entity := &env.Payload.Refund.Entity
	target := eventStatus(env.Event, entity.Status)
	span.SetAttributes(
		attribute.String("event", env.Event),
		attribute.String("refund_id", entity.ID),
		attribute.String("target_status", string(target)),
	)

	result, err := e.applyGatewayRefund(ctx, entity, target, models.ReasonAutoSyncedWebhook, true)
	if err != nil {
		telemetry.WebhooksReceived.WithLabelValues("error").Inc()
		span.SetStatus(codes.Error, err.Error())
		telemetry.Logger.Error("Failed to apply refund webhook",
			zap.String("refund_id", entity.ID),
			zap.String("event", env.Event),
			zap.Error(err),
		)
		return nil, err
	}

	if result.Duplicate {
		telemetry.WebhooksReceived.WithLabelValues("duplicate").Inc()
	} else {
		telemetry.WebhooksReceived.WithLabelValues("applied").Inc()
	}
	return result, nil
}

// applyGatewayRefund brings the local record for entity to target. A missing record
// is synthesized in the target status; notifyOnInsert controls whether that insert
// counts as a status change for side effects.
func (e *Engine) applyGatewayRefund(ctx context.Context, entity *gateway.RefundResponse, target models.RefundStatus,
	syncReason string, notifyOnInsert bool) (*models.WebhookResult, error) {
	existing, err := e.refunds.Get(ctx, entity.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("get refund %s: %w", entity.ID, err)
	}

	if existing == nil {
		var payment *models.Payment
		if entity.PaymentID != "" {
			payment, err = e.payments.GetByGatewayID(ctx, entity.PaymentID)
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				return nil, fmt.Errorf("look up payment %s: %w", entity.PaymentID, err)
			}
		}

		refund := refundFromGateway(entity, payment, target, e.now())
		refund.Reason = syncReason
		refund.ProcessedBy = models.ProcessedBySystem

		created, err := e.refunds.Create(ctx, refund)
		if err != nil {
			return nil, fmt.Errorf("create refund %s: %w", refund.RefundID, err)
		}
		if created {
			telemetry.Logger.Info("Recorded refund unknown locally",
				zap.String("refund_id", refund.RefundID),
				zap.String("payment_id", refund.PaymentID),
				zap.String("status", string(target)),
				zap.String("reason", syncReason),
			)
			e.publish(ctx, refund, "")
			if notifyOnInsert && target.IsTerminal() {
				e.dispatcher.NotifyRefund(ctx, refund, statusEvent(target))
			}
			return &models.WebhookResult{Success: true, Created: true, RefundID: refund.RefundID, Status: target}, nil
		}

		// lost the insert race; continue against the winner's row
		existing, err = e.refunds.Get(ctx, entity.ID)
		if err != nil {
			return nil, fmt.Errorf("get refund %s: %w", entity.ID, err)
		}
	}

	return e.transition(ctx, existing, entity, target)
}

func (e *Engine) transition(ctx context.Context, current *models.Refund, entity *gateway.RefundResponse,
	target models.RefundStatus) (*models.WebhookResult, error) {
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		if current.Status == target {
			return &models.WebhookResult{Success: true, Duplicate: true, RefundID: current.RefundID, Status: target}, nil
		}
		if current.Status.IsTerminal() && !target.IsTerminal() {
			telemetry.Logger.Info("Ignoring out-of-order refund event",
				zap.String("refund_id", current.RefundID),
				zap.String("status", string(current.Status)),
				zap.String("reported_status", string(target)),
			)
			return &models.WebhookResult{Success: true, Duplicate: true, RefundID: current.RefundID, Status: current.Status}, nil
		}

		now := e.now()
		t := models.StatusTransition{RefundID: current.RefundID, From: current.Status, To: target}
		switch target {
		case models.RefundProcessed:
			t.ProcessedAt = &now
		case models.RefundFailed:
			t.FailedAt = &now
			t.ErrorCode = entity.ErrorCode
			t.ErrorDescription = entity.ErrorDescription
		}

		ok, err := e.refunds.UpdateStatus(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("update refund %s to %s: %w", current.RefundID, target, err)
		}
		if ok {
			updated := applyTransition(current, t)
			if current.Status.IsTerminal() {
				telemetry.StatusAnomalies.WithLabelValues(string(current.Status), string(target)).Inc()
				telemetry.Logger.Warn("Refund moved between terminal statuses",
					zap.String("refund_id", current.RefundID),
					zap.String("from_status", string(current.Status)),
					zap.String("to_status", string(target)),
				)
			} else {
				telemetry.Logger.Info("Refund status transition",
					zap.String("refund_id", current.RefundID),
					zap.String("from_status", string(current.Status)),
					zap.String("to_status", string(target)),
				)
			}
			e.publish(ctx, updated, current.Status)
			if target.IsTerminal() {
				e.dispatcher.NotifyRefund(ctx, updated, statusEvent(target))
			}
			return &models.WebhookResult{Success: true, RefundID: current.RefundID, Status: target}, nil
		}

		// another writer moved the row; re-evaluate against what it wrote
		current, err = e.refunds.Get(ctx, current.RefundID)
		if err != nil {
			return nil, fmt.Errorf("re-read refund %s: %w", t.RefundID, err)
		}
	}
	return nil, fmt.Errorf("refund %s: status kept changing concurrently, gave up after %d attempts",
		current.RefundID, maxTransitionAttempts)
}

func applyTransition(r *models.Refund, t models.StatusTransition) *models.Refund {
	updated := *r
	updated.Status = t.To
	if updated.ProcessedAt == nil {
		updated.ProcessedAt = t.ProcessedAt
	}
	if updated.FailedAt == nil {
		updated.FailedAt = t.FailedAt
	}
	if t.ErrorCode != nil {
		updated.ErrorCode = t.ErrorCode
	}
	if t.ErrorDescription != nil {
		updated.ErrorDescription = t.ErrorDescription
	}
	return &updated
}

func statusEvent(s models.RefundStatus) string {
	switch s {
	case models.RefundProcessed:
		return "processed"
	case models.RefundFailed:
		return "failed"
	}
	return ""
}
