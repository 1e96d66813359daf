package service

import (
	"strings"
	"time"

	"github.com/akylbek/payment-system/refund-reconciler/internal/gateway"
	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
)

const defaultCurrency = "INR"

// MapStatus maps a gateway refund status; unknown values are treated as pending.
func MapStatus(s string) models.RefundStatus {
	switch strings.ToLower(s) {
	case "processed":
		return models.RefundProcessed
	case "failed":
		return models.RefundFailed
	default:
		return models.RefundPending
	}
}

func mapSpeedRequested(s string) *models.RefundSpeed {
	switch strings.ToLower(s) {
	case "optimum":
		return speedPtr(models.SpeedOptimum)
	case "normal":
		return speedPtr(models.SpeedNormal)
	}
	return nil
}

func mapSpeedProcessed(s string) *models.RefundSpeed {
	switch strings.ToLower(s) {
	case "instant":
		return speedPtr(models.SpeedOptimum)
	case "normal":
		return speedPtr(models.SpeedNormal)
	}
	return nil
}

func gatewaySpeed(s *models.RefundSpeed) string {
	if s == nil {
		return ""
	}
	switch *s {
	case models.SpeedOptimum:
		return "optimum"
	case models.SpeedNormal:
		return "normal"
	}
	return ""
}

// eventStatus prefers the webhook event name over the entity's own status field.
func eventStatus(event, entityStatus string) models.RefundStatus {
	ev := strings.ToLower(event)
	switch {
	case strings.Contains(ev, "refund.processed"):
		return models.RefundProcessed
	case strings.Contains(ev, "refund.failed"):
		return models.RefundFailed
	case strings.Contains(ev, "refund.created"):
		return models.RefundPending
	}
	return MapStatus(entityStatus)
}

// refundFromGateway builds a local record in the given status. Terminal timestamps are
// stamped only for the status being entered.
func refundFromGateway(r *gateway.RefundResponse, payment *models.Payment, status models.RefundStatus, now time.Time) *models.Refund {
	refund := &models.Refund{
		RefundID:         r.ID,
		PaymentID:        r.PaymentID,
		Amount:           r.Amount,
		Currency:         strings.ToUpper(r.Currency),
		Status:           status,
		SpeedRequested:   mapSpeedRequested(r.SpeedRequested),
		SpeedProcessed:   mapSpeedProcessed(r.SpeedProcessed),
		Receipt:          r.Receipt,
		CreatedAt:        now,
		AcquirerData:     r.AcquirerData,
		BatchID:          r.BatchID,
		ErrorCode:        r.ErrorCode,
		ErrorDescription: r.ErrorDescription,
	}
	if r.CreatedAt > 0 {
		refund.CreatedAt = time.Unix(r.CreatedAt, 0).UTC()
	}
	if payment != nil {
		refund.UserEmail = payment.UserEmail
		refund.UserID = payment.UserID
		if refund.PaymentID == "" {
			refund.PaymentID = payment.GatewayPaymentID
		}
		if refund.Currency == "" {
			refund.Currency = payment.Currency
		}
	}
	if refund.Currency == "" {
		refund.Currency = defaultCurrency
	}

	switch status {
	case models.RefundProcessed:
		refund.ProcessedAt = timePtr(now)
	case models.RefundFailed:
		refund.FailedAt = timePtr(now)
	}
	return refund
}

func speedPtr(s models.RefundSpeed) *models.RefundSpeed { return &s }

func timePtr(t time.Time) *time.Time { return &t }
