package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-reconciler/internal/gateway"
	"github.com/akylbek/payment-system/refund-reconciler/internal/interfaces"
	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
	"github.com/akylbek/payment-system/refund-reconciler/internal/telemetry"
	"github.com/akylbek/payment-system/refund-reconciler/internal/webhook"
)

const defaultLockTTL = 30 * time.Second

// Engine owns refund state: it initiates refunds, applies gateway-reported
// transitions and reconciles local records with the gateway.
type Engine struct {
	refunds    interfaces.RefundStore
	payments   interfaces.PaymentLookup
	gateway    interfaces.RefundGateway
	verifier   *webhook.Verifier
	dispatcher *Dispatcher
	locker     interfaces.Locker
	publisher  interfaces.RefundEventPublisher
	lockTTL    time.Duration
	now        func() time.Time
}

// EngineDeps lists the engine's collaborators. Locker and Publisher may be nil.
type EngineDeps struct {
	Refunds    interfaces.RefundStore
	Payments   interfaces.PaymentLookup
	Gateway    interfaces.RefundGateway
	Verifier   *webhook.Verifier
	Dispatcher *Dispatcher
	Locker     interfaces.Locker
	Publisher  interfaces.RefundEventPublisher
	LockTTL    time.Duration
	Now        func() time.Time
}

func NewEngine(deps EngineDeps) *Engine {
	e := &Engine{
		refunds:    deps.Refunds,
		payments:   deps.Payments,
		gateway:    deps.Gateway,
		verifier:   deps.Verifier,
		dispatcher: deps.Dispatcher,
		locker:     deps.Locker,
		publisher:  deps.Publisher,
		lockTTL:    deps.LockTTL,
		now:        deps.Now,
	}
	if e.lockTTL <= 0 {
		e.lockTTL = defaultLockTTL
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e
}

type InitiateRefundInput struct {
	AdminEmail string
	PaymentID  string
	// Amount nil means refund whatever remains refundable.
	Amount  *models.Money
	Speed   *models.RefundSpeed
	Reason  string
	Notes   string
	Receipt string
}

func (e *Engine) InitiateRefund(ctx context.Context, in InitiateRefundInput) (*models.RefundResponse, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "refund.initiate", trace.WithAttributes(
		attribute.String("payment_id", in.PaymentID),
		attribute.String("admin", in.AdminEmail),
	))
	defer span.End()

	if in.PaymentID == "" {
		return nil, &models.ValidationError{Message: "payment id is required"}
	}

	payment, err := e.payments.GetByGatewayID(ctx, in.PaymentID)
	if errors.Is(err, models.ErrNotFound) {
		return e.reject("payment_not_found", fmt.Sprintf("Payment not found: %s", in.PaymentID)), nil
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("look up payment %s: %w", in.PaymentID, err)
	}
	if payment.Amount == nil {
		return e.reject("amount_unknown", "Payment amount is unknown; cannot compute refundable balance"), nil
	}

	refund, rejection, err := e.createLocked(ctx, payment, in)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		telemetry.RefundsInitiated.WithLabelValues("error").Inc()
		return nil, err
	}
	if rejection != nil {
		return rejection, nil
	}
	span.SetAttributes(attribute.String("refund_id", refund.RefundID))

	e.dispatcher.NotifyRefund(ctx, refund, "initiated")
	outcome := e.dispatcher.CancelSubscription(ctx, in.AdminEmail, refund.UserEmail)

	msg := fmt.Sprintf("Refund of %s %s initiated successfully.", refund.Amount.Major(), refund.Currency)
	if outcome.Success {
		msg += " User subscription cancelled."
	} else {
		msg += fmt.Sprintf(" Subscription cancellation failed after %d attempt(s): %s. Please cancel the user's subscription manually.",
			outcome.Attempts, outcome.LastError)
	}

	telemetry.RefundsInitiated.WithLabelValues("success").Inc()
	return &models.RefundResponse{Success: true, Message: msg, Refund: models.NewRefundDTO(refund)}, nil
}

// createLocked runs the balance check, gateway call and insert while holding the
// payment's lock, so two admins cannot both spend the same remaining balance.
func (e *Engine) createLocked(ctx context.Context, payment *models.Payment, in InitiateRefundInput) (*models.Refund, *models.RefundResponse, error) {
	if e.locker != nil {
		release, ok, err := e.locker.Acquire(ctx, "refund_lock:"+payment.GatewayPaymentID, e.lockTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("acquire refund lock for payment %s: %w", payment.GatewayPaymentID, err)
		}
		if !ok {
			return nil, e.reject("locked", "Another refund for this payment is in progress; try again shortly"), nil
		}
		defer release()
	}

	refunded, err := e.refunds.TotalRefundedForPayment(ctx, payment.GatewayPaymentID)
	if err != nil {
		return nil, nil, fmt.Errorf("total refunded for payment %s: %w", payment.GatewayPaymentID, err)
	}
	remaining := *payment.Amount - refunded
	if remaining <= 0 {
		return nil, e.reject("fully_refunded", "Payment has already been fully refunded"), nil
	}

	amount := remaining
	if in.Amount != nil {
		amount = *in.Amount
	}
	if amount <= 0 {
		return nil, e.reject("invalid_amount", "Refund amount must be greater than zero"), nil
	}
	if amount > remaining {
		return nil, e.reject("exceeds_balance", fmt.Sprintf("Refund amount cannot exceed remaining refundable amount of %s %s",
			remaining.Major(), payment.Currency)), nil
	}

	var notes map[string]string
	if in.Reason != "" || in.Notes != "" {
		notes = map[string]string{}
		if in.Reason != "" {
			notes["reason"] = in.Reason
		}
		if in.Notes != "" {
			notes["notes"] = in.Notes
		}
	}
	resp, err := e.gateway.CreateRefund(ctx, gateway.CreateRefundRequest{
		PaymentID: payment.GatewayPaymentID,
		Amount:    amount,
		Speed:     gatewaySpeed(in.Speed),
		Notes:     notes,
		Receipt:   in.Receipt,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create refund for payment %s: %w", payment.GatewayPaymentID, err)
	}

	refund := refundFromGateway(resp, payment, MapStatus(resp.Status), e.now())
	refund.ProcessedBy = in.AdminEmail
	refund.Reason = in.Reason
	refund.Notes = in.Notes
	if refund.Receipt == nil && in.Receipt != "" {
		receipt := in.Receipt
		refund.Receipt = &receipt
	}
	if refund.SpeedRequested == nil {
		refund.SpeedRequested = in.Speed
	}

	created, err := e.refunds.Create(ctx, refund)
	if err != nil {
		telemetry.Logger.Error("Refund initiated at gateway but not recorded",
			zap.String("refund_id", refund.RefundID),
			zap.String("payment_id", refund.PaymentID),
			zap.Error(err),
		)
		rejection := e.reject("unrecorded", fmt.Sprintf(
			"Refund %s was initiated at the gateway but could not be recorded locally (%v); run a gateway sync for this payment before retrying",
			refund.RefundID, err))
		rejection.Refund = models.NewRefundDTO(refund)
		return nil, rejection, nil
	}
	if !created {
		// a webhook or sync recorded it first; its row is authoritative
		if existing, err := e.refunds.Get(ctx, refund.RefundID); err == nil {
			refund = existing
		}
	} else {
		e.publish(ctx, refund, "")
	}

	telemetry.Logger.Info("Refund initiated",
		zap.String("refund_id", refund.RefundID),
		zap.String("payment_id", refund.PaymentID),
		zap.Int64("amount", int64(refund.Amount)),
		zap.String("status", string(refund.Status)),
	)
	return refund, nil, nil
}

func (e *Engine) reject(outcome, message string) *models.RefundResponse {
	telemetry.RefundsInitiated.WithLabelValues(outcome).Inc()
	return &models.RefundResponse{Success: false, Message: message}
}

func (e *Engine) GetRefund(ctx context.Context, refundID string) (*models.RefundResponse, error) {
	refund, err := e.refunds.Get(ctx, refundID)
	if errors.Is(err, models.ErrNotFound) {
		return &models.RefundResponse{Success: false, Message: fmt.Sprintf("Refund not found: %s", refundID)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get refund %s: %w", refundID, err)
	}
	return &models.RefundResponse{Success: true, Message: "Refund found", Refund: models.NewRefundDTO(refund)}, nil
}

// GetPaymentRefunds summarizes local state only; use CheckPaymentRefundStatus to
// reconcile with the gateway first.
func (e *Engine) GetPaymentRefunds(ctx context.Context, paymentID string) (*models.PaymentRefundsResponse, error) {
	payment, err := e.payments.GetByGatewayID(ctx, paymentID)
	if errors.Is(err, models.ErrNotFound) {
		return &models.PaymentRefundsResponse{Success: false, Message: fmt.Sprintf("Payment not found: %s", paymentID)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up payment %s: %w", paymentID, err)
	}
	summary, err := e.summarize(ctx, payment)
	if err != nil {
		return nil, err
	}
	return &models.PaymentRefundsResponse{Success: true, Summary: summary}, nil
}

func (e *Engine) summarize(ctx context.Context, payment *models.Payment) (*models.PaymentRefundSummary, error) {
	refunds, err := e.refunds.ListByPayment(ctx, payment.GatewayPaymentID)
	if err != nil {
		return nil, fmt.Errorf("list refunds for payment %s: %w", payment.GatewayPaymentID, err)
	}
	refunded, err := e.refunds.TotalRefundedForPayment(ctx, payment.GatewayPaymentID)
	if err != nil {
		return nil, fmt.Errorf("total refunded for payment %s: %w", payment.GatewayPaymentID, err)
	}

	summary := &models.PaymentRefundSummary{
		PaymentID:     payment.GatewayPaymentID,
		Currency:      payment.Currency,
		TotalRefunded: refunded,
		BillType:      BillTypeFor(payment.Amount, refunded),
		Refunds:       make([]*models.RefundDTO, 0, len(refunds)),
	}
	if payment.Amount != nil {
		summary.PaymentAmount = *payment.Amount
		summary.RemainingRefundable = *payment.Amount - refunded
		if summary.RemainingRefundable < 0 {
			summary.RemainingRefundable = 0
		}
		summary.FullyRefunded = summary.RemainingRefundable == 0
	}
	for _, r := range refunds {
		summary.Refunds = append(summary.Refunds, models.NewRefundDTO(r))
	}
	return summary, nil
}

func (e *Engine) publish(ctx context.Context, refund *models.Refund, previous models.RefundStatus) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishRefundEvent(ctx, refund, previous); err != nil {
		telemetry.Logger.Warn("Failed to publish refund event",
			zap.String("refund_id", refund.RefundID),
			zap.Error(err),
		)
	}
}
