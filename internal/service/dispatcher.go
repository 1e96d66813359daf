package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-reconciler/internal/interfaces"
	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
	"github.com/akylbek/payment-system/refund-reconciler/internal/retry"
	"github.com/akylbek/payment-system/refund-reconciler/internal/telemetry"
)

// DefaultCancelPolicy retries subscription cancellation once after half a second.
var DefaultCancelPolicy = retry.Policy{Attempts: 2, Delay: 500 * time.Millisecond}

// Dispatcher runs the best-effort work that follows a refund. Nothing it does can
// fail the refund itself.
type Dispatcher struct {
	users        interfaces.UserLookup
	sender       interfaces.NotificationSender
	canceller    interfaces.SubscriptionCanceller
	cancelPolicy retry.Policy
}

func NewDispatcher(users interfaces.UserLookup, sender interfaces.NotificationSender,
	canceller interfaces.SubscriptionCanceller, cancelPolicy retry.Policy) *Dispatcher {
	return &Dispatcher{
		users:        users,
		sender:       sender,
		canceller:    canceller,
		cancelPolicy: cancelPolicy,
	}
}

// CancellationOutcome is the dependent-action half of a successful refund.
type CancellationOutcome struct {
	Success   bool
	Attempts  int
	LastError string
}

// NotifyRefund pushes a templated message for event ("initiated", "processed",
// "failed", anything else gets a generic update) to the refund's user, if they have a
// device token on file.
func (d *Dispatcher) NotifyRefund(ctx context.Context, refund *models.Refund, event string) {
	if d == nil || d.sender == nil || d.users == nil || refund.UserEmail == "" {
		return
	}

	user, err := d.users.FindByEmail(ctx, refund.UserEmail)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			telemetry.SideEffects.WithLabelValues("notification", "error").Inc()
			telemetry.Logger.Warn("User lookup for refund notification failed",
				zap.String("refund_id", refund.RefundID),
				zap.Error(err),
			)
		}
		return
	}
	if user == nil || user.FCMToken == "" {
		telemetry.SideEffects.WithLabelValues("notification", "skipped").Inc()
		return
	}

	title, body := notificationTemplate(refund, event)
	if err := d.sender.Send(ctx, user.FCMToken, title, body); err != nil {
		telemetry.SideEffects.WithLabelValues("notification", "error").Inc()
		telemetry.Logger.Warn("Refund notification failed",
			zap.String("refund_id", refund.RefundID),
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}
	telemetry.SideEffects.WithLabelValues("notification", "sent").Inc()
}

func notificationTemplate(refund *models.Refund, event string) (title, body string) {
	amount := fmt.Sprintf("%s %s", refund.Currency, refund.Amount.Major())
	switch event {
	case "initiated":
		return "Refund Initiated", fmt.Sprintf("Your refund of %s has been initiated and will reach your account soon.", amount)
	case "processed":
		return "Refund Processed", fmt.Sprintf("Your refund of %s has been processed successfully.", amount)
	case "failed":
		return "Refund Failed", fmt.Sprintf("Your refund of %s could not be processed. Our support team will contact you.", amount)
	default:
		return "Refund Update", fmt.Sprintf("There is an update on your refund of %s.", amount)
	}
}

// CancelSubscription cancels the user's subscription under the dispatcher's retry
// policy. Business-level refusals are retried like errors.
func (d *Dispatcher) CancelSubscription(ctx context.Context, adminEmail, userEmail string) CancellationOutcome {
	if d == nil || d.canceller == nil {
		return CancellationOutcome{LastError: "subscription service not configured"}
	}
	if userEmail == "" {
		return CancellationOutcome{LastError: "payment has no user email"}
	}

	attempts, err := retry.Do(ctx, d.cancelPolicy, func(ctx context.Context, attempt int) error {
		res, err := d.canceller.CancelUserSubscription(ctx, adminEmail, userEmail)
		if err == nil && !res.Success {
			msg := res.Message
			if msg == "" {
				msg = "subscription cancellation was declined"
			}
			err = errors.New(msg)
		}
		if err != nil {
			telemetry.Logger.Warn("Subscription cancellation attempt failed",
				zap.String("user_email", userEmail),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	})

	outcome := CancellationOutcome{Success: err == nil, Attempts: len(attempts)}
	if err != nil {
		outcome.LastError = err.Error()
		telemetry.SideEffects.WithLabelValues("subscription_cancel", "error").Inc()
	} else {
		telemetry.SideEffects.WithLabelValues("subscription_cancel", "success").Inc()
	}
	return outcome
}
