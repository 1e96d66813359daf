package interfaces

import (
	"context"
	"time"

	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
)

type PaymentLookup interface {
	// GetByGatewayID returns models.ErrNotFound when the payment is unknown.
	GetByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error)
	TotalRevenue(ctx context.Context) (models.Money, error)
}

type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type NotificationSender interface {
	Send(ctx context.Context, token, title, body string) error
}

// CancelResult carries a business-level answer from the subscription service.
type CancelResult struct {
	Success bool
	Message string
}

type SubscriptionCanceller interface {
	CancelUserSubscription(ctx context.Context, adminEmail, targetUserEmail string) (CancelResult, error)
}

type SecretsProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Locker serializes work per key. Acquire returns ok=false when the key is held.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type RefundEventPublisher interface {
	PublishRefundEvent(ctx context.Context, refund *models.Refund, previous models.RefundStatus) error
}
