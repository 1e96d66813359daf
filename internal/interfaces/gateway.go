package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/refund-reconciler/internal/gateway"
)

// RefundGateway is the subset of the gateway client the engine depends on.
type RefundGateway interface {
	CreateRefund(ctx context.Context, req gateway.CreateRefundRequest) (*gateway.RefundResponse, error)
	ListRefunds(ctx context.Context, paymentID string) ([]gateway.RefundResponse, error)
}
