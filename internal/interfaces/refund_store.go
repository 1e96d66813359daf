package interfaces

import (
	"context"
	"time"

	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
)

// RefundStore defines the contract for refund persistence.
type RefundStore interface {
	// Get returns models.ErrNotFound when no refund has the id.
	Get(ctx context.Context, refundID string) (*models.Refund, error)
	// Create inserts the refund; created is false if the refund id already existed.
	Create(ctx context.Context, refund *models.Refund) (created bool, err error)
	// UpdateStatus applies t only if the stored status still equals t.From and
	// reports whether a row changed.
	UpdateStatus(ctx context.Context, t models.StatusTransition) (bool, error)
	ListByPayment(ctx context.Context, paymentID string) ([]*models.Refund, error)
	// TotalRefundedForPayment sums non-FAILED refunds.
	TotalRefundedForPayment(ctx context.Context, paymentID string) (models.Money, error)
	ListAll(ctx context.Context, filter models.RefundFilter) ([]*models.Refund, int64, error)
	// ListPendingOlderThan orders by last reconciliation attempt, never-attempted first.
	ListPendingOlderThan(ctx context.Context, before time.Time, limit int) ([]*models.Refund, error)
	MarkReconciled(ctx context.Context, refundIDs []string, at time.Time) error

	TotalRefundedAmount(ctx context.Context) (models.Money, error)
	MonthlyRefundedAmount(ctx context.Context, month time.Time) (models.Money, error)
	CountBySpeed(ctx context.Context) (map[models.RefundSpeed]int64, error)
	AverageProcessingTimeHours(ctx context.Context) (float64, error)
	MonthlyTrend(ctx context.Context, since time.Time) ([]models.TrendPoint, error)
}
