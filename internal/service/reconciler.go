package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/akylbek/payment-system/refund-reconciler/internal/interfaces"
	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
	"github.com/akylbek/payment-system/refund-reconciler/internal/telemetry"
)

// PaymentSyncer is the part of Engine the reconciler drives.
type PaymentSyncer interface {
	CheckPaymentRefundStatus(ctx context.Context, paymentID string) (*models.PaymentRefundsResponse, error)
}

type ReconcilerConfig struct {
	Interval  time.Duration
	MinAge    time.Duration
	BatchSize int
	Workers   int
}

// Reconciler periodically re-syncs payments whose refunds have been pending for a
// while, covering webhooks the gateway never delivered.
type Reconciler struct {
	refunds interfaces.RefundStore
	syncer  PaymentSyncer
	cfg     ReconcilerConfig
	now     func() time.Time
}

func NewReconciler(refunds interfaces.RefundStore, syncer PaymentSyncer, cfg ReconcilerConfig) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	return &Reconciler{
		refunds: refunds,
		syncer:  syncer,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run reconciles on every tick until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	telemetry.Logger.Info("Refund reconciler started", zap.Duration("interval", r.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			telemetry.Logger.Info("Refund reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				telemetry.Logger.Error("Refund reconciliation pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce syncs every payment with a stale pending refund and returns how many
// payments it synced. Per-payment failures are logged and skipped.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	stale, err := r.refunds.ListPendingOlderThan(ctx, r.now().Add(-r.cfg.MinAge), r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(stale))
	paymentIDs := make([]string, 0, len(stale))
	refundIDs := make([]string, 0, len(stale))
	for _, refund := range stale {
		refundIDs = append(refundIDs, refund.RefundID)
		if _, ok := seen[refund.PaymentID]; ok {
			continue
		}
		seen[refund.PaymentID] = struct{}{}
		paymentIDs = append(paymentIDs, refund.PaymentID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, paymentID := range paymentIDs {
		paymentID := paymentID
		g.Go(func() error {
			resp, err := r.syncer.CheckPaymentRefundStatus(gctx, paymentID)
			switch {
			case err != nil:
				telemetry.Logger.Warn("Payment refund sync failed",
					zap.String("payment_id", paymentID),
					zap.Error(err),
				)
			case !resp.Success:
				telemetry.Logger.Warn("Payment refund sync skipped",
					zap.String("payment_id", paymentID),
					zap.String("reason", resp.Message),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	// refunds still pending go to the back of the next pass
	if err := r.refunds.MarkReconciled(ctx, refundIDs, r.now()); err != nil {
		telemetry.Logger.Error("Failed to record reconciliation attempt", zap.Error(err))
	}

	if len(paymentIDs) > 0 {
		telemetry.Logger.Info("Refund reconciliation pass complete", zap.Int("payments", len(paymentIDs)))
	}
	return len(paymentIDs), nil
}
