package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
)

type recordingSyncer struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (s *recordingSyncer) CheckPaymentRefundStatus(ctx context.Context, paymentID string) (*models.PaymentRefundsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, paymentID)
	if s.fail[paymentID] {
		return nil, errors.New("gateway exploded")
	}
	return &models.PaymentRefundsResponse{Success: true}, nil
}

func TestReconciler_RunOnceSyncsStalePaymentsOnce(t *testing.T) {
	stale := func(id, payment string, age time.Duration) *models.Refund {
		return &models.Refund{RefundID: id, PaymentID: payment, Status: models.RefundPending, CreatedAt: testNow.Add(-age)}
	}
	done := stale("rfnd_done", "pay_done", 2*time.Hour)
	done.Status = models.RefundProcessed
	store := newMemStore(
		stale("rfnd_1", "pay_a", time.Hour),
		stale("rfnd_2", "pay_a", 2*time.Hour),
		stale("rfnd_3", "pay_b", time.Hour),
		stale("rfnd_fresh", "pay_c", time.Minute),
		done,
	)
	syncer := &recordingSyncer{fail: map[string]bool{"pay_b": true}}
	r := NewReconciler(store, syncer, ReconcilerConfig{MinAge: 10 * time.Minute, Workers: 2})
	r.now = func() time.Time { return testNow }

	n, err := r.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	sort.Strings(syncer.calls)
	assert.Equal(t, []string{"pay_a", "pay_b"}, syncer.calls)
}

func TestReconciler_RotatesThroughUnsettledRefunds(t *testing.T) {
	var refunds []*models.Refund
	for i, payment := range []string{"pay_a", "pay_b", "pay_z"} {
		refunds = append(refunds, &models.Refund{
			RefundID:  "rfnd_" + payment,
			PaymentID: payment,
			Status:    models.RefundPending,
			CreatedAt: testNow.Add(-time.Duration(3-i) * time.Hour),
		})
	}
	syncer := &recordingSyncer{}
	r := NewReconciler(newMemStore(refunds...), syncer, ReconcilerConfig{MinAge: 10 * time.Minute, BatchSize: 2})

	for pass := 0; pass < 5; pass++ {
		now := testNow.Add(time.Duration(pass) * time.Minute)
		r.now = func() time.Time { return now }
		_, err := r.RunOnce(context.Background())
		require.NoError(t, err)
	}

	calls := map[string]int{}
	for _, id := range syncer.calls {
		calls[id]++
	}
	for _, payment := range []string{"pay_a", "pay_b", "pay_z"} {
		assert.GreaterOrEqual(t, calls[payment], 2, payment)
	}
}

func TestReconciler_RunStopsOnCancel(t *testing.T) {
	r := NewReconciler(newMemStore(), &recordingSyncer{}, ReconcilerConfig{Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
