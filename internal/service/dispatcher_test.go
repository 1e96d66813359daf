package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/refund-reconciler/internal/interfaces"
	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
	"github.com/akylbek/payment-system/refund-reconciler/internal/retry"
)

func TestNotifyRefund(t *testing.T) {
	users := &mockUsers{users: map[string]*models.User{
		"token@example.com":    {Email: "token@example.com", FCMToken: "tok"},
		"no-token@example.com": {Email: "no-token@example.com"},
	}}
	refund := &models.Refund{RefundID: "rfnd_1", Amount: 4050, Currency: "INR"}

	tests := []struct {
		name      string
		email     string
		event     string
		sendErr   error
		wantTitle string
	}{
		{"initiated", "token@example.com", "initiated", nil, "Refund Initiated"},
		{"processed", "token@example.com", "processed", nil, "Refund Processed"},
		{"failed", "token@example.com", "failed", nil, "Refund Failed"},
		{"generic", "token@example.com", "speed_changed", nil, "Refund Update"},
		{"no token", "no-token@example.com", "processed", nil, ""},
		{"unknown user", "ghost@example.com", "processed", nil, ""},
		{"send error swallowed", "token@example.com", "processed", errors.New("fcm down"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockSender{err: tt.sendErr}
			d := NewDispatcher(users, sender, nil, DefaultCancelPolicy)
			r := *refund
			r.UserEmail = tt.email

			d.NotifyRefund(context.Background(), &r, tt.event)

			if tt.wantTitle == "" {
				assert.Empty(t, sender.sent)
				return
			}
			require.Len(t, sender.sent, 1)
			assert.Equal(t, "tok", sender.sent[0].Token)
			assert.Equal(t, tt.wantTitle, sender.sent[0].Title)
			assert.Contains(t, sender.sent[0].Body, "INR 40.50")
		})
	}
}

func TestCancelSubscription_WaitsBetweenAttempts(t *testing.T) {
	var waits []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	canceller := &mockCanceller{errs: []error{errors.New("timeout")}}
	d := NewDispatcher(nil, nil, canceller, retry.Policy{Attempts: 2, Delay: 500 * time.Millisecond, Sleep: sleep})

	outcome := d.CancelSubscription(context.Background(), testAdmin, testUserEmail)

	assert.False(t, outcome.Success)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, "timeout", outcome.LastError)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, waits)
}

func TestCancelSubscription_DeclinedWithoutMessage(t *testing.T) {
	canceller := &mockCanceller{results: []interfaces.CancelResult{{Success: false}}}
	d := NewDispatcher(nil, nil, canceller, retry.Policy{Attempts: 2, Sleep: noSleep})

	outcome := d.CancelSubscription(context.Background(), testAdmin, testUserEmail)

	assert.False(t, outcome.Success)
	assert.NotEmpty(t, outcome.LastError)
}

func TestCancelSubscription_NoUserEmail(t *testing.T) {
	canceller := &mockCanceller{}
	d := NewDispatcher(nil, nil, canceller, DefaultCancelPolicy)

	outcome := d.CancelSubscription(context.Background(), testAdmin, "")

	assert.False(t, outcome.Success)
	assert.Zero(t, canceller.calls)
}
