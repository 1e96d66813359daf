package clients

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subject string
	data    []byte
	reply   string
	err     error
	hasDL   bool
}

func (f *fakeConn) RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error) {
	f.subject = subj
	f.data = data
	_, f.hasDL = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &nats.Msg{Subject: subj, Data: []byte(f.reply)}, nil
}

func TestCancelUserSubscription(t *testing.T) {
	conn := &fakeConn{reply: `{"success":false,"message":"no active subscription"}`}
	c := NewSubscriptionClient(conn, "", 0)

	res, err := c.CancelUserSubscription(context.Background(), "admin@example.com", "u@example.com")

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "no active subscription", res.Message)
	assert.Equal(t, DefaultCancelSubject, conn.subject)
	assert.True(t, conn.hasDL)

	var sent cancelRequest
	require.NoError(t, json.Unmarshal(conn.data, &sent))
	assert.Equal(t, cancelRequest{AdminEmail: "admin@example.com", UserEmail: "u@example.com"}, sent)
}

func TestCancelUserSubscription_Timeout(t *testing.T) {
	c := NewSubscriptionClient(&fakeConn{err: nats.ErrTimeout}, "subs.cancel", time.Second)

	_, err := c.CancelUserSubscription(context.Background(), "admin@example.com", "u@example.com")

	assert.ErrorIs(t, err, nats.ErrTimeout)
}

func TestPushSend(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		err     error
		wantErr bool
	}{
		{"delivered", `{"delivered":true}`, nil, false},
		{"rejected", `{"delivered":false,"error":"token expired"}`, nil, true},
		{"garbage reply", `not json`, nil, true},
		{"no responders", "", nats.ErrNoResponders, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{reply: tt.reply, err: tt.err}
			err := NewPushClient(conn, "", 0).Send(context.Background(), "tok", "Refund Processed", "done")

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, DefaultNotificationSubject, conn.subject)
		})
	}
}

func TestPushSend_PropagatesCause(t *testing.T) {
	cause := errors.New("connection closed")
	err := NewPushClient(&fakeConn{err: cause}, "", 0).Send(context.Background(), "tok", "t", "b")

	assert.ErrorIs(t, err, cause)
}
