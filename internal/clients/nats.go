package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/akylbek/payment-system/refund-reconciler/internal/interfaces"
)

const (
	DefaultCancelSubject       = "subscriptions.cancel"
	DefaultNotificationSubject = "notifications.push"
	defaultRequestTimeout      = 5 * time.Second
)

type requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

type cancelRequest struct {
	AdminEmail string `json:"admin_email"`
	UserEmail  string `json:"user_email"`
}

type cancelReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SubscriptionClient asks the subscription service to cancel a user's plan over NATS
// request/reply.
type SubscriptionClient struct {
	nc      requester
	subject string
	timeout time.Duration
}

func NewSubscriptionClient(nc requester, subject string, timeout time.Duration) *SubscriptionClient {
	if subject == "" {
		subject = DefaultCancelSubject
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &SubscriptionClient{nc: nc, subject: subject, timeout: timeout}
}

func (c *SubscriptionClient) CancelUserSubscription(ctx context.Context, adminEmail, targetUserEmail string) (interfaces.CancelResult, error) {
	var reply cancelReply
	if err := request(ctx, c.nc, c.subject, c.timeout, cancelRequest{AdminEmail: adminEmail, UserEmail: targetUserEmail}, &reply); err != nil {
		return interfaces.CancelResult{}, err
	}
	return interfaces.CancelResult{Success: reply.Success, Message: reply.Message}, nil
}

type pushRequest struct {
	Token string `json:"token"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushReply struct {
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// PushClient hands push notifications to the notification service.
type PushClient struct {
	nc      requester
	subject string
	timeout time.Duration
}

func NewPushClient(nc requester, subject string, timeout time.Duration) *PushClient {
	if subject == "" {
		subject = DefaultNotificationSubject
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &PushClient{nc: nc, subject: subject, timeout: timeout}
}

func (c *PushClient) Send(ctx context.Context, token, title, body string) error {
	var reply pushReply
	if err := request(ctx, c.nc, c.subject, c.timeout, pushRequest{Token: token, Title: title, Body: body}, &reply); err != nil {
		return err
	}
	if !reply.Delivered {
		return fmt.Errorf("push not delivered: %s", reply.Error)
	}
	return nil
}

func request(ctx context.Context, nc requester, subject string, timeout time.Duration, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("nats request %s: %w", subject, err)
	}
	if err := json.Unmarshal(msg.Data, out); err != nil {
		return fmt.Errorf("decode %s reply: %w", subject, err)
	}
	return nil
}
