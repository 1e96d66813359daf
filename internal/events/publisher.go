package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
)

// DefaultTopic carries one message per refund creation or status change.
const DefaultTopic = "refund.status.changed"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// RefundEvent is the message body. PreviousStatus is empty for newly recorded refunds.
type RefundEvent struct {
	EventID        string              `json:"event_id"`
	RefundID       string              `json:"refund_id"`
	PaymentID      string              `json:"payment_id"`
	Status         models.RefundStatus `json:"status"`
	PreviousStatus models.RefundStatus `json:"previous_status,omitempty"`
	Amount         models.Money        `json:"amount"`
	Currency       string              `json:"currency"`
	UserEmail      string              `json:"user_email,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
}

type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, now: time.Now}
}

// NewWriter builds the writer used in production. Messages are keyed by payment id so
// a payment's refund events stay ordered within a partition.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
}

func (p *KafkaPublisher) PublishRefundEvent(ctx context.Context, refund *models.Refund, previous models.RefundStatus) error {
	event := RefundEvent{
		EventID:        uuid.NewString(),
		RefundID:       refund.RefundID,
		PaymentID:      refund.PaymentID,
		Status:         refund.Status,
		PreviousStatus: previous,
		Amount:         refund.Amount,
		Currency:       refund.Currency,
		UserEmail:      refund.UserEmail,
		Timestamp:      p.now().UTC(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(refund.PaymentID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("refund." + string(refund.Status))},
		},
	})
}
