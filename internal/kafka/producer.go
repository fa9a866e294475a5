package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the event bus needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DefaultPublishTimeout applies when NewEventBus is given no timeout.
const DefaultPublishTimeout = 2 * time.Second

// EventBus implements ports.EventBus on a kafka-go writer.
type EventBus struct {
	w           MessageWriter
	topicPrefix string
	timeout     time.Duration
	now         func() time.Time
}

// NewWriter configures a writer that routes by message topic and key.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            5,
		WriteTimeout:           5 * time.Second,
		ReadTimeout:            5 * time.Second,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// NewEventBus prefixes every topic with topicPrefix when it is not empty.
// Each publish gives up after timeout so a broker outage cannot hold a
// webhook request past the server write deadline.
func NewEventBus(w MessageWriter, topicPrefix string, timeout time.Duration) *EventBus {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &EventBus{
		w:           w,
		topicPrefix: topicPrefix,
		timeout:     timeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (b *EventBus) Close() error { return b.w.Close() }

func (b *EventBus) PublishOrderConfirmed(ctx context.Context, orderID, draftID string) error {
	return b.publish(ctx, Event{Type: TopicOrderConfirmed, OrderID: orderID, DraftID: draftID})
}

func (b *EventBus) PublishChargeback(ctx context.Context, orderID, chargebackID string) error {
	return b.publish(ctx, Event{Type: TopicChargedBack, OrderID: orderID, ChargebackID: chargebackID})
}

func (b *EventBus) PublishClaimOpened(ctx context.Context, orderID, claimID string) error {
	return b.publish(ctx, Event{Type: TopicClaimOpened, OrderID: orderID, ClaimID: claimID})
}

func (b *EventBus) publish(ctx context.Context, event Event) error {
	event.OccurredAt = b.now()
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	err = b.w.WriteMessages(ctx, kafka.Message{
		Topic: b.topicPrefix + event.Type,
		Key:   []byte(event.OrderID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}
