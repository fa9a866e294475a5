package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mistika/checkout/internal/checkout/ports"
	"github.com/mistika/checkout/internal/kafka"
	"github.com/mistika/checkout/internal/telemetry"
)

type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *kafka.Metrics
}

func NewObservableEventBus(bus ports.EventBus, metrics *kafka.Metrics) *ObservableEventBus {
	return &ObservableEventBus{bus: bus, metrics: metrics}
}

func (e *ObservableEventBus) PublishOrderConfirmed(ctx context.Context, orderID, draftID string) error {
	return e.publish(ctx, kafka.TopicOrderConfirmed, orderID, func(ctx context.Context) error {
		return e.bus.PublishOrderConfirmed(ctx, orderID, draftID)
	}, attribute.String("draft.id", draftID))
}

func (e *ObservableEventBus) PublishChargeback(ctx context.Context, orderID, chargebackID string) error {
	return e.publish(ctx, kafka.TopicChargedBack, orderID, func(ctx context.Context) error {
		return e.bus.PublishChargeback(ctx, orderID, chargebackID)
	}, attribute.String("chargeback.id", chargebackID))
}

func (e *ObservableEventBus) PublishClaimOpened(ctx context.Context, orderID, claimID string) error {
	return e.publish(ctx, kafka.TopicClaimOpened, orderID, func(ctx context.Context) error {
		return e.bus.PublishClaimOpened(ctx, orderID, claimID)
	}, attribute.String("claim.id", claimID))
}

func (e *ObservableEventBus) publish(ctx context.Context, topic, orderID string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.Publish "+topic, trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	telemetry.AddSpanAttributes(span, append(attrs,
		attribute.String("order.id", orderID),
		attribute.String("event.type", topic),
		attribute.String("topic", topic),
	)...)

	start := time.Now()
	err := fn(ctx)
	e.metrics.RecordPublish(ctx, topic, time.Since(start).Seconds(), err)

	telemetry.EndSpanWithResult(span, err)
	return err
}
