package kafka

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics covers checkout event publication, whichever bus carries it.
type Metrics struct {
	publishLatency metric.Float64Histogram
	published      metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.publishLatency, err = meter.Float64Histogram(
		"checkout_event_publish_duration_seconds",
		metric.WithDescription("Time spent handing a checkout event to the bus"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create checkout_event_publish_duration histogram: %w", err)
	}

	m.published, err = meter.Int64Counter(
		"checkout_events_published_total",
		metric.WithDescription("Checkout events handed to the bus"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create checkout_events_published_total counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordPublish(ctx context.Context, eventType string, durationSeconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("result", result),
	)
	m.publishLatency.Record(ctx, durationSeconds, attrs)
	m.published.Add(ctx, 1, attrs)
}
