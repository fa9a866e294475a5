package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	draftsCreatedTotal        metric.Int64Counter
	draftCreationDuration     metric.Float64Histogram
	webhooksTotal             metric.Int64Counter
	webhookProcessingDuration metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.draftsCreatedTotal, err = meter.Int64Counter(
		"drafts_created_total",
		metric.WithDescription("Total number of checkout drafts created"),
		metric.WithUnit("{draft}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create drafts_created_total counter: %w", err)
	}

	m.draftCreationDuration, err = meter.Float64Histogram(
		"draft_creation_duration_seconds",
		metric.WithDescription("Duration of draft creation operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create draft_creation_duration histogram: %w", err)
	}

	m.webhooksTotal, err = meter.Int64Counter(
		"webhooks_received_total",
		metric.WithDescription("Total webhook deliveries by topic and outcome"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create webhooks_received_total counter: %w", err)
	}

	m.webhookProcessingDuration, err = meter.Float64Histogram(
		"webhook_processing_duration_seconds",
		metric.WithDescription("Duration of webhook processing including provider lookups"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create webhook_processing_duration histogram: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordDraftCreated(ctx context.Context, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.draftsCreatedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordDraftCreationDuration(ctx context.Context, durationSeconds float64) {
	m.draftCreationDuration.Record(ctx, durationSeconds)
}

func (m *Metrics) RecordWebhook(ctx context.Context, topic, outcome string, durationSeconds float64) {
	m.webhooksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("outcome", outcome),
	))
	m.webhookProcessingDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("topic", topic),
	))
}
