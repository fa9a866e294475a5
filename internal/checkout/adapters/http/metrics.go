package http

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	requestDuration    metric.Float64Histogram
	requestsTotal      metric.Int64Counter
	signatureRejection metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.requestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration histogram: %w", err)
	}

	m.requestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total counter: %w", err)
	}

	m.signatureRejection, err = meter.Int64Counter(
		"webhook_signature_rejections_total",
		metric.WithDescription("Webhook deliveries rejected for a bad x-signature"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create webhook_signature_rejections_total counter: %w", err)
	}

	return m, nil
}

// RecordRequest takes the matched route pattern, never the raw path.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, statusCode int, durationSeconds float64) {
	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status_code", statusCode),
	))
	m.requestDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}

func (m *Metrics) RecordSignatureRejection(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.signatureRejection.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}
