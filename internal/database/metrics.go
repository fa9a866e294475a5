package database

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records storage call latency for every backend the checkout uses.
type Metrics struct {
	queryDuration metric.Float64Histogram
	queryErrors   metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.queryDuration, err = meter.Float64Histogram(
		"db_query_duration_seconds",
		metric.WithDescription("Storage operation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_query_duration histogram: %w", err)
	}

	m.queryErrors, err = meter.Int64Counter(
		"db_query_errors_total",
		metric.WithDescription("Storage operations that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_query_errors counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordQuery(ctx context.Context, operation string, durationSeconds float64, err error) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	m.queryDuration.Record(ctx, durationSeconds, attrs)
	if err != nil {
		m.queryErrors.Add(ctx, 1, attrs)
	}
}
