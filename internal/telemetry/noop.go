package telemetry

import (
	"context"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// NewNoopTraceExporter drops finished spans. Spans are still created, so
// trace_id and span_id keep flowing into logs without a collector.
func NewNoopTraceExporter() sdktrace.SpanExporter {
	return tracetest.NewNoopExporter()
}

// NewNoopMetricExporter discards pushed metrics; pull readers such as the
// Prometheus endpoint keep working alongside it.
func NewNoopMetricExporter() sdkmetric.Exporter {
	return discardMetrics{}
}

type discardMetrics struct{}

func (discardMetrics) Temporality(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(kind)
}

func (discardMetrics) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(kind)
}

func (discardMetrics) Export(context.Context, *metricdata.ResourceMetrics) error { return nil }

func (discardMetrics) ForceFlush(context.Context) error { return nil }

func (discardMetrics) Shutdown(context.Context) error { return nil }
