package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusEndpoint exposes OTel metrics in the Prometheus text format.
type PrometheusEndpoint struct {
	reader   sdkmetric.Reader
	registry *prometheus.Registry
}

// NewPrometheusEndpoint builds a dedicated registry and the OTel reader feeding it.
func NewPrometheusEndpoint() (*PrometheusEndpoint, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &PrometheusEndpoint{reader: exporter, registry: registry}, nil
}

// Reader is passed to Initialize via WithMetricReader.
func (p *PrometheusEndpoint) Reader() sdkmetric.Reader {
	return p.reader
}

func (p *PrometheusEndpoint) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
