// Package observability provides OpenTelemetry instrumentation for tracing and metrics.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc flushes and releases a provider.
type ShutdownFunc func(context.Context) error

// InitMetrics installs a global meter provider backed by a Prometheus exporter.
// It returns the handler for the /metrics endpoint and a shutdown function
// that should be called on application exit.
func InitMetrics(serviceName string) (http.Handler, ShutdownFunc, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	opts := []metric.Option{metric.WithReader(exporter)}
	if serviceName != "" {
		opts = append(opts, metric.WithResource(resource.NewSchemaless(semconv.ServiceName(serviceName))))
	}
	provider := metric.NewMeterProvider(opts...)

	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}
