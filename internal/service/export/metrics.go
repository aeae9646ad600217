package export

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Alijeyrad/careflow_backend/pkg/observability"
)

type metrics struct {
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

func newMetrics() *metrics {
	meter := otel.Meter(observability.Scope)

	runs, _ := meter.Int64Counter(
		"careflow_export_runs_total",
		metric.WithDescription("Export executions by type and outcome"),
		metric.WithUnit("{run}"),
	)
	duration, _ := meter.Float64Histogram(
		"careflow_export_duration_ms",
		metric.WithDescription("Export execution time in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &metrics{runs: runs, duration: duration}
}

func (m *metrics) record(ctx context.Context, exportType, status string, ms float64) {
	attrs := metric.WithAttributes(
		attribute.String("export_type", exportType),
		attribute.String("status", status),
	)
	m.runs.Add(ctx, 1, attrs)
	m.duration.Record(ctx, ms, attrs)
}
