package watchdog

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ragpilot/ragpilot/internal/watchdog"

// Metrics holds the OpenTelemetry instruments recorded per cycle.
type Metrics struct {
	cycleDuration metric.Float64Histogram
	cycleTotal    metric.Int64Counter
	healthyRatio  metric.Float64Gauge
}

// NewMetrics creates the cycle-level instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	cycleDuration, err := meter.Float64Histogram(
		"watchdog.cycle.duration",
		metric.WithDescription("Duration of watchdog probing cycles in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	cycleTotal, err := meter.Int64Counter(
		"watchdog.cycle.total",
		metric.WithDescription("Total number of watchdog probing cycles"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, err
	}

	healthyRatio, err := meter.Float64Gauge(
		"watchdog.services.healthy_ratio",
		metric.WithDescription("Fraction of monitored services whose latest probe is healthy"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		cycleDuration: cycleDuration,
		cycleTotal:    cycleTotal,
		healthyRatio:  healthyRatio,
	}, nil
}

// recordCycle records one finished cycle.
func (m *Metrics) recordCycle(ctx context.Context, c CycleMetrics) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("overall_status", string(c.OverallStatus)),
	)
	m.cycleDuration.Record(ctx, c.Duration.Seconds(), attrs)
	m.cycleTotal.Add(ctx, 1, attrs)
	if c.TotalServices > 0 {
		m.healthyRatio.Record(ctx, c.HealthyRatio())
	}
}
