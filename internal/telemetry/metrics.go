package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DriverMetricsMeterName is the name used for the driver metrics meter
	DriverMetricsMeterName = "github.com/seastate/bsose-sync/driver"
)

// DriverMetrics holds the OpenTelemetry instruments for the ingestion driver
type DriverMetrics struct {
	attemptsTotal       metric.Int64Counter
	attemptDuration     metric.Float64Histogram
	unitsCompletedTotal metric.Int64Counter
	retrySleepTotal     metric.Float64Counter
}

// NewDriverMetrics creates a new DriverMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewDriverMetrics(provider metric.MeterProvider) (*DriverMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(DriverMetricsMeterName)

	attemptsTotal, err := meter.Int64Counter(
		"bsose_sync_attempts_total",
		metric.WithDescription("Number of worker invocations, by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	attemptDuration, err := meter.Float64Histogram(
		"bsose_sync_attempt_duration_seconds",
		metric.WithDescription("Duration of worker invocations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600),
	)
	if err != nil {
		return nil, err
	}

	unitsCompletedTotal, err := meter.Int64Counter(
		"bsose_sync_units_completed_total",
		metric.WithDescription("Number of work units completed"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, err
	}

	retrySleepTotal, err := meter.Float64Counter(
		"bsose_sync_retry_sleep_seconds_total",
		metric.WithDescription("Total time spent sleeping between retries in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &DriverMetrics{
		attemptsTotal:       attemptsTotal,
		attemptDuration:     attemptDuration,
		unitsCompletedTotal: unitsCompletedTotal,
		retrySleepTotal:     retrySleepTotal,
	}, nil
}

// RecordAttempt records a single worker invocation and its duration
func (m *DriverMetrics) RecordAttempt(ctx context.Context, unitID string, year int, duration time.Duration, success bool) {
	if m == nil || m.attemptsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("unit", unitID),
		attribute.Int("year", year),
		attribute.Bool("success", success),
	}

	m.attemptsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.attemptDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordUnitCompleted records a work unit reaching its terminal state
func (m *DriverMetrics) RecordUnitCompleted(ctx context.Context, year int, attempts int64) {
	if m == nil || m.unitsCompletedTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int("year", year),
		attribute.Int64("attempts", attempts),
	}

	m.unitsCompletedTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRetrySleep records time spent waiting before a retry
func (m *DriverMetrics) RecordRetrySleep(ctx context.Context, unitID string, slept time.Duration) {
	if m == nil || m.retrySleepTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("unit", unitID),
	}

	m.retrySleepTotal.Add(ctx, slept.Seconds(), metric.WithAttributes(attrs...))
}
