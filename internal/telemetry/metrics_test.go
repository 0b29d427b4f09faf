package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewDriverMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewDriverMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("creates metrics with SDK provider", func(t *testing.T) {
		t.Parallel()

		mp := sdkmetric.NewMeterProvider()
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewDriverMetrics(mp)
		require.NoError(t, err)
		assert.NotNil(t, metrics)
		assert.NotNil(t, metrics.attemptsTotal)
		assert.NotNil(t, metrics.attemptDuration)
		assert.NotNil(t, metrics.unitsCompletedTotal)
		assert.NotNil(t, metrics.retrySleepTotal)
	})
}

func TestDriverMetrics_RecordAttempt(t *testing.T) {
	t.Parallel()

	t.Run("no-op when metrics is nil", func(t *testing.T) {
		t.Parallel()

		var metrics *DriverMetrics
		// Should not panic
		metrics.RecordAttempt(context.Background(), "2013/0-10", 2013, time.Second, true)
	})

	t.Run("records counter and histogram with attributes", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewDriverMetrics(mp)
		require.NoError(t, err)
		require.NotNil(t, metrics)

		metrics.RecordAttempt(context.Background(), "2013/0-10", 2013, 90*time.Second, false)
		metrics.RecordAttempt(context.Background(), "2013/0-10", 2013, 120*time.Second, true)

		var rm metricdata.ResourceMetrics
		err = reader.Collect(context.Background(), &rm)
		require.NoError(t, err)
		require.NotEmpty(t, rm.ScopeMetrics)

		var foundCounter, foundHistogram bool
		for _, scope := range rm.ScopeMetrics {
			if scope.Scope.Name != DriverMetricsMeterName {
				continue
			}
			for _, m := range scope.Metrics {
				switch m.Name {
				case "bsose_sync_attempts_total":
					foundCounter = true
					sum, ok := m.Data.(metricdata.Sum[int64])
					require.True(t, ok, "expected int64 sum data type")
					// One data point per success attribute value
					assert.Len(t, sum.DataPoints, 2)
				case "bsose_sync_attempt_duration_seconds":
					foundHistogram = true
					_, ok := m.Data.(metricdata.Histogram[float64])
					assert.True(t, ok, "expected histogram data type")
				}
			}
		}
		assert.True(t, foundCounter, "expected to find attempts counter")
		assert.True(t, foundHistogram, "expected to find duration histogram")
	})

	t.Run("records duration in seconds", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewDriverMetrics(mp)
		require.NoError(t, err)

		metrics.RecordAttempt(context.Background(), "2020/580-588", 2020, 1500*time.Millisecond, true)

		var rm metricdata.ResourceMetrics
		err = reader.Collect(context.Background(), &rm)
		require.NoError(t, err)

		for _, scope := range rm.ScopeMetrics {
			if scope.Scope.Name != DriverMetricsMeterName {
				continue
			}
			for _, m := range scope.Metrics {
				if m.Name == "bsose_sync_attempt_duration_seconds" {
					hist, ok := m.Data.(metricdata.Histogram[float64])
					require.True(t, ok)
					require.NotEmpty(t, hist.DataPoints)
					assert.InDelta(t, 1.5, hist.DataPoints[0].Sum, 0.001)
				}
			}
		}
	})
}

func TestDriverMetrics_RecordUnitCompleted(t *testing.T) {
	t.Parallel()

	t.Run("no-op when metrics is nil", func(t *testing.T) {
		t.Parallel()

		var metrics *DriverMetrics
		metrics.RecordUnitCompleted(context.Background(), 2013, 3)
	})

	t.Run("increments completion counter", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewDriverMetrics(mp)
		require.NoError(t, err)

		metrics.RecordUnitCompleted(context.Background(), 2013, 1)
		metrics.RecordUnitCompleted(context.Background(), 2013, 1)

		var rm metricdata.ResourceMetrics
		err = reader.Collect(context.Background(), &rm)
		require.NoError(t, err)

		var found bool
		for _, scope := range rm.ScopeMetrics {
			if scope.Scope.Name != DriverMetricsMeterName {
				continue
			}
			for _, m := range scope.Metrics {
				if m.Name == "bsose_sync_units_completed_total" {
					found = true
					sum, ok := m.Data.(metricdata.Sum[int64])
					require.True(t, ok)
					require.NotEmpty(t, sum.DataPoints)
					assert.Equal(t, int64(2), sum.DataPoints[0].Value)
				}
			}
		}
		assert.True(t, found, "expected to find completion counter")
	})
}

func TestDriverMetrics_RecordRetrySleep(t *testing.T) {
	t.Parallel()

	t.Run("no-op when metrics is nil", func(t *testing.T) {
		t.Parallel()

		var metrics *DriverMetrics
		metrics.RecordRetrySleep(context.Background(), "2013/0-10", 300*time.Second)
	})

	t.Run("accumulates sleep time in seconds", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewDriverMetrics(mp)
		require.NoError(t, err)

		metrics.RecordRetrySleep(context.Background(), "2013/0-10", 300*time.Second)
		metrics.RecordRetrySleep(context.Background(), "2013/0-10", 300*time.Second)

		var rm metricdata.ResourceMetrics
		err = reader.Collect(context.Background(), &rm)
		require.NoError(t, err)

		var found bool
		for _, scope := range rm.ScopeMetrics {
			if scope.Scope.Name != DriverMetricsMeterName {
				continue
			}
			for _, m := range scope.Metrics {
				if m.Name == "bsose_sync_retry_sleep_seconds_total" {
					found = true
					sum, ok := m.Data.(metricdata.Sum[float64])
					require.True(t, ok)
					require.NotEmpty(t, sum.DataPoints)
					assert.InDelta(t, 600, sum.DataPoints[0].Value, 0.001)
				}
			}
		}
		assert.True(t, found, "expected to find retry sleep counter")
	})
}
