// Package telemetry provides OpenTelemetry instrumentation for the sync
// daemon.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter
const SyncMetricsMeterName = "github.com/yadaklinus/neuPham-sub000/sync"

// SyncMetrics holds the OpenTelemetry instruments for sync run metrics
type SyncMetrics struct {
	runDuration   metric.Float64Histogram
	recordsSynced metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter
// provider. If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	runDuration, err := meter.Float64Histogram(
		"neupham_sync_run_duration_seconds",
		metric.WithDescription("Duration of sync runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	recordsSynced, err := meter.Int64Counter(
		"neupham_sync_records_synced_total",
		metric.WithDescription("Number of records successfully pushed to the online store"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		runDuration:   runDuration,
		recordsSynced: recordsSynced,
	}, nil
}

// RecordRunDuration records the duration of one sync run
func (m *SyncMetrics) RecordRunDuration(ctx context.Context, mode string, duration time.Duration, success bool) {
	if m == nil || m.runDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("mode", mode),
		attribute.Bool("success", success),
	}

	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRecordsSynced records how many records of an entity reached the
// online store during a run
func (m *SyncMetrics) RecordRecordsSynced(ctx context.Context, entity string, count int64) {
	if m == nil || m.recordsSynced == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("entity", entity),
	}

	m.recordsSynced.Add(ctx, count, metric.WithAttributes(attrs...))
}
