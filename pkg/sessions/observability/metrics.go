package observability

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records session history metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordOutcome records one stored phase outcome.
	RecordOutcome(ctx context.Context, phase, outcome string)

	// RecordSelection records the result of the rerun filter.
	RecordSelection(ctx context.Context, kept, deselected int)

	// RecordSkippedFile records one file short-circuited during collection.
	RecordSkippedFile(ctx context.Context)

	// RecordPruned records session files removed by retention.
	RecordPruned(ctx context.Context, removed int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	outcomes     metric.Int64Counter
	kept         metric.Int64Counter
	deselected   metric.Int64Counter
	skippedFiles metric.Int64Counter
	pruned       metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("sessions")

	outcomes, err := meter.Int64Counter("sessions.outcomes.recorded",
		metric.WithDescription("Number of phase outcomes recorded"),
	)
	if err != nil {
		return nil, err
	}

	kept, err := meter.Int64Counter("sessions.items.kept",
		metric.WithDescription("Number of items kept by the rerun filter"),
	)
	if err != nil {
		return nil, err
	}

	deselected, err := meter.Int64Counter("sessions.items.deselected",
		metric.WithDescription("Number of items deselected by the rerun filter"),
	)
	if err != nil {
		return nil, err
	}

	skippedFiles, err := meter.Int64Counter("sessions.collection.files_skipped",
		metric.WithDescription("Number of files short-circuited during collection"),
	)
	if err != nil {
		return nil, err
	}

	pruned, err := meter.Int64Counter("sessions.stores.pruned",
		metric.WithDescription("Number of session stores removed by retention"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		outcomes:     outcomes,
		kept:         kept,
		deselected:   deselected,
		skippedFiles: skippedFiles,
		pruned:       pruned,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordOutcome records one stored phase outcome.
func (m *otelMetrics) RecordOutcome(ctx context.Context, phase, outcome string) {
	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("outcome", outcome),
	))
}

// RecordSelection records the result of the rerun filter.
func (m *otelMetrics) RecordSelection(ctx context.Context, kept, deselected int) {
	m.kept.Add(ctx, int64(kept))
	m.deselected.Add(ctx, int64(deselected))
}

// RecordSkippedFile records one file short-circuited during collection.
func (m *otelMetrics) RecordSkippedFile(ctx context.Context) {
	m.skippedFiles.Add(ctx, 1)
}

// RecordPruned records session files removed by retention.
func (m *otelMetrics) RecordPruned(ctx context.Context, removed int) {
	m.pruned.Add(ctx, int64(removed))
}
