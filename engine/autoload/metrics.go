package autoload

import (
	"context"
	"sync"
	"time"

	"github.com/compozy/taskref/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// autoloadDurationBuckets defines histogram bucket boundaries in seconds.
var autoloadDurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10}

type autoloadFileOutcome string

const (
	autoloadOutcomeSuccess autoloadFileOutcome = "success"
	autoloadOutcomeCached  autoloadFileOutcome = "cached"
	autoloadOutcomeError   autoloadFileOutcome = "error"
)

type autoloadErrorLabel string

const (
	errorLabelParse    autoloadErrorLabel = "parse_error"
	errorLabelRead     autoloadErrorLabel = "read_error"
	errorLabelSecurity autoloadErrorLabel = "security_error"
)

type autoloadMetrics struct {
	initOnce sync.Once

	durationHistogram metric.Float64Histogram
	filesProcessed    metric.Int64Counter
	tasksLoaded       metric.Int64Counter
	errorsTotal       metric.Int64Counter
}

var metricsContainer autoloadMetrics

func autoloadMetricsRecorder(ctx context.Context) *autoloadMetrics {
	metricsContainer.initOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("taskref.autoload")
		var err error

		metricsContainer.durationHistogram, err = meter.Float64Histogram(
			"taskref.autoload.duration_seconds",
			metric.WithDescription("Time to load every pipeline file"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(autoloadDurationBuckets...),
		)
		if err != nil {
			logger.FromContext(ctx).Warn("autoload metrics: failed to create duration histogram", "error", err)
		}

		metricsContainer.filesProcessed, err = meter.Int64Counter(
			"taskref.autoload.files_processed_total",
			metric.WithDescription("Total pipeline files processed by outcome"),
			metric.WithUnit("1"),
		)
		if err != nil {
			logger.FromContext(ctx).Warn("autoload metrics: failed to create files processed counter", "error", err)
		}

		metricsContainer.tasksLoaded, err = meter.Int64Counter(
			"taskref.autoload.tasks_loaded_total",
			metric.WithDescription("Total task definitions indexed"),
			metric.WithUnit("1"),
		)
		if err != nil {
			logger.FromContext(ctx).Warn("autoload metrics: failed to create tasks loaded counter", "error", err)
		}

		metricsContainer.errorsTotal, err = meter.Int64Counter(
			"taskref.autoload.errors_total",
			metric.WithDescription("Total autoload errors by category"),
			metric.WithUnit("1"),
		)
		if err != nil {
			logger.FromContext(ctx).Warn("autoload metrics: failed to create errors counter", "error", err)
		}
	})
	return &metricsContainer
}

func recordAutoloadDuration(ctx context.Context, duration time.Duration) {
	recorder := autoloadMetricsRecorder(ctx)
	if recorder.durationHistogram == nil {
		return
	}
	recorder.durationHistogram.Record(ctx, duration.Seconds())
}

func recordAutoloadFileOutcome(ctx context.Context, outcome autoloadFileOutcome) {
	recorder := autoloadMetricsRecorder(ctx)
	if recorder.filesProcessed == nil {
		return
	}
	recorder.filesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

func recordAutoloadTasks(ctx context.Context, n int) {
	recorder := autoloadMetricsRecorder(ctx)
	if recorder.tasksLoaded == nil || n == 0 {
		return
	}
	recorder.tasksLoaded.Add(ctx, int64(n))
}

func recordAutoloadError(ctx context.Context, label autoloadErrorLabel) {
	recorder := autoloadMetricsRecorder(ctx)
	if recorder.errorsTotal == nil {
		return
	}
	recorder.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("error_type", string(label))))
}
