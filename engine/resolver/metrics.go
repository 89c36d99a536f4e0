package resolver

import (
	"context"
	"sync"

	"github.com/compozy/taskref/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type resolverMetrics struct {
	initOnce sync.Once

	resolutions metric.Int64Counter
	cacheHits   metric.Int64Counter
	diagnostics metric.Int64Counter
}

var metricsContainer resolverMetrics

func resolverMetricsRecorder(ctx context.Context) *resolverMetrics {
	metricsContainer.initOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("taskref.resolver")
		var err error

		metricsContainer.resolutions, err = meter.Int64Counter(
			"taskref.resolver.resolutions",
			metric.WithDescription("Tasks resolved without a cache hit"),
			metric.WithUnit("1"),
		)
		if err != nil {
			logger.FromContext(ctx).Warn("resolver metrics: failed to create resolutions counter", "error", err)
		}

		metricsContainer.cacheHits, err = meter.Int64Counter(
			"taskref.resolver.cache_hits",
			metric.WithDescription("Task lookups answered from the resolution cache"),
			metric.WithUnit("1"),
		)
		if err != nil {
			logger.FromContext(ctx).Warn("resolver metrics: failed to create cache hits counter", "error", err)
		}

		metricsContainer.diagnostics, err = meter.Int64Counter(
			"taskref.resolver.diagnostics",
			metric.WithDescription("Diagnostics reported to the delegate by kind"),
			metric.WithUnit("1"),
		)
		if err != nil {
			logger.FromContext(ctx).Warn("resolver metrics: failed to create diagnostics counter", "error", err)
		}
	})
	return &metricsContainer
}

func recordResolution(ctx context.Context) {
	recorder := resolverMetricsRecorder(ctx)
	if recorder.resolutions == nil {
		return
	}
	recorder.resolutions.Add(ctx, 1)
}

func recordCacheHit(ctx context.Context) {
	recorder := resolverMetricsRecorder(ctx)
	if recorder.cacheHits == nil {
		return
	}
	recorder.cacheHits.Add(ctx, 1)
}

func recordDiagnostic(ctx context.Context, kind Kind) {
	recorder := resolverMetricsRecorder(ctx)
	if recorder.diagnostics == nil {
		return
	}
	recorder.diagnostics.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}
