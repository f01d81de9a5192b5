package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/shieldsocial/commentsync/pkg/logging"
)

// IngestionCounts is what one account ingestion run reports to metrics.
type IngestionCounts struct {
	Platform  string
	Success   bool
	Found     int
	Ingested  int
	Duplicate int
	Duration  time.Duration
}

type instruments struct {
	found      metric.Int64Counter
	ingested   metric.Int64Counter
	duplicate  metric.Int64Counter
	ingestions metric.Int64Counter
	duration   metric.Float64Histogram
}

var (
	metricsMu   sync.Mutex
	metricsInst *instruments
)

func resetMetrics() {
	metricsMu.Lock()
	metricsInst = nil
	metricsMu.Unlock()
}

func loadInstruments() *instruments {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if metricsInst != nil {
		return metricsInst
	}

	meter := otel.Meter(instrumentationName)
	inst, err := newInstruments(meter)
	if err != nil {
		logging.GetLogger().Warn("Failed to create ingestion instruments", zap.Error(err))
		return nil
	}
	metricsInst = inst
	return inst
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	var (
		inst instruments
		err  error
	)
	if inst.found, err = meter.Int64Counter("commentsync.comments.found",
		metric.WithDescription("Comments returned by upstream platforms")); err != nil {
		return nil, err
	}
	if inst.ingested, err = meter.Int64Counter("commentsync.comments.ingested",
		metric.WithDescription("Comments newly persisted")); err != nil {
		return nil, err
	}
	if inst.duplicate, err = meter.Int64Counter("commentsync.comments.duplicate",
		metric.WithDescription("Comments already persisted for the account")); err != nil {
		return nil, err
	}
	if inst.ingestions, err = meter.Int64Counter("commentsync.ingestions",
		metric.WithDescription("Account ingestion runs")); err != nil {
		return nil, err
	}
	if inst.duration, err = meter.Float64Histogram("commentsync.ingestion.duration",
		metric.WithDescription("Account ingestion run duration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &inst, nil
}

// RecordIngestion records the outcome of one account ingestion run.
func RecordIngestion(ctx context.Context, c IngestionCounts) {
	inst := loadInstruments()
	if inst == nil {
		return
	}

	platform := metric.WithAttributes(attribute.String("platform", c.Platform))
	inst.found.Add(ctx, int64(c.Found), platform)
	inst.ingested.Add(ctx, int64(c.Ingested), platform)
	inst.duplicate.Add(ctx, int64(c.Duplicate), platform)
	inst.ingestions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("platform", c.Platform),
		attribute.Bool("success", c.Success),
	))
	inst.duration.Record(ctx, c.Duration.Seconds(), platform)
}
