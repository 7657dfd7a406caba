package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/snapfind/internal/logging"
)

const embeddingsInstrumentationName = "github.com/fyrsmithlabs/snapfind/internal/embeddings"

// Instrument names.
const (
	DurationMetric = "snapfind.embedding.duration_seconds"
	ErrorsMetric   = "snapfind.embedding.errors_total"
)

// Operation labels for recorded metrics.
const (
	OperationText  = "text"
	OperationImage = "image"
)

// Metrics holds embedding-related instruments.
type Metrics struct {
	meter    metric.Meter
	logger   *logging.Logger
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewMetrics creates a Metrics instance on the global meter provider.
func NewMetrics(logger *logging.Logger) *Metrics {
	return NewMetricsWithMeter(otel.Meter(embeddingsInstrumentationName), logger)
}

// NewMetricsWithMeter creates a Metrics instance on meter.
func NewMetricsWithMeter(meter metric.Meter, logger *logging.Logger) *Metrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Metrics{meter: meter, logger: logger}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		DurationMetric,
		metric.WithDescription("Duration of one embedding call in seconds, labeled by model and operation (text, image)"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn(context.Background(), "failed to create duration histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		ErrorsMetric,
		metric.WithDescription("Total embedding failures by model and operation, including undecodable images"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn(context.Background(), "failed to create errors counter", zap.Error(err))
	}
}

// Record records one embedding call.
func (m *Metrics) Record(ctx context.Context, model, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}
