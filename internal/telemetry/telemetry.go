// Package telemetry installs in-process OpenTelemetry providers for one
// snapfind run. Nothing is exported over the network: metrics are read back
// through a manual reader and summarized in the log when the run ends.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/snapfind/internal/embeddings"
	"github.com/fyrsmithlabs/snapfind/internal/logging"
)

const serviceName = "snapfind"

// Telemetry owns the tracer and meter providers for one process.
type Telemetry struct {
	reader         *sdkmetric.ManualReader
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	logger         *logging.Logger
}

// Option configures New.
type Option func(*options)

type options struct {
	spanProcessors []sdktrace.SpanProcessor
}

// WithSpanProcessor attaches sp to the tracer provider.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) {
		o.spanProcessors = append(o.spanProcessors, sp)
	}
}

// New creates providers tagged with the service name and version.
// Call Install to make them the process-wide defaults.
func New(version string, logger *logging.Logger, opts ...Option) *Telemetry {
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, sp := range o.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}

	return &Telemetry{
		reader:         reader,
		meterProvider:  mp,
		tracerProvider: sdktrace.NewTracerProvider(tpOpts...),
		logger:         logger,
	}
}

// Install sets the providers as the otel globals.
func (t *Telemetry) Install() {
	otel.SetMeterProvider(t.meterProvider)
	otel.SetTracerProvider(t.tracerProvider)
}

// Tracer returns a tracer for the given instrumentation scope.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	return t.tracerProvider.Tracer(name, opts...)
}

// Meter returns a meter for the given instrumentation scope.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return t.meterProvider.Meter(name, opts...)
}

// OperationStats aggregates embedding calls of one operation.
type OperationStats struct {
	Calls   uint64
	Seconds float64
	Errors  int64
}

// Mean returns the average call duration.
func (s OperationStats) Mean() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return time.Duration(s.Seconds / float64(s.Calls) * float64(time.Second))
}

// Summary maps an embedding operation ("text", "image") to its stats.
type Summary map[string]OperationStats

// Summarize collects the embedding instruments recorded so far.
func (t *Telemetry) Summarize(ctx context.Context) (Summary, error) {
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collecting metrics: %w", err)
	}

	summary := Summary{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch md.Name {
			case embeddings.DurationMetric:
				hist, ok := md.Data.(metricdata.Histogram[float64])
				if !ok {
					continue
				}
				for _, dp := range hist.DataPoints {
					op := operation(dp.Attributes)
					st := summary[op]
					st.Calls += dp.Count
					st.Seconds += dp.Sum
					summary[op] = st
				}
			case embeddings.ErrorsMetric:
				sum, ok := md.Data.(metricdata.Sum[int64])
				if !ok {
					continue
				}
				for _, dp := range sum.DataPoints {
					op := operation(dp.Attributes)
					st := summary[op]
					st.Errors += dp.Value
					summary[op] = st
				}
			}
		}
	}
	return summary, nil
}

func operation(set attribute.Set) string {
	if v, ok := set.Value("operation"); ok {
		return v.AsString()
	}
	return "unknown"
}

// Shutdown logs the embedding summary at debug level and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	summary, err := t.Summarize(ctx)
	if err != nil {
		t.logger.Warn(ctx, "summarizing metrics", zap.Error(err))
	} else {
		t.logSummary(ctx, summary)
	}

	var errs []error
	if err := t.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
	}
	if err := t.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
	}
	return errors.Join(errs...)
}

func (t *Telemetry) logSummary(ctx context.Context, summary Summary) {
	ops := make([]string, 0, len(summary))
	for op := range summary {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	for _, op := range ops {
		st := summary[op]
		t.logger.Debug(ctx, "embedding summary",
			zap.String("operation", op),
			zap.Uint64("calls", st.Calls),
			zap.Int64("errors", st.Errors),
			zap.Duration("total", time.Duration(st.Seconds*float64(time.Second))),
			zap.Duration("mean", st.Mean()),
		)
	}
}
