package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/snapfind/internal/embeddings"
	"github.com/fyrsmithlabs/snapfind/internal/logging"
)

const clipModel = "openai/clip-vit-base-patch32"

func recordSample(tel *Telemetry) {
	m := embeddings.NewMetricsWithMeter(tel.Meter("test"), nil)
	ctx := context.Background()
	m.Record(ctx, clipModel, embeddings.OperationText, 40*time.Millisecond, nil)
	m.Record(ctx, clipModel, embeddings.OperationImage, 100*time.Millisecond, nil)
	m.Record(ctx, clipModel, embeddings.OperationImage, 300*time.Millisecond, errors.New("decode failed"))
}

func TestTelemetry_Summarize(t *testing.T) {
	tel := New("test", nil)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })
	recordSample(tel)

	summary, err := tel.Summarize(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 2)

	img := summary[embeddings.OperationImage]
	assert.Equal(t, uint64(2), img.Calls)
	assert.Equal(t, int64(1), img.Errors)
	assert.InDelta(t, 0.4, img.Seconds, 1e-9)
	assert.InDelta(t, float64(200*time.Millisecond), float64(img.Mean()), float64(time.Microsecond))

	txt := summary[embeddings.OperationText]
	assert.Equal(t, uint64(1), txt.Calls)
	assert.Zero(t, txt.Errors)
}

func TestTelemetry_SummarizeEmpty(t *testing.T) {
	tel := New("test", nil)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	summary, err := tel.Summarize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary)
	assert.Zero(t, OperationStats{}.Mean())
}

func TestTelemetry_ShutdownLogsSummary(t *testing.T) {
	tl := logging.NewTestLogger()
	tel := New("test", tl.Logger)
	recordSample(tel)

	require.NoError(t, tel.Shutdown(context.Background()))

	tl.AssertLogged(t, zapcore.DebugLevel, "embedding summary")
	tl.AssertField(t, "embedding summary", "operation", embeddings.OperationImage)
	tl.AssertField(t, "embedding summary", "operation", embeddings.OperationText)
	assert.Equal(t, 2, tl.CountLevel(zapcore.DebugLevel))
}

func TestTelemetry_Tracer(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tel := New("1.2.3", nil, WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	ctx, span := tel.Tracer("test").Start(context.Background(), "search")
	assert.True(t, span.SpanContext().IsValid())
	_, child := tel.Tracer("test").Start(ctx, "child")
	child.End()
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, ended[1].SpanContext().TraceID(), ended[0].SpanContext().TraceID())
	assert.Contains(t, ended[1].Resource().Attributes(), attribute.String("service.version", "1.2.3"))
}

func TestTelemetry_Install(t *testing.T) {
	tel := New("test", nil)
	t.Cleanup(func() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		_ = tel.Shutdown(context.Background())
	})

	tel.Install()
	embeddings.NewMetrics(nil).Record(context.Background(), clipModel, embeddings.OperationText, time.Millisecond, nil)

	summary, err := tel.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), summary[embeddings.OperationText].Calls)

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
}
