// internal/logging/context.go
package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	// Trace correlation, present inside a recording span.
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if id := SearchIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("search.id", id))
	}

	return fields
}

type searchCtxKey struct{}

// WithSearchID tags every entry logged with ctx by one search run.
func WithSearchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, searchCtxKey{}, id)
}

// SearchIDFromContext extracts the search ID from context.
func SearchIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(searchCtxKey{}).(string); ok {
		return s
	}
	return ""
}
