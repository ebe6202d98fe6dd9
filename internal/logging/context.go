package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type passCtxKey struct{}
type requestCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 4)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if passID := PassIDFromContext(ctx); passID != "" {
		fields = append(fields, zap.String("pass.id", passID))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, passCtxKey{}, passID)
}

func PassIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(passCtxKey{}).(string); ok {
		return s
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return s
	}
	return ""
}
