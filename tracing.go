package weave

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/weave"

// TracingMiddleware opens an OpenTelemetry span around every binding
// resolution. Nested resolutions become child spans.
type TracingMiddleware struct {
	tracer trace.Tracer
}

// NewTracingMiddleware creates the middleware. A nil tracer uses the global
// tracer provider.
func NewTracingMiddleware(tracer trace.Tracer) *TracingMiddleware {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &TracingMiddleware{tracer: tracer}
}

// BeforeResolve implements Middleware.
func (t *TracingMiddleware) BeforeResolve(ctx context.Context, key string) (context.Context, error) {
	ctx, _ = t.tracer.Start(ctx, "weave.resolve "+key,
		trace.WithAttributes(attribute.String("weave.binding.key", key)),
	)

	return ctx, nil
}

// AfterResolve implements Middleware.
func (t *TracingMiddleware) AfterResolve(ctx context.Context, key string, value any, err error) error {
	span := trace.SpanFromContext(ctx)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()

	return nil
}
