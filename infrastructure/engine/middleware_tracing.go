package engine

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-thermofom/internal/domain"
)

const tracerName = "github.com/ahrav/go-thermofom/infrastructure/engine"

// tracedEngine wraps each request in an OpenTelemetry span.
type tracedEngine struct {
	next        CoreEngine
	serviceName string
	tracer      trace.Tracer
}

// TracingMiddleware creates middleware that records an "engine.estimate"
// span per request using the global tracer provider.
func TracingMiddleware(serviceName string) Middleware {
	return TracingMiddlewareWithProvider(serviceName, otel.GetTracerProvider())
}

// TracingMiddlewareWithProvider is TracingMiddleware with an explicit
// tracer provider.
func TracingMiddlewareWithProvider(serviceName string, tp trace.TracerProvider) Middleware {
	tracer := tp.Tracer(tracerName)
	return func(next CoreEngine) CoreEngine {
		return &tracedEngine{
			next:        next,
			serviceName: serviceName,
			tracer:      tracer,
		}
	}
}

// Estimate executes the request within a span.
func (t *tracedEngine) Estimate(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error) {
	ctx, span := t.tracer.Start(ctx, "engine.estimate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("service.name", t.serviceName),
			attribute.String("engine.name", t.next.Name()),
			attribute.Int("mixture.components", len(req.Components)),
			attribute.String("mixture.component_names", strings.Join(req.Components, ",")),
			attribute.Float64("state.temperature_k", req.State.TemperatureK),
			attribute.Float64("state.pressure_pa", req.State.PressurePa),
		),
	)
	defer span.End()

	props, err := t.next.Estimate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var lookupErr *domain.PropertyLookupError
		if errors.As(err, &lookupErr) && lookupErr.Property != "" {
			span.SetAttributes(attribute.String("lookup.property", lookupErr.Property))
		}
		return props, err
	}

	span.SetAttributes(
		attribute.Float64("mixture.density", props.Density),
		attribute.Float64("mixture.viscosity", props.Viscosity),
		attribute.Float64("mixture.thermal_conductivity", props.ThermalConductivity),
		attribute.Float64("mixture.heat_capacity", props.HeatCapacity),
	)
	span.SetStatus(codes.Ok, "")
	return props, nil
}

// Name returns the wrapped provider's name.
func (t *tracedEngine) Name() string { return t.next.Name() }
