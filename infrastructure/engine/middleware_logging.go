package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahrav/go-thermofom/internal/domain"
)

// loggedEngine writes one structured log event per request.
type loggedEngine struct {
	next   CoreEngine
	logger zerolog.Logger
}

// LoggingMiddleware creates middleware that logs each request at debug
// level and each failure at warn level.
func LoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(next CoreEngine) CoreEngine {
		return &loggedEngine{
			next:   next,
			logger: logger.With().Str("engine", next.Name()).Logger(),
		}
	}
}

// Estimate executes the request and logs its outcome.
func (l *loggedEngine) Estimate(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error) {
	start := time.Now()
	props, err := l.next.Estimate(ctx, req)

	if err != nil {
		l.logger.Warn().
			Err(err).
			Strs("components", req.Components).
			Dur("elapsed", time.Since(start)).
			Str("status", requestStatus(err)).
			Msg("property estimate failed")
		return props, err
	}

	l.logger.Debug().
		Strs("components", req.Components).
		Floats64("mass_fractions", req.MassFractions).
		Float64("density", props.Density).
		Float64("viscosity", props.Viscosity).
		Float64("thermal_conductivity", props.ThermalConductivity).
		Float64("heat_capacity", props.HeatCapacity).
		Dur("elapsed", time.Since(start)).
		Msg("property estimate")
	return props, nil
}

// Name returns the wrapped provider's name.
func (l *loggedEngine) Name() string { return l.next.Name() }
