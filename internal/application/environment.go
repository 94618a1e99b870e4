// Package application wires the mixture model to property engines: single
// mixture evaluation, batch screening, and configuration loading.
package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahrav/go-thermofom/internal/domain"
	"github.com/ahrav/go-thermofom/internal/ports"
)

// MixtureEnvironment owns one mixture composition and evaluates it through
// an injected property engine. It holds no mutable state, so a single
// environment may be used from several goroutines.
type MixtureEnvironment struct {
	composition *domain.Composition
	engine      ports.PropertyEngine
	state       domain.StateCondition
}

// EnvironmentOption configures a MixtureEnvironment.
type EnvironmentOption func(*MixtureEnvironment)

// WithState sets the state condition sent to the engine. The default is
// domain.ReferenceState().
func WithState(state domain.StateCondition) EnvironmentOption {
	return func(e *MixtureEnvironment) { e.state = state }
}

// NewMixtureEnvironment builds the composition from masses and component
// identifiers. Composition problems are reported as
// *domain.InvalidCompositionError; a nil engine or an invalid state is a
// programming error reported as a plain error.
func NewMixtureEnvironment(
	masses []float64,
	components []string,
	engine ports.PropertyEngine,
	opts ...EnvironmentOption,
) (*MixtureEnvironment, error) {
	composition, err := domain.NewComposition(masses, components)
	if err != nil {
		return nil, err
	}
	return NewMixtureEnvironmentFromComposition(composition, engine, opts...)
}

// NewMixtureEnvironmentFromComposition wraps an existing composition.
func NewMixtureEnvironmentFromComposition(
	composition *domain.Composition,
	engine ports.PropertyEngine,
	opts ...EnvironmentOption,
) (*MixtureEnvironment, error) {
	if composition == nil {
		return nil, fmt.Errorf("composition is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("property engine is required")
	}

	env := &MixtureEnvironment{
		composition: composition,
		engine:      engine,
		state:       domain.ReferenceState(),
	}
	for _, opt := range opts {
		opt(env)
	}
	if err := env.state.Validate(); err != nil {
		return nil, fmt.Errorf("invalid state condition: %w", err)
	}
	return env, nil
}

// Composition returns the mixture composition.
func (e *MixtureEnvironment) Composition() *domain.Composition { return e.composition }

// State returns the state condition sent with every engine request.
func (e *MixtureEnvironment) State() domain.StateCondition { return e.state }

// ThermophysicalProperties queries the engine for the mixture's density,
// viscosity, thermal conductivity and heat capacity. Every call reaches the
// engine; results are never cached.
//
// Engine failures are reported as *domain.PropertyLookupError. A lookup
// error from the engine is returned unchanged; any other error is wrapped
// in one naming every component. A non-finite value is treated as a failed
// estimate of that property.
func (e *MixtureEnvironment) ThermophysicalProperties(ctx context.Context) (domain.PropertyVector, error) {
	req := domain.NewPropertyRequest(e.composition, e.state)

	props, err := e.engine.EstimateProperties(ctx, req)
	if err != nil {
		var lookupErr *domain.PropertyLookupError
		if errors.As(err, &lookupErr) {
			return domain.PropertyVector{}, err
		}
		return domain.PropertyVector{}, domain.NewPropertyLookupError(req.Components, "", err)
	}

	if name, value, bad := props.FirstNonFinite(); bad {
		return domain.PropertyVector{}, domain.NewPropertyLookupError(req.Components, name,
			fmt.Errorf("engine %s returned %g", e.engine.Name(), value))
	}
	return props, nil
}

// FOM computes the figure of merit from one fresh property query.
// Lookup failures propagate unchanged; non-positive properties and a
// product that over- or underflows yield *domain.InvalidPropertyValueError.
func (e *MixtureEnvironment) FOM(ctx context.Context) (float64, error) {
	props, err := e.ThermophysicalProperties(ctx)
	if err != nil {
		return 0, err
	}
	return domain.FigureOfMerit(props)
}

// Evaluate returns the properties together with the figure of merit they
// yield, from a single engine call.
func (e *MixtureEnvironment) Evaluate(ctx context.Context) (domain.PropertyVector, float64, error) {
	props, err := e.ThermophysicalProperties(ctx)
	if err != nil {
		return domain.PropertyVector{}, 0, err
	}
	fom, err := domain.FigureOfMerit(props)
	if err != nil {
		return props, 0, err
	}
	return props, fom, nil
}
