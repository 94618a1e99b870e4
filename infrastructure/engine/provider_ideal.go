package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ahrav/go-thermofom/infrastructure/componentdb"
	"github.com/ahrav/go-thermofom/internal/domain"
)

// IdealProviderName is the registry name of the ideal-mixing provider.
const IdealProviderName = "ideal"

const (
	fractionSumTolerance = 1e-6
	temperatureTolerance = 1e-6 // K
	pressureTolerance    = 1e-3 // Pa
)

func init() {
	RegisterProviderFactory(IdealProviderName, func(config ClientConfig) (CoreEngine, error) {
		db := config.Database
		if db == nil {
			var err error
			if db, err = componentdb.Default(); err != nil {
				return nil, fmt.Errorf("load built-in component database: %w", err)
			}
		}
		return NewIdealEngine(db), nil
	})
}

var _ CoreEngine = (*IdealEngine)(nil)

// IdealEngine estimates liquid mixture properties from pure-component data
// with ideal mixing rules:
//
//	density               1/ρ = Σ wᵢ/ρᵢ
//	viscosity             ln μ = Σ xᵢ ln μᵢ   (Arrhenius, mole fractions)
//	thermal conductivity  k = (Σ wᵢ/kᵢ²)^-1/2  (DIPPR 9H)
//	heat capacity         cp = Σ wᵢ cpᵢ
//
// Pure-component data is only valid at the database's reference state, so
// requests at any other state fail with a property lookup error.
type IdealEngine struct {
	db *componentdb.Database
}

// NewIdealEngine creates an IdealEngine backed by db.
func NewIdealEngine(db *componentdb.Database) *IdealEngine {
	return &IdealEngine{db: db}
}

// Name returns "ideal".
func (e *IdealEngine) Name() string { return IdealProviderName }

// Database returns the component database the engine reads.
func (e *IdealEngine) Database() *componentdb.Database { return e.db }

// Estimate implements CoreEngine.
func (e *IdealEngine) Estimate(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error) {
	if err := ctx.Err(); err != nil {
		return domain.PropertyVector{}, err
	}
	if err := checkFractions(req); err != nil {
		return domain.PropertyVector{}, err
	}

	ref := e.db.ReferenceState()
	if math.Abs(req.State.TemperatureK-ref.TemperatureK) > temperatureTolerance ||
		math.Abs(req.State.PressurePa-ref.PressurePa) > pressureTolerance {
		return domain.PropertyVector{}, domain.NewPropertyLookupError(req.Components, "",
			fmt.Errorf("%w: data available only at T=%g K, p=%g Pa, requested T=%g K, p=%g Pa",
				ErrUnsupportedState, ref.TemperatureK, ref.PressurePa, req.State.TemperatureK, req.State.PressurePa))
	}

	components, err := e.db.Resolve(req.Components)
	if err != nil {
		var unresolved *componentdb.UnresolvedError
		if errors.As(err, &unresolved) {
			return domain.PropertyVector{}, domain.NewPropertyLookupError(unresolved.Names, "", err)
		}
		return domain.PropertyVector{}, domain.NewPropertyLookupError(req.Components, "", err)
	}

	props := mix(components, req.MassFractions)
	if name, _, bad := props.FirstNonFinite(); bad {
		return domain.PropertyVector{}, domain.NewPropertyLookupError(req.Components, name, ErrEstimationFailed)
	}
	for i, v := range props.Values() {
		if v <= 0 {
			return domain.PropertyVector{}, domain.NewPropertyLookupError(req.Components, domain.PropertyNames[i], ErrEstimationFailed)
		}
	}
	return props, nil
}

// checkFractions rejects requests that a Composition could not have built.
func checkFractions(req domain.PropertyRequest) error {
	if len(req.Components) == 0 {
		return fmt.Errorf("%w: no components", ErrMalformedRequest)
	}
	if len(req.Components) != len(req.MassFractions) {
		return fmt.Errorf("%w: %d components but %d mass fractions",
			ErrMalformedRequest, len(req.Components), len(req.MassFractions))
	}

	var sum float64
	for i, w := range req.MassFractions {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 || w > 1 {
			return fmt.Errorf("%w: mass fraction %d is %g", ErrMalformedRequest, i, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > fractionSumTolerance {
		return fmt.Errorf("%w: mass fractions sum to %g", ErrMalformedRequest, sum)
	}
	return nil
}

// mix applies the ideal mixing rules. Components with a zero fraction do not
// contribute.
func mix(components []componentdb.Component, fractions []float64) domain.PropertyVector {
	var (
		specificVolume float64 // Σ w/ρ
		moles          float64 // Σ w/M
		kSum           float64 // Σ w/k²
		cp             float64
	)
	for i, c := range components {
		w := fractions[i]
		if w == 0 {
			continue
		}
		specificVolume += w / c.Density
		moles += w / c.MolarMass
		kSum += w / (c.ThermalConductivity * c.ThermalConductivity)
		cp += w * c.HeatCapacity
	}

	var lnMu float64
	for i, c := range components {
		w := fractions[i]
		if w == 0 {
			continue
		}
		x := (w / c.MolarMass) / moles
		lnMu += x * math.Log(c.Viscosity)
	}

	return domain.PropertyVector{
		Density:             1 / specificVolume,
		Viscosity:           math.Exp(lnMu),
		ThermalConductivity: 1 / math.Sqrt(kSum),
		HeatCapacity:        cp,
	}
}
