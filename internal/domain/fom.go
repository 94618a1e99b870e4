package domain

import "math"

// fomExponents weights [density, viscosity, thermal conductivity, heat
// capacity] in the figure of merit power law.
var fomExponents = [4]float64{0.2, -0.4, 0.2, 2.0}

// FOMExponents returns the fixed figure of merit exponents in vector order.
func FOMExponents() [4]float64 { return fomExponents }

// FigureOfMerit combines a property vector into a single screening scalar:
//
//	FOM = ρ^0.2 · μ^-0.4 · k^0.2 · cp^2
//
// Every property must be finite and strictly positive; zero bases under the
// negative exponent and negative bases under fractional exponents have no
// real value, so they are rejected before any power is taken. The result is
// not unit-normalized.
//
// Returns *InvalidPropertyValueError naming the first offending property, or
// the property "fom" when the product over- or underflows.
func FigureOfMerit(v PropertyVector) (float64, error) {
	values := v.Values()
	for i, y := range values {
		if math.IsNaN(y) || math.IsInf(y, 0) || y <= 0 {
			return 0, NewInvalidPropertyValueError(PropertyNames[i], y)
		}
	}

	fom := 1.0
	for i, y := range values {
		fom *= math.Pow(y, fomExponents[i])
	}

	if math.IsInf(fom, 0) || math.IsNaN(fom) || fom == 0 {
		return 0, NewInvalidPropertyValueError("fom", fom)
	}
	return fom, nil
}
