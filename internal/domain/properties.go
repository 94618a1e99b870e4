package domain

import (
	"fmt"
	"math"
)

// Property names, in the fixed order of PropertyVector.Values.
const (
	PropertyDensity             = "density"
	PropertyViscosity           = "viscosity"
	PropertyThermalConductivity = "thermal_conductivity"
	PropertyHeatCapacity        = "heat_capacity"
)

// PropertyNames lists the property names in vector order.
var PropertyNames = [4]string{
	PropertyDensity,
	PropertyViscosity,
	PropertyThermalConductivity,
	PropertyHeatCapacity,
}

// PropertyVector holds the thermophysical properties of a mixture at one
// composition and state. It is produced fresh by every engine call.
type PropertyVector struct {
	Density             float64 `json:"density" yaml:"density"`                           // [kg/m³]
	Viscosity           float64 `json:"viscosity" yaml:"viscosity"`                       // [Pa·s]
	ThermalConductivity float64 `json:"thermal_conductivity" yaml:"thermal_conductivity"` // [W/(m·K)]
	HeatCapacity        float64 `json:"heat_capacity" yaml:"heat_capacity"`               // [J/(kg·K)]
}

// Values returns the properties as [density, viscosity, thermal
// conductivity, heat capacity].
func (v PropertyVector) Values() [4]float64 {
	return [4]float64{v.Density, v.Viscosity, v.ThermalConductivity, v.HeatCapacity}
}

// FirstNonFinite returns the name and value of the first NaN or infinite
// property, in vector order.
func (v PropertyVector) FirstNonFinite() (string, float64, bool) {
	for i, val := range v.Values() {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return PropertyNames[i], val, true
		}
	}
	return "", 0, false
}

// String renders the vector with units.
func (v PropertyVector) String() string {
	return fmt.Sprintf("rho=%g kg/m3, mu=%g Pa*s, k=%g W/(m*K), cp=%g J/(kg*K)",
		v.Density, v.Viscosity, v.ThermalConductivity, v.HeatCapacity)
}

// Reference state used when a caller does not choose one: 25 °C at one
// standard atmosphere.
const (
	ReferenceTemperatureK = 298.15   // [K]
	ReferencePressurePa   = 101325.0 // [Pa]
)

// StateCondition is the temperature and pressure at which properties are
// estimated. It is always sent to the engine explicitly.
type StateCondition struct {
	TemperatureK float64 `json:"temperature_k" yaml:"temperature_k"` // [K]
	PressurePa   float64 `json:"pressure_pa" yaml:"pressure_pa"`     // [Pa]
}

// ReferenceState returns the default state condition.
func ReferenceState() StateCondition {
	return StateCondition{TemperatureK: ReferenceTemperatureK, PressurePa: ReferencePressurePa}
}

// Validate checks that temperature and pressure are finite and positive.
func (s StateCondition) Validate() error {
	if !(s.TemperatureK > 0) || math.IsInf(s.TemperatureK, 0) {
		return fmt.Errorf("temperature must be a positive finite value in kelvin, got %g", s.TemperatureK)
	}
	if !(s.PressurePa > 0) || math.IsInf(s.PressurePa, 0) {
		return fmt.Errorf("pressure must be a positive finite value in pascal, got %g", s.PressurePa)
	}
	return nil
}

// PropertyRequest is the composition descriptor handed to a property engine.
// MassFractions is aligned with Components.
type PropertyRequest struct {
	Components    []string       `json:"components"`
	MassFractions []float64      `json:"mass_fractions"`
	State         StateCondition `json:"state"`
}

// NewPropertyRequest builds a request from a composition at the given state.
func NewPropertyRequest(c *Composition, state StateCondition) PropertyRequest {
	return PropertyRequest{
		Components:    c.Components(),
		MassFractions: c.MassFractions(),
		State:         state,
	}
}
