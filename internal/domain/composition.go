// Package domain holds the mixture model of the figure of merit calculator:
// compositions, property vectors, the figure of merit power law, and the
// typed errors every layer reports through.
package domain

import (
	"math"
	"strings"
)

// Composition is an immutable mixture description. Masses and component
// identifiers are positionally aligned; mass fractions and the total mass
// are derived once at construction.
type Composition struct {
	components    []string
	masses        []float64
	massFractions []float64
	totalMass     float64
}

// NewComposition validates masses and component identifiers and derives the
// mass fractions. Lengths are compared before any arithmetic.
//
// It returns an *InvalidCompositionError when the slices differ in length,
// are empty, contain a blank identifier, contain a negative or non-finite
// mass, or when the masses sum to zero.
func NewComposition(masses []float64, components []string) (*Composition, error) {
	if len(masses) != len(components) {
		return nil, NewInvalidCompositionError(-1,
			"masses (%d) and component identifiers (%d) differ in length", len(masses), len(components))
	}
	if len(masses) == 0 {
		return nil, NewInvalidCompositionError(-1, "at least one component is required")
	}

	var total float64
	for i, m := range masses {
		if strings.TrimSpace(components[i]) == "" {
			return nil, NewInvalidCompositionError(i, "component identifier is blank")
		}
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return nil, NewInvalidCompositionError(i, "mass of %q is not finite (%v)", components[i], m)
		}
		if m < 0 {
			return nil, NewInvalidCompositionError(i, "mass of %q is negative (%g)", components[i], m)
		}
		total += m
	}

	if total == 0 {
		return nil, NewInvalidCompositionError(-1, "total mass is zero")
	}
	if math.IsInf(total, 0) {
		return nil, NewInvalidCompositionError(-1, "total mass overflows")
	}

	fractions := make([]float64, len(masses))
	for i, m := range masses {
		fractions[i] = m / total
	}

	return &Composition{
		components:    append([]string(nil), components...),
		masses:        append([]float64(nil), masses...),
		massFractions: fractions,
		totalMass:     total,
	}, nil
}

// Components returns a copy of the component identifiers.
func (c *Composition) Components() []string { return append([]string(nil), c.components...) }

// Masses returns a copy of the component masses.
func (c *Composition) Masses() []float64 { return append([]float64(nil), c.masses...) }

// MassFractions returns a copy of the mass fractions, aligned with Components.
func (c *Composition) MassFractions() []float64 { return append([]float64(nil), c.massFractions...) }

// TotalMass returns the sum of the component masses.
func (c *Composition) TotalMass() float64 { return c.totalMass }

// Len returns the number of components.
func (c *Composition) Len() int { return len(c.components) }
