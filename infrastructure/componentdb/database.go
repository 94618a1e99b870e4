// Package componentdb stores pure-component liquid properties at a
// reference state and resolves the loosely spelled identifiers people type
// ("Ethylene Glycol", "MEG", "107-21-1") to canonical records.
package componentdb

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-thermofom/internal/domain"
)

// ErrUnknownComponent indicates that an identifier matched no component,
// alias or CAS number.
var ErrUnknownComponent = errors.New("unknown component")

// maxSuggestions caps the "did you mean" list per identifier.
const maxSuggestions = 3

var validate = validator.New()

// Component holds the properties of one pure liquid at the database
// reference state.
type Component struct {
	Name                string   `yaml:"name" json:"name" validate:"required,max=128"`
	CAS                 string   `yaml:"cas,omitempty" json:"cas,omitempty" validate:"omitempty,max=32"`
	Aliases             []string `yaml:"aliases,omitempty" json:"aliases,omitempty" validate:"dive,required"`
	MolarMass           float64  `yaml:"molar_mass" json:"molar_mass" validate:"gt=0"`                     // [g/mol]
	Density             float64  `yaml:"density" json:"density" validate:"gt=0"`                           // [kg/m³]
	Viscosity           float64  `yaml:"viscosity" json:"viscosity" validate:"gt=0"`                       // [Pa·s]
	ThermalConductivity float64  `yaml:"thermal_conductivity" json:"thermal_conductivity" validate:"gt=0"` // [W/(m·K)]
	HeatCapacity        float64  `yaml:"heat_capacity" json:"heat_capacity" validate:"gt=0"`               // [J/(kg·K)]
}

// Properties returns the pure-component property vector.
func (c Component) Properties() domain.PropertyVector {
	return domain.PropertyVector{
		Density:             c.Density,
		Viscosity:           c.Viscosity,
		ThermalConductivity: c.ThermalConductivity,
		HeatCapacity:        c.HeatCapacity,
	}
}

// Database is an immutable, indexed set of components. It is safe for
// concurrent use.
type Database struct {
	reference  domain.StateCondition
	components []Component
	// index maps normalized names, aliases and CAS numbers to positions
	// in components.
	index map[string]int
}

// New validates the components and builds the lookup index. Names, aliases
// and CAS numbers must be unique after normalization.
func New(reference domain.StateCondition, components []Component) (*Database, error) {
	if err := reference.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reference state: %w", err)
	}
	if len(components) == 0 {
		return nil, errors.New("component database is empty")
	}

	db := &Database{
		reference:  reference,
		components: make([]Component, len(components)),
		index:      make(map[string]int, len(components)*3),
	}

	for i, c := range components {
		if err := validate.Struct(c); err != nil {
			return nil, fmt.Errorf("component %d (%q): %w", i, c.Name, err)
		}
		c.Aliases = append([]string(nil), c.Aliases...)
		db.components[i] = c

		keys := append([]string{c.Name}, c.Aliases...)
		if c.CAS != "" {
			keys = append(keys, c.CAS)
		}
		for _, key := range keys {
			norm := NormalizeName(key)
			if prev, dup := db.index[norm]; dup && prev != i {
				return nil, fmt.Errorf("identifier %q of %q already names %q", key, c.Name, db.components[prev].Name)
			}
			db.index[norm] = i
		}
	}

	return db, nil
}

// NormalizeName case-folds an identifier and collapses runs of whitespace
// so that "Ethylene  Glycol" and "ethylene glycol" resolve alike.
func NormalizeName(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// ReferenceState returns the state at which the stored properties apply.
func (db *Database) ReferenceState() domain.StateCondition { return db.reference }

// Lookup resolves a name, alias or CAS number.
func (db *Database) Lookup(name string) (Component, bool) {
	i, ok := db.index[NormalizeName(name)]
	if !ok {
		return Component{}, false
	}
	return db.components[i], true
}

// Resolve looks up every identifier. When any fail, the returned
// *UnresolvedError lists all of them, not just the first.
func (db *Database) Resolve(names []string) ([]Component, error) {
	out := make([]Component, len(names))
	var unresolved *UnresolvedError

	for i, name := range names {
		c, ok := db.Lookup(name)
		if !ok {
			if unresolved == nil {
				unresolved = &UnresolvedError{Suggestions: make(map[string][]string)}
			}
			unresolved.Names = append(unresolved.Names, name)
			if s := db.Suggest(name); len(s) > 0 {
				unresolved.Suggestions[name] = s
			}
			continue
		}
		out[i] = c
	}

	if unresolved != nil {
		return nil, unresolved
	}
	return out, nil
}

// Suggest returns up to three canonical component names whose identifiers
// are within a small edit distance of name, closest first.
func (db *Database) Suggest(name string) []string {
	norm := NormalizeName(name)
	if norm == "" {
		return nil
	}

	limit := max(2, len(norm)/3)
	best := make(map[int]int)
	for key, idx := range db.index {
		d := levenshtein.ComputeDistance(norm, key)
		if d > limit {
			continue
		}
		if prev, ok := best[idx]; !ok || d < prev {
			best[idx] = d
		}
	}

	type candidate struct {
		name string
		dist int
	}
	candidates := make([]candidate, 0, len(best))
	for idx, d := range best {
		candidates = append(candidates, candidate{name: db.components[idx].Name, dist: d})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].name < candidates[j].name
	})

	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}

// Components returns a copy of all components sorted by name.
func (db *Database) Components() []Component {
	out := make([]Component, len(db.components))
	copy(out, db.components)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of components.
func (db *Database) Len() int { return len(db.components) }

// UnresolvedError lists identifiers that matched nothing in the database.
type UnresolvedError struct {
	// Names are the unresolved identifiers in request order.
	Names []string

	// Suggestions maps an unresolved identifier to close canonical names.
	Suggestions map[string][]string
}

// Error implements the error interface for UnresolvedError.
func (e *UnresolvedError) Error() string {
	parts := make([]string, len(e.Names))
	for i, n := range e.Names {
		parts[i] = fmt.Sprintf("%q", n)
		if s := e.Suggestions[n]; len(s) > 0 {
			parts[i] += fmt.Sprintf(" (did you mean %s?)", strings.Join(s, ", "))
		}
	}
	return fmt.Sprintf("%v: %s", ErrUnknownComponent, strings.Join(parts, "; "))
}

// Is reports whether target is ErrUnknownComponent.
func (e *UnresolvedError) Is(target error) bool { return target == ErrUnknownComponent }
