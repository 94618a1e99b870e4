package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors. The struct errors below match these sentinels
// through errors.Is, so callers can branch on the failure kind without
// a type assertion.
var (
	// ErrInvalidComposition indicates a malformed or degenerate mixture
	// composition (length mismatch, negative or non-finite mass, zero total mass).
	ErrInvalidComposition = errors.New("invalid composition")

	// ErrPropertyLookup indicates that the property engine could not resolve
	// a component or estimate a property at the requested composition and state.
	ErrPropertyLookup = errors.New("property lookup failed")

	// ErrInvalidPropertyValue indicates that a property value makes the figure
	// of merit undefined over the reals (zero, negative, or non-finite).
	ErrInvalidPropertyValue = errors.New("invalid property value")
)

// InvalidCompositionError describes why a composition was rejected.
type InvalidCompositionError struct {
	// Index is the offending component position, or -1 when the failure
	// concerns the composition as a whole.
	Index int

	// Reason is a human-readable description of the failure.
	Reason string
}

// Error implements the error interface for InvalidCompositionError.
func (e *InvalidCompositionError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%v: component %d: %s", ErrInvalidComposition, e.Index, e.Reason)
	}
	return fmt.Sprintf("%v: %s", ErrInvalidComposition, e.Reason)
}

// Is reports whether target is ErrInvalidComposition.
func (e *InvalidCompositionError) Is(target error) bool { return target == ErrInvalidComposition }

// NewInvalidCompositionError creates an InvalidCompositionError for the
// component at index, or for the whole composition when index is -1.
func NewInvalidCompositionError(index int, format string, args ...any) *InvalidCompositionError {
	return &InvalidCompositionError{
		Index:  index,
		Reason: fmt.Sprintf(format, args...),
	}
}

// PropertyLookupError represents a failure of the property engine. It names
// the components and, when known, the property that could not be estimated.
type PropertyLookupError struct {
	// Components lists the identifiers involved in the failure. For an
	// unresolved name this is the unresolved subset; otherwise it is the
	// whole mixture.
	Components []string

	// Property is the property that could not be estimated, or empty when
	// the failure is not specific to one property.
	Property string

	// Err is the underlying engine error.
	Err error
}

// Error implements the error interface for PropertyLookupError.
func (e *PropertyLookupError) Error() string {
	var b strings.Builder
	b.WriteString(ErrPropertyLookup.Error())
	if len(e.Components) > 0 {
		fmt.Fprintf(&b, ": components=[%s]", strings.Join(e.Components, ", "))
	}
	if e.Property != "" {
		fmt.Fprintf(&b, ", property=%s", e.Property)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying engine error.
func (e *PropertyLookupError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPropertyLookup.
func (e *PropertyLookupError) Is(target error) bool { return target == ErrPropertyLookup }

// NewPropertyLookupError creates a PropertyLookupError. The components
// slice is copied.
func NewPropertyLookupError(components []string, property string, err error) *PropertyLookupError {
	return &PropertyLookupError{
		Components: append([]string(nil), components...),
		Property:   property,
		Err:        err,
	}
}

// InvalidPropertyValueError reports a property value that cannot enter the
// figure of merit power law.
type InvalidPropertyValueError struct {
	// Property names the offending quantity.
	Property string

	// Value is the rejected value.
	Value float64
}

// Error implements the error interface for InvalidPropertyValueError.
func (e *InvalidPropertyValueError) Error() string {
	return fmt.Sprintf("%v: %s=%g", ErrInvalidPropertyValue, e.Property, e.Value)
}

// Is reports whether target is ErrInvalidPropertyValue.
func (e *InvalidPropertyValueError) Is(target error) bool { return target == ErrInvalidPropertyValue }

// NewInvalidPropertyValueError creates an InvalidPropertyValueError.
func NewInvalidPropertyValueError(property string, value float64) *InvalidPropertyValueError {
	return &InvalidPropertyValueError{Property: property, Value: value}
}
