// Package units is an index-addressable registry of measurement units and
// the conversion functions between them.
package units

import (
	"errors"
	"fmt"

	"rulerpicker/scale"
)

// ErrIndexOutOfRange is returned when a registry lookup misses.
var ErrIndexOutOfRange = errors.New("unit index out of range")

// ConvertFunc converts value (expressed in the owning unit) into target.
// Implementations return value unchanged for targets they do not know.
type ConvertFunc func(value float64, target Descriptor) float64

// Descriptor is a named measurement unit.
type Descriptor struct {
	Label  string `json:"label"`
	Symbol string `json:"symbol"`

	// Range, if set, replaces the picker's range while this unit is active.
	Range *scale.Range `json:"range,omitempty"`

	// Convert is nil for units that never convert (identity).
	Convert ConvertFunc `json:"-"`
}

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	if d.Symbol == "" {
		return d.Label
	}
	return d.Symbol
}

// Convert converts value from unit from into unit to using from's conversion
// function. A missing function is identity.
func Convert(from Descriptor, value float64, to Descriptor) float64 {
	if from.Convert == nil {
		return value
	}
	return from.Convert(value, to)
}

// Registry is an ordered, immutable set of units.
type Registry struct {
	units []Descriptor
}

// NewRegistry builds a registry preserving the given order.
func NewRegistry(units ...Descriptor) *Registry {
	cp := make([]Descriptor, len(units))
	copy(cp, units)
	return &Registry{units: cp}
}

// Len returns the number of units. A nil registry is empty.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.units)
}

// At returns the unit at index i.
func (r *Registry) At(i int) (Descriptor, error) {
	if i < 0 || i >= r.Len() {
		return Descriptor{}, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, i, r.Len())
	}
	return r.units[i], nil
}

// All returns a copy of the units in registry order.
func (r *Registry) All() []Descriptor {
	if r == nil {
		return nil
	}
	cp := make([]Descriptor, len(r.units))
	copy(cp, r.units)
	return cp
}

// Validate checks every per-unit range.
func (r *Registry) Validate() error {
	if r.Len() == 0 {
		return errors.New("unit registry is empty")
	}
	for i, u := range r.units {
		if u.Range == nil {
			continue
		}
		if err := u.Range.Validate(); err != nil {
			return fmt.Errorf("unit %d (%s): %w", i, u, err)
		}
	}
	return nil
}
