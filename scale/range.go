// Package scale holds the pure geometry of a vertical ruler: mapping between
// domain values and pixel offsets, step snapping, tick generation and the
// proximity-based tick magnification.
//
// Nothing in this package keeps state. Every function is safe to call from
// any goroutine and is cheap enough to run on every pointer event.
package scale

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Range is the closed interval a value may take plus its step granularity.
type Range struct {
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
	Step float64 `yaml:"step" json:"step"`
}

// Validate reports whether r can be used for mapping and snapping.
func (r Range) Validate() error {
	if math.IsNaN(r.Min) || math.IsInf(r.Min, 0) || math.IsNaN(r.Max) || math.IsInf(r.Max, 0) {
		return errors.New("range bounds must be finite")
	}
	if r.Min >= r.Max {
		return fmt.Errorf("range min (%g) must be < max (%g)", r.Min, r.Max)
	}
	if !(r.Step > 0) || math.IsInf(r.Step, 0) {
		return fmt.Errorf("range step (%g) must be > 0", r.Step)
	}
	return nil
}

// Span returns Max - Min.
func (r Range) Span() float64 {
	return r.Max - r.Min
}

// Clamp bounds v into [Min, Max]. No snapping is applied.
func (r Range) Clamp(v float64) float64 {
	return Clamp(v, r.Min, r.Max)
}

// Contains reports whether v lies inside [Min, Max].
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Clamp bounds v into [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ValueToPosition projects value onto a scale of the given pixel length.
//
// With invert set the maximum sits at position 0 (top) and the minimum at
// length (bottom), which is how the ruler is drawn.
func ValueToPosition(value float64, r Range, length float64, invert bool) float64 {
	span := r.Span()
	if span == 0 {
		return 0
	}
	if invert {
		return (r.Max - value) / span * length
	}
	return (value - r.Min) / span * length
}

// PositionToValue is the inverse of ValueToPosition. The position is clamped
// to [0, length] first, so drags past either end saturate at Min or Max.
// The result is not snapped.
func PositionToValue(position float64, r Range, length float64, invert bool) float64 {
	if length <= 0 {
		return r.Min
	}
	p := Clamp(position, 0, length)
	frac := p / length
	if invert {
		return r.Max - frac*r.Span()
	}
	return r.Min + frac*r.Span()
}

// SnapToStep rounds value to the nearest grid point Min + n*Step and clamps
// the result into the range.
//
// Ties round half up (toward +Inf). The result is rounded to the decimal
// precision of Step so that a 0.1 grid yields 0.3 and not 0.30000000000000004.
func SnapToStep(value float64, r Range) float64 {
	if !(r.Step > 0) {
		return r.Clamp(value)
	}
	n := math.Floor((value-r.Min)/r.Step + 0.5)
	snapped := n*r.Step + r.Min
	if places, ok := decimals(r.Step, r.Min); ok {
		snapped = roundTo(snapped, places)
	}
	return r.Clamp(snapped)
}

// PositionToStep combines PositionToValue and SnapToStep, which is what a
// drag does on every move.
func PositionToStep(position float64, r Range, length float64, invert bool) float64 {
	return SnapToStep(PositionToValue(position, r, length, invert), r)
}

// Offset moves value by steps grid steps and clamps the result. The value
// itself is not snapped; an off-grid value stays off-grid by the same amount.
func Offset(value float64, steps int, r Range) float64 {
	v := value + float64(steps)*r.Step
	if places, ok := decimals(r.Step, r.Min, value); ok {
		v = roundTo(v, places)
	}
	return r.Clamp(v)
}

const maxDecimals = 10

// decimals returns how many fractional digits are needed to print every
// value exactly. ok is false when some value needs more than maxDecimals,
// in which case no rounding should be applied.
func decimals(vals ...float64) (int, bool) {
	d := 0
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		s := strconv.FormatFloat(math.Abs(v), 'f', -1, 64)
		if i := strings.IndexByte(s, '.'); i >= 0 {
			if n := len(s) - i - 1; n > d {
				d = n
			}
		}
	}
	if d > maxDecimals {
		return 0, false
	}
	return d, true
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
