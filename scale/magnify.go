package scale

import "math"

// Magnification controls how ticks grow as the cursor approaches them.
type Magnification struct {
	Enabled  bool    `yaml:"enabled" json:"enabled"`
	Radius   float64 `yaml:"radius" json:"radius"`
	MaxScale float64 `yaml:"max_scale" json:"max_scale"`
}

// TickScale returns the target scale of a tick at tickPosition for a cursor
// at cursorPosition. Falloff is linear: maxScale at distance 0, 1.0 at and
// beyond radius.
func TickScale(tickPosition, cursorPosition, radius, maxScale float64) float64 {
	if !(radius > 0) {
		return 1.0
	}
	distance := math.Abs(tickPosition - cursorPosition)
	if distance >= radius {
		return 1.0
	}
	proximity := 1 - distance/radius
	return 1 + proximity*(maxScale-1)
}

// TickScales computes a fresh value -> scale mapping for every tick.
// When magnification is disabled every tick maps to 1.0.
func TickScales(ticks []Tick, cursorPosition float64, m Magnification) map[float64]float64 {
	if !m.Enabled {
		return RestingScales(ticks)
	}
	out := make(map[float64]float64, len(ticks))
	for _, t := range ticks {
		out[t.Value] = TickScale(t.Position, cursorPosition, m.Radius, m.MaxScale)
	}
	return out
}

// RestingScales maps every tick to 1.0.
func RestingScales(ticks []Tick) map[float64]float64 {
	out := make(map[float64]float64, len(ticks))
	for _, t := range ticks {
		out[t.Value] = 1.0
	}
	return out
}
