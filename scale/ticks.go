package scale

import "math"

// Tick is a marked point on the ruler.
type Tick struct {
	Value    float64 `json:"value"`
	Position float64 `json:"position"`
	Major    bool    `json:"major"`
}

// Geometry is the pixel length of the ruler and the domain spacing of its ticks.
type Geometry struct {
	Length       float64 `yaml:"length" json:"length"`
	Thickness    float64 `yaml:"thickness" json:"thickness"`
	TickInterval float64 `yaml:"tick_interval" json:"tick_interval"`

	// MajorEvery marks ticks whose value is a multiple of it as major.
	// Zero disables major ticks.
	MajorEvery float64 `yaml:"major_every" json:"major_every"`
}

// gridEpsilon absorbs float error when deciding whether the last tick still
// lies inside the range, relative to the interval.
const gridEpsilon = 1e-9

// GenerateTicks enumerates Min, Min+interval, ... while the value does not
// exceed Max. Max is only included when it lands on the interval grid.
//
// Tick values are computed as Min + i*interval (not by accumulation) so the
// same range always yields bit-identical values, which callers use as keys.
func GenerateTicks(r Range, g Geometry, invert bool) []Tick {
	if !(g.TickInterval > 0) || r.Min > r.Max {
		return nil
	}
	count := int(math.Floor(r.Span()/g.TickInterval+gridEpsilon)) + 1
	places, round := decimals(g.TickInterval, r.Min)

	ticks := make([]Tick, 0, count)
	for i := 0; i < count; i++ {
		v := r.Min + float64(i)*g.TickInterval
		if round {
			v = roundTo(v, places)
		}
		if v > r.Max {
			break
		}
		ticks = append(ticks, Tick{
			Value:    v,
			Position: ValueToPosition(v, r, g.Length, invert),
			Major:    IsMajor(v, g.MajorEvery),
		})
	}
	return ticks
}

// IsMajor reports whether v is a multiple of every (within float tolerance).
func IsMajor(v, every float64) bool {
	if !(every > 0) {
		return false
	}
	q := v / every
	return math.Abs(q-math.Round(q)) < 1e-6
}
