package picker

import (
	"sort"

	"rulerpicker/scale"
	"rulerpicker/units"
)

// The ruler is drawn with its minimum at the bottom.
const invert = true

// Phase is the interaction state machine's state.
type Phase int

const (
	Idle Phase = iota
	Dragging
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// Drag holds the coordinates recorded by DragStart and updated on every move.
type Drag struct {
	OriginY  float64
	PointerY float64
}

// State is the complete interaction state. Reduce never mutates a State it
// receives; maps and slices held here are replaced, not edited.
type State struct {
	Phase     Phase
	Value     float64
	Cursor    float64
	UnitIndex int

	// Range is the active range: the selected unit's own range if it has
	// one, the configured range otherwise.
	Range    scale.Range
	Geometry scale.Geometry
	Ticks    []scale.Tick

	// TickScales maps tick value to target scale.
	TickScales map[float64]float64

	Drag Drag
}

// NewState returns the initial state for cfg: idle, default unit, value at
// the active range's minimum and every tick at rest.
func NewState(cfg *Config) State {
	unit, err := cfg.Units.Registry.At(cfg.Units.Default)
	if err != nil {
		unit = units.Descriptor{}
	}
	r := cfg.rangeFor(unit)
	ticks := scale.GenerateTicks(r, cfg.Geometry, invert)
	return State{
		Phase:      Idle,
		Value:      r.Min,
		Cursor:     scale.ValueToPosition(r.Min, r, cfg.Geometry.Length, invert),
		UnitIndex:  cfg.Units.Default,
		Range:      r,
		Geometry:   cfg.Geometry,
		Ticks:      ticks,
		TickScales: scale.RestingScales(ticks),
	}
}

// TickScale is one entry of Snapshot.TickScales.
type TickScale struct {
	Value float64 `json:"value"`
	Scale float64 `json:"scale"`
}

// Snapshot is a read-only, JSON-friendly copy of the state.
type Snapshot struct {
	Phase            string             `json:"phase"`
	Value            float64            `json:"value"`
	Cursor           float64            `json:"cursor"`
	UnitIndex        int                `json:"unit_index"`
	Unit             units.Descriptor   `json:"unit"`
	Units            []units.Descriptor `json:"units"`
	ShowUnitSwitcher bool               `json:"show_unit_switcher"`
	Range            scale.Range        `json:"range"`
	Geometry         scale.Geometry     `json:"geometry"`
	Ticks            []scale.Tick       `json:"ticks"`
	TickScales       []TickScale        `json:"tick_scales"`
}

// Snapshot copies s together with the unit information from reg.
func (s State) Snapshot(reg *units.Registry) Snapshot {
	unit, _ := reg.At(s.UnitIndex)
	ticks := make([]scale.Tick, len(s.Ticks))
	copy(ticks, s.Ticks)
	return Snapshot{
		Phase:      s.Phase.String(),
		Value:      s.Value,
		Cursor:     s.Cursor,
		UnitIndex:  s.UnitIndex,
		Unit:       unit,
		Units:      reg.All(),
		Range:      s.Range,
		Geometry:   s.Geometry,
		Ticks:      ticks,
		TickScales: ScaleList(s.TickScales),
	}
}

// ScaleList flattens a tick-scale map into a slice ordered by tick value.
// Float keys cannot be JSON object keys.
func ScaleList(m map[float64]float64) []TickScale {
	out := make([]TickScale, 0, len(m))
	for v, sc := range m {
		out = append(out, TickScale{Value: v, Scale: sc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}
