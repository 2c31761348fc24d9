package picker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulerpicker/units"
)

func mustConfig(t *testing.T, o Overrides) *Config {
	t.Helper()
	cfg, err := Resolve(o)
	require.NoError(t, err)
	return &cfg
}

func reduceAll(s State, cfg *Config, events ...Event) (State, []Command) {
	var cmds []Command
	for _, e := range events {
		rr := Reduce(s, e, cfg)
		s = rr.State
		cmds = append(cmds, rr.Commands...)
	}
	return s, cmds
}

func notifiedValues(cmds []Command) []float64 {
	var out []float64
	for _, c := range cmds {
		if n, ok := c.(CmdNotifyValue); ok {
			out = append(out, n.Value)
		}
	}
	return out
}

func TestNewState(t *testing.T) {
	cfg := mustConfig(t, Overrides{})
	s := NewState(cfg)

	assert.Equal(t, Idle, s.Phase)
	assert.Equal(t, 150.0, s.Value)
	assert.InDelta(t, 400.0, s.Cursor, 1e-9)
	assert.Len(t, s.Ticks, 15)
	for _, tk := range s.Ticks {
		assert.Equal(t, 1.0, s.TickScales[tk.Value])
	}
}

func TestReduce_DragScenario(t *testing.T) {
	cfg := mustConfig(t, Overrides{})
	origin := 100.0

	tests := []struct {
		pointer float64
		want    float64
	}{
		{pointer: origin + 400, want: 150},
		{pointer: origin, want: 220},
		{pointer: origin + 200, want: 185},
		{pointer: origin + 900, want: 150},
		{pointer: origin - 50, want: 220},
	}
	for _, tt := range tests {
		s, cmds := reduceAll(NewState(cfg), cfg,
			DragStart{PointerY: tt.pointer, OriginY: &origin},
			DragMove{PointerY: tt.pointer},
		)
		assert.Equal(t, tt.want, s.Value, "pointer %v", tt.pointer)
		assert.Equal(t, []float64{tt.want}, notifiedValues(cmds))
		assert.Equal(t, Dragging, s.Phase)
	}
}

func TestReduce_DragStartDoesNotChangeValue(t *testing.T) {
	cfg := mustConfig(t, Overrides{})
	s0 := NewState(cfg)
	rr := Reduce(s0, DragStart{PointerY: 42}, cfg)
	assert.Empty(t, rr.Commands)
	assert.Equal(t, s0.Value, rr.State.Value)
	assert.Equal(t, Dragging, rr.State.Phase)
	assert.Equal(t, 42.0, rr.State.Drag.PointerY)
}

func TestReduce_DragMoveIsIdempotent(t *testing.T) {
	cfg := mustConfig(t, Overrides{})
	s, _ := reduceAll(NewState(cfg), cfg, DragStart{PointerY: 0}, DragMove{PointerY: 123.4})
	first := s.Value
	for i := 0; i < 10; i++ {
		s, _ = reduceAll(s, cfg, DragMove{PointerY: 123.4})
		require.Equal(t, first, s.Value)
	}
}

func TestReduce_DragMoveIgnoredWhileIdle(t *testing.T) {
	cfg := mustConfig(t, Overrides{})
	s0 := NewState(cfg)
	rr := Reduce(s0, DragMove{PointerY: 10}, cfg)
	assert.Empty(t, rr.Commands)
	assert.Equal(t, s0.Value, rr.State.Value)
}

func TestReduce_DragMoveMagnifiesNearCursor(t *testing.T) {
	cfg := mustConfig(t, Overrides{})
	s, cmds := reduceAll(NewState(cfg), cfg, DragStart{PointerY: 0}, DragMove{PointerY: 200})

	assert.Equal(t, 185.0, s.Value)
	assert.InDelta(t, 1.5, s.TickScales[185], 1e-9)
	assert.Equal(t, 1.0, s.TickScales[150])

	require.IsType(t, CmdAnimateCursor{}, cmds[0])
	assert.Equal(t, EaseLinear, cmds[0].(CmdAnimateCursor).Transition.Easing)
	ticks := cmds[1].(CmdAnimateTicks)
	assert.InDelta(t, 1.5, ticks.Targets[185], 1e-9)
}

func TestReduce_DragEndCommitsAndRelaxesTicks(t *testing.T) {
	cfg := mustConfig(t, Overrides{})
	s, _ := reduceAll(NewState(cfg), cfg, DragStart{PointerY: 0}, DragMove{PointerY: 200})

	rr := Reduce(s, DragEnd{}, cfg)
	assert.Equal(t, Idle, rr.State.Phase)
	assert.Equal(t, 185.0, rr.State.Value)
	for _, sc := range rr.State.TickScales {
		assert.Equal(t, 1.0, sc)
	}
	assert.Equal(t, []float64{185}, notifiedValues(rr.Commands))

	cur := rr.Commands[0].(CmdAnimateCursor)
	assert.Equal(t, ms(DefaultSettleMS), cur.Transition.Duration)
	assert.Equal(t, EaseOut, cur.Transition.Easing)
	ticks := rr.Commands[1].(CmdAnimateTicks)
	assert.Equal(t, ms(DefaultReleaseMS), ticks.Transition.Duration)

	// previous state's map is untouched
	assert.InDelta(t, 1.5, s.TickScales[185], 1e-9)
}

func TestReduce_DragEndAtNewPointer(t *testing.T) {
	cfg := mustConfig(t, Overrides{})
	end := 400.0
	s, _ := reduceAll(NewState(cfg), cfg, DragStart{PointerY: 0}, DragMove{PointerY: 200}, DragEnd{PointerY: &end})
	assert.Equal(t, 150.0, s.Value)
}

func TestReduce_IncrementAtMaxStillNotifies(t *testing.T) {
	cfg := mustConfig(t, Overrides{})
	s, cmds := reduceAll(NewState(cfg), cfg, SetValue{Value: 220}, Increment{})
	assert.Equal(t, 220.0, s.Value)
	assert.Equal(t, []float64{220, 220}, notifiedValues(cmds))
}

func TestReduce_DecrementAtMin(t *testing.T) {
	cfg := mustConfig(t, Overrides{})
	s, cmds := reduceAll(NewState(cfg), cfg, Decrement{})
	assert.Equal(t, 150.0, s.Value)
	assert.Equal(t, []float64{150}, notifiedValues(cmds))
}

func TestReduce_SetValueDoesNotSnap(t *testing.T) {
	cfg := mustConfig(t, Overrides{MinValue: ptr(40.0), MaxValue: ptr(150.0), Step: ptr(0.5)})
	s, _ := reduceAll(NewState(cfg), cfg, SetValue{Value: 61.3})
	assert.Equal(t, 61.3, s.Value)

	s, _ = reduceAll(s, cfg, Increment{})
	assert.Equal(t, 61.8, s.Value)
}

func TestReduce_SetValueClamps(t *testing.T) {
	cfg := mustConfig(t, Overrides{})
	s, _ := reduceAll(NewState(cfg), cfg, SetValue{Value: 1e9})
	assert.Equal(t, 220.0, s.Value)
	s, _ = reduceAll(s, cfg, SetValue{Value: -1e9})
	assert.Equal(t, 150.0, s.Value)
}

func TestReduce_SetValueIgnoresNaN(t *testing.T) {
	cfg := mustConfig(t, Overrides{})
	s0, _ := reduceAll(NewState(cfg), cfg, SetValue{Value: 170})
	rr := Reduce(s0, SetValue{Value: math.NaN()}, cfg)
	assert.Empty(t, rr.Commands)
	assert.Equal(t, 170.0, rr.State.Value)
}

func cmInRegistry() *units.Registry {
	cm := units.Descriptor{Label: "Centimeters", Symbol: "cm"}
	in := units.Descriptor{Label: "Inches", Symbol: "in"}
	ft := units.Descriptor{Label: "Feet", Symbol: "ft"}
	cm.Convert = func(v float64, target units.Descriptor) float64 {
		if target.Symbol == "in" {
			return v / 2.54
		}
		return v
	}
	in.Convert = func(v float64, target units.Descriptor) float64 {
		if target.Symbol == "cm" {
			return v * 2.54
		}
		return v
	}
	return units.NewRegistry(cm, in, ft)
}

func TestReduce_SwitchUnitRoundTrip(t *testing.T) {
	cfg := mustConfig(t, Overrides{MinValue: ptr(0.0), MaxValue: ptr(300.0), Units: cmInRegistry()})

	s, _ := reduceAll(NewState(cfg), cfg, SetValue{Value: 175})
	s, cmds := reduceAll(s, cfg, SwitchUnit{Index: 1})
	assert.Equal(t, 1, s.UnitIndex)
	assert.InDelta(t, 175/2.54, s.Value, 1e-9)

	var order []string
	for _, c := range cmds {
		switch c.(type) {
		case CmdNotifyValue:
			order = append(order, "value")
		case CmdNotifyUnit:
			order = append(order, "unit")
		}
	}
	assert.Equal(t, []string{"value", "unit"}, order)

	s, _ = reduceAll(s, cfg, SwitchUnit{Index: 0})
	assert.InDelta(t, 175, s.Value, 1e-9)
}

func TestReduce_SwitchUnitClampsIntoCurrentRange(t *testing.T) {
	cfg := mustConfig(t, Overrides{Units: cmInRegistry()})
	s, _ := reduceAll(NewState(cfg), cfg, SetValue{Value: 175}, SwitchUnit{Index: 1})
	assert.Equal(t, 150.0, s.Value)
}

func TestReduce_SwitchUnitMissingConversionIsIdentity(t *testing.T) {
	cfg := mustConfig(t, Overrides{Units: cmInRegistry()})
	s, _ := reduceAll(NewState(cfg), cfg, SetValue{Value: 175}, SwitchUnit{Index: 2})
	assert.Equal(t, 175.0, s.Value)
	assert.Equal(t, 2, s.UnitIndex)
}

func TestReduce_SwitchUnitSameIndexIsNoop(t *testing.T) {
	cfg := mustConfig(t, Overrides{Units: cmInRegistry()})
	rr := Reduce(NewState(cfg), SwitchUnit{Index: 0}, cfg)
	assert.NoError(t, rr.Err)
	assert.Empty(t, rr.Commands)
}

func TestReduce_SwitchUnitOutOfRange(t *testing.T) {
	cfg := mustConfig(t, Overrides{Units: cmInRegistry()})
	s0, _ := reduceAll(NewState(cfg), cfg, SetValue{Value: 175})

	rr := Reduce(s0, SwitchUnit{Index: 5}, cfg)
	require.Error(t, rr.Err)
	assert.ErrorIs(t, rr.Err, units.ErrIndexOutOfRange)
	assert.Equal(t, s0.Value, rr.State.Value)
	assert.Equal(t, 0, rr.State.UnitIndex)
	require.Len(t, rr.Commands, 1)
	assert.Equal(t, CmdReportInvalidUnit{Index: 5, Count: 3}, rr.Commands[0])
}

func TestReduce_SwitchUnitAdoptsUnitRange(t *testing.T) {
	cfg := mustConfig(t, Overrides{UnitsPreset: ptr("length")})
	s, cmds := reduceAll(NewState(cfg), cfg, SetValue{Value: 175}, SwitchUnit{Index: 1})

	assert.Equal(t, 59.0, s.Range.Min)
	assert.Equal(t, 87.0, s.Range.Max)
	assert.InDelta(t, 175/2.54, s.Value, 1e-9)
	assert.Equal(t, 59.0, s.Ticks[0].Value)

	var rebuilt bool
	for _, c := range cmds {
		if _, ok := c.(CmdRebuildTicks); ok {
			rebuilt = true
		}
	}
	assert.True(t, rebuilt)

	s, _ = reduceAll(s, cfg, SwitchUnit{Index: 0})
	assert.InDelta(t, 175, s.Value, 1e-9)
	assert.Equal(t, 150.0, s.Range.Min)
}

func TestReduce_Resize(t *testing.T) {
	cfg := mustConfig(t, Overrides{})
	s, _ := reduceAll(NewState(cfg), cfg, SetValue{Value: 185})

	rr := Reduce(s, Resize{Length: 800}, cfg)
	require.NoError(t, rr.Err)
	assert.Equal(t, 185.0, rr.State.Value)
	assert.InDelta(t, 400.0, rr.State.Cursor, 1e-9)
	assert.InDelta(t, 800.0, rr.State.Ticks[0].Position, 1e-9)
	assert.Empty(t, notifiedValues(rr.Commands))

	rr = Reduce(s, Resize{Length: 0}, cfg)
	assert.ErrorIs(t, rr.Err, ErrInvalidConfig)
	assert.Equal(t, 400.0, rr.State.Geometry.Length)
}

func TestReduce_MagnificationDisabled(t *testing.T) {
	cfg := mustConfig(t, Overrides{MagnificationEnabled: ptr(false)})
	s, _ := reduceAll(NewState(cfg), cfg, DragStart{PointerY: 0}, DragMove{PointerY: 200})
	for v, sc := range s.TickScales {
		assert.Equal(t, 1.0, sc, "tick %v", v)
	}
}

func TestReduce_EmittedValuesStayOnGrid(t *testing.T) {
	cfg := mustConfig(t, Overrides{MinValue: ptr(40.0), MaxValue: ptr(150.0), Step: ptr(0.5)})
	s, _ := reduceAll(NewState(cfg), cfg, DragStart{PointerY: 0})
	for p := -20.0; p <= 420; p += 3.3 {
		s, _ = reduceAll(s, cfg, DragMove{PointerY: p})
		require.GreaterOrEqual(t, s.Value, 40.0)
		require.LessOrEqual(t, s.Value, 150.0)
		steps := (s.Value - 40) / 0.5
		require.InDelta(t, float64(int(steps+0.5)), steps, 1e-9, "value %v", s.Value)
	}
}
