package picker

import (
	"fmt"
	"math"

	"rulerpicker/scale"
	"rulerpicker/units"
)

// This file implements the interaction state machine as a pure reducer:
//
//   - Events: drag gestures, step commands, direct sets, unit switches, resizes
//   - Commands: animation requests and callback notifications
//   - Reduce(): computes the next state and the commands, without calling out
//
// Every transition computes its full next state before returning, so callers
// never observe a partially updated State.

// ReduceResult is the output of Reduce.
type ReduceResult struct {
	State    State
	Commands []Command

	// Err is set when the event was rejected. State is then the input state.
	Err error
}

// Reduce applies e to s.
func Reduce(s State, e Event, cfg *Config) ReduceResult {
	switch ev := e.(type) {
	case DragStart:
		return reduceDragStart(s, ev)
	case DragMove:
		return reduceDragMove(s, ev, cfg)
	case DragEnd:
		return reduceDragEnd(s, ev, cfg)
	case Increment:
		return reduceStep(s, 1, cfg)
	case Decrement:
		return reduceStep(s, -1, cfg)
	case SetValue:
		return reduceSetValue(s, ev, cfg)
	case SwitchUnit:
		return reduceSwitchUnit(s, ev, cfg)
	case Resize:
		return reduceResize(s, ev, cfg)
	default:
		return ReduceResult{State: s, Err: fmt.Errorf("unsupported event %T", e)}
	}
}

func reduceDragStart(s State, ev DragStart) ReduceResult {
	origin := 0.0
	if ev.OriginY != nil {
		origin = *ev.OriginY
	}
	s.Phase = Dragging
	s.Drag = Drag{OriginY: origin, PointerY: ev.PointerY}
	return ReduceResult{State: s}
}

func reduceDragMove(s State, ev DragMove, cfg *Config) ReduceResult {
	if s.Phase != Dragging {
		return ReduceResult{State: s}
	}
	s.Drag.PointerY = ev.PointerY
	s = s.withValue(s.dragValue(), cfg)

	tr := cfg.dragTransition()
	return ReduceResult{
		State: s,
		Commands: []Command{
			CmdAnimateCursor{Target: s.Cursor, Transition: tr},
			CmdAnimateTicks{Targets: copyScales(s.TickScales), Transition: tr},
			CmdNotifyValue{Value: s.Value},
		},
	}
}

func reduceDragEnd(s State, ev DragEnd, cfg *Config) ReduceResult {
	if s.Phase != Dragging {
		return ReduceResult{State: s}
	}
	if ev.PointerY != nil {
		s.Drag.PointerY = *ev.PointerY
	}
	s = s.withValue(s.dragValue(), cfg)
	s.Phase = Idle
	s.TickScales = scale.RestingScales(s.Ticks)

	return ReduceResult{
		State: s,
		Commands: []Command{
			CmdAnimateCursor{Target: s.Cursor, Transition: cfg.settleTransition()},
			CmdAnimateTicks{Targets: copyScales(s.TickScales), Transition: cfg.releaseTransition()},
			CmdNotifyValue{Value: s.Value},
		},
	}
}

func reduceStep(s State, dir int, cfg *Config) ReduceResult {
	s = s.withValue(scale.Offset(s.Value, dir, s.Range), cfg)
	return ReduceResult{State: s, Commands: s.settleCommands(cfg)}
}

func reduceSetValue(s State, ev SetValue, cfg *Config) ReduceResult {
	if math.IsNaN(ev.Value) {
		return ReduceResult{State: s}
	}
	s = s.withValue(s.Range.Clamp(ev.Value), cfg)
	return ReduceResult{State: s, Commands: s.settleCommands(cfg)}
}

func reduceSwitchUnit(s State, ev SwitchUnit, cfg *Config) ReduceResult {
	reg := cfg.Units.Registry
	to, err := reg.At(ev.Index)
	if err != nil {
		return ReduceResult{
			State:    s,
			Commands: []Command{CmdReportInvalidUnit{Index: ev.Index, Count: reg.Len()}},
			Err:      err,
		}
	}
	if ev.Index == s.UnitIndex {
		return ReduceResult{State: s}
	}
	from, err := reg.At(s.UnitIndex)
	if err != nil {
		from = units.Descriptor{}
	}

	converted := units.Convert(from, s.Value, to)
	r := cfg.rangeFor(to)

	var cmds []Command
	if r != s.Range {
		s.Range = r
		s.Ticks = scale.GenerateTicks(r, s.Geometry, invert)
		cmds = append(cmds, CmdRebuildTicks{Ticks: s.Ticks})
	}
	if math.IsNaN(converted) {
		converted = r.Min
	}
	s.UnitIndex = ev.Index
	s = s.withValue(r.Clamp(converted), cfg)

	cmds = append(cmds, s.settleCommands(cfg)...)
	cmds = append(cmds, CmdNotifyUnit{Unit: to, Index: ev.Index})
	return ReduceResult{State: s, Commands: cmds}
}

func reduceResize(s State, ev Resize, cfg *Config) ReduceResult {
	if !(ev.Length > 0) || math.IsInf(ev.Length, 0) {
		return ReduceResult{State: s, Err: fmt.Errorf("%w: length must be > 0, got %g", ErrInvalidConfig, ev.Length)}
	}
	s.Geometry.Length = ev.Length
	s.Ticks = scale.GenerateTicks(s.Range, s.Geometry, invert)
	s.Cursor = scale.ValueToPosition(s.Value, s.Range, s.Geometry.Length, invert)
	if s.Phase == Dragging {
		s.TickScales = scale.TickScales(s.Ticks, s.Cursor, cfg.Magnification)
	} else {
		s.TickScales = scale.RestingScales(s.Ticks)
	}

	instant := Transition{Easing: EaseLinear}
	return ReduceResult{
		State: s,
		Commands: []Command{
			CmdRebuildTicks{Ticks: s.Ticks},
			CmdAnimateCursor{Target: s.Cursor, Transition: instant},
			CmdAnimateTicks{Targets: copyScales(s.TickScales), Transition: instant},
		},
	}
}

// dragValue maps the current drag pointer to a snapped value.
func (s State) dragValue() float64 {
	return scale.PositionToStep(s.Drag.PointerY-s.Drag.OriginY, s.Range, s.Geometry.Length, invert)
}

// withValue commits v and derives the cursor and tick scales from it.
func (s State) withValue(v float64, cfg *Config) State {
	s.Value = v
	s.Cursor = scale.ValueToPosition(v, s.Range, s.Geometry.Length, invert)
	s.TickScales = scale.TickScales(s.Ticks, s.Cursor, cfg.Magnification)
	return s
}

// settleCommands is the eased transition shared by steps, sets and unit switches.
func (s State) settleCommands(cfg *Config) []Command {
	tr := cfg.settleTransition()
	return []Command{
		CmdAnimateCursor{Target: s.Cursor, Transition: tr},
		CmdAnimateTicks{Targets: copyScales(s.TickScales), Transition: tr},
		CmdNotifyValue{Value: s.Value},
	}
}

func copyScales(m map[float64]float64) map[float64]float64 {
	out := make(map[float64]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
