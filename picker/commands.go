package picker

import (
	"fmt"

	"rulerpicker/scale"
	"rulerpicker/units"
)

// ==============================
// Commands (side effects)
// ==============================

// Command is a side effect requested by Reduce and executed by the
// Controller (or whatever drives the reducer).
type Command interface {
	commandMarker()
	String() string
}

// CmdAnimateCursor asks the animation runtime to move the cursor to Target
// (a pixel position).
type CmdAnimateCursor struct {
	Target     float64
	Transition Transition
}

func (CmdAnimateCursor) commandMarker() {}
func (c CmdAnimateCursor) String() string {
	return fmt.Sprintf("CmdAnimateCursor(target=%.3f, %s %s)", c.Target, c.Transition.Duration, c.Transition.Easing)
}

// CmdAnimateTicks asks the animation runtime to move each tick scale to its
// target. Targets is keyed by tick value and owned by the receiver.
type CmdAnimateTicks struct {
	Targets    map[float64]float64
	Transition Transition
}

func (CmdAnimateTicks) commandMarker() {}
func (c CmdAnimateTicks) String() string {
	return fmt.Sprintf("CmdAnimateTicks(n=%d, %s %s)", len(c.Targets), c.Transition.Duration, c.Transition.Easing)
}

// CmdNotifyValue reports the committed value to the value-change callback.
type CmdNotifyValue struct {
	Value float64
}

func (CmdNotifyValue) commandMarker() {}
func (c CmdNotifyValue) String() string {
	return fmt.Sprintf("CmdNotifyValue(value=%g)", c.Value)
}

// CmdNotifyUnit reports a unit switch to the unit-change callback.
type CmdNotifyUnit struct {
	Unit  units.Descriptor
	Index int
}

func (CmdNotifyUnit) commandMarker() {}
func (c CmdNotifyUnit) String() string {
	return fmt.Sprintf("CmdNotifyUnit(unit=%s, index=%d)", c.Unit, c.Index)
}

// CmdRebuildTicks tells the presentation layer the tick set was replaced.
type CmdRebuildTicks struct {
	Ticks []scale.Tick
}

func (CmdRebuildTicks) commandMarker() {}
func (c CmdRebuildTicks) String() string {
	return fmt.Sprintf("CmdRebuildTicks(n=%d)", len(c.Ticks))
}

// CmdReportInvalidUnit reports a rejected unit switch on the warning channel.
type CmdReportInvalidUnit struct {
	Index int
	Count int
}

func (CmdReportInvalidUnit) commandMarker() {}
func (c CmdReportInvalidUnit) String() string {
	return fmt.Sprintf("CmdReportInvalidUnit(index=%d, units=%d)", c.Index, c.Count)
}
