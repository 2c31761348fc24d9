package picker

import (
	"fmt"
	"log/slog"

	"rulerpicker/scale"
	"rulerpicker/units"
)

// Animator is the animation runtime collaborator. Calls are fire-and-forget:
// a new target supersedes any transition still in flight.
type Animator interface {
	AnimateCursor(target float64, tr Transition)
	AnimateTicks(targets map[float64]float64, tr Transition)
	RebuildTicks(ticks []scale.Tick)
}

// Measurer reports the origin of the scale in pointer coordinates.
type Measurer interface {
	MeasureOrigin() float64
}

// MeasurerFunc adapts a function to Measurer.
type MeasurerFunc func() float64

func (f MeasurerFunc) MeasureOrigin() float64 { return f() }

// Hooks are the declarative facet of the picker. All fields are optional.
type Hooks struct {
	OnValueChange func(value float64)
	OnUnitChange  func(unit units.Descriptor, index int)

	Animator Animator
	Measurer Measurer
}

// Controller owns the interaction state and is the imperative facet of the
// picker. Both facets run through Reduce.
//
// A Controller is not safe for concurrent use. All calls must come from the
// goroutine that dispatches pointer events.
type Controller struct {
	cfg    Config
	hooks  Hooks
	logger *slog.Logger
	state  State
}

// NewController completes and validates cfg and returns an idle controller.
func NewController(cfg Config, hooks Hooks, logger *slog.Logger) (*Controller, error) {
	cfg, err := cfg.Complete()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:    cfg,
		hooks:  hooks,
		logger: logger,
		state:  NewState(&cfg),
	}, nil
}

// Dispatch reduces e, commits the next state and runs the resulting commands.
// A DragStart without an origin is measured first.
func (c *Controller) Dispatch(e Event) error {
	if ds, ok := e.(DragStart); ok && ds.OriginY == nil && c.hooks.Measurer != nil {
		origin := c.hooks.Measurer.MeasureOrigin()
		ds.OriginY = &origin
		e = ds
	}

	rr := Reduce(c.state, e, &c.cfg)
	c.state = rr.State
	for _, cmd := range rr.Commands {
		c.runEffect(cmd)
	}
	return rr.Err
}

// runEffect executes one reducer-emitted command against the hooks.
func (c *Controller) runEffect(cmd Command) {
	switch cm := cmd.(type) {
	case CmdAnimateCursor:
		if c.hooks.Animator != nil {
			c.hooks.Animator.AnimateCursor(cm.Target, cm.Transition)
		}
	case CmdAnimateTicks:
		if c.hooks.Animator != nil {
			c.hooks.Animator.AnimateTicks(cm.Targets, cm.Transition)
		}
	case CmdRebuildTicks:
		if c.hooks.Animator != nil {
			c.hooks.Animator.RebuildTicks(cm.Ticks)
		}
	case CmdNotifyValue:
		if c.hooks.OnValueChange != nil {
			c.hooks.OnValueChange(cm.Value)
		}
	case CmdNotifyUnit:
		if c.hooks.OnUnitChange != nil {
			c.hooks.OnUnitChange(cm.Unit, cm.Index)
		}
	case CmdReportInvalidUnit:
		c.logger.Warn("unit index out of range; ignoring switch", "index", cm.Index, "units", cm.Count)
	default:
		c.logger.Warn("unknown command type", "command", cmd.String())
	}
}

// DragStart begins a drag at pointer coordinate y. The origin comes from the
// Measurer, or 0 when there is none.
func (c *Controller) DragStart(y float64) {
	_ = c.Dispatch(DragStart{PointerY: y})
}

// DragStartAt begins a drag with an explicitly measured origin.
func (c *Controller) DragStartAt(y, originY float64) {
	_ = c.Dispatch(DragStart{PointerY: y, OriginY: &originY})
}

// DragMove reports the pointer at y.
func (c *Controller) DragMove(y float64) {
	_ = c.Dispatch(DragMove{PointerY: y})
}

// DragEnd releases the drag at y.
func (c *Controller) DragEnd(y float64) {
	_ = c.Dispatch(DragEnd{PointerY: &y})
}

// Increment moves the value one step up, clamped at the maximum.
func (c *Controller) Increment() {
	_ = c.Dispatch(Increment{})
}

// Decrement moves the value one step down, clamped at the minimum.
func (c *Controller) Decrement() {
	_ = c.Dispatch(Decrement{})
}

// SetValue clamps v into the active range and commits it without snapping.
func (c *Controller) SetValue(v float64) {
	_ = c.Dispatch(SetValue{Value: v})
}

// Value returns the committed value.
func (c *Controller) Value() float64 {
	return c.state.Value
}

// SwitchUnit selects unit index. An out-of-range index leaves the state
// unchanged and returns an error wrapping units.ErrIndexOutOfRange.
func (c *Controller) SwitchUnit(index int) error {
	if err := c.Dispatch(SwitchUnit{Index: index}); err != nil {
		return fmt.Errorf("switch unit: %w", err)
	}
	return nil
}

// CurrentUnit returns the selected unit.
func (c *Controller) CurrentUnit() units.Descriptor {
	u, _ := c.cfg.Units.Registry.At(c.state.UnitIndex)
	return u
}

// Resize changes the pixel length of the scale.
func (c *Controller) Resize(length float64) error {
	return c.Dispatch(Resize{Length: length})
}

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool {
	return c.state.Phase == Dragging
}

// Config returns the resolved configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// State returns the current state. Callers must treat its map and slice as read-only.
func (c *Controller) State() State {
	return c.state
}

// Snapshot returns a copy of the state safe to hand to other goroutines.
func (c *Controller) Snapshot() Snapshot {
	snap := c.state.Snapshot(c.cfg.Units.Registry)
	snap.ShowUnitSwitcher = c.cfg.Units.ShowSwitcher
	return snap
}
