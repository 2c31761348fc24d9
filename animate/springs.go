// Package animate is a frame-stepped animation runtime for the picker. It
// implements picker.Animator: every request retargets a channel (the cursor
// or one tick scale) and Step advances all channels by one frame.
//
// Eased transitions are driven by damped springs, so retargeting mid-flight
// keeps the current position and velocity and no explicit cancel exists.
package animate

import (
	"math"
	"sort"
	"time"

	"github.com/charmbracelet/harmonica"

	"rulerpicker/picker"
	"rulerpicker/scale"
)

// settleThreshold is the distance and speed under which a channel snaps to
// its target and stops.
const settleThreshold = 1e-3

// settleOmega is the angular-frequency-times-duration at which a critically
// damped spring has covered 99% of the distance.
const settleOmega = 6.6

// Damping ratios per easing curve.
const (
	dampingEaseOut = 1.0
	dampingSpring  = 0.6
)

type channel struct {
	pos, vel, target float64

	spring harmonica.Spring
	linear bool
	speed  float64 // per frame, linear only
	moving bool
}

func (c *channel) jump(v float64) {
	c.pos, c.vel, c.target = v, 0, v
	c.moving = false
}

func (c *channel) retarget(target float64, tr picker.Transition, fps int) {
	frames := framesFor(tr.Duration, fps)
	if frames <= 1 {
		c.jump(target)
		return
	}
	c.target = target
	c.moving = true

	if tr.Easing == picker.EaseLinear {
		c.linear = true
		c.vel = 0
		c.speed = math.Abs(target-c.pos) / float64(frames)
		return
	}

	damping := dampingEaseOut
	if tr.Easing == picker.EaseSpring {
		damping = dampingSpring
	}
	c.linear = false
	c.spring = harmonica.NewSpring(harmonica.FPS(fps), settleOmega/tr.Duration.Seconds(), damping)
}

func (c *channel) step() {
	if !c.moving {
		return
	}
	if c.linear {
		d := c.target - c.pos
		if math.Abs(d) <= c.speed {
			c.jump(c.target)
			return
		}
		c.pos += math.Copysign(c.speed, d)
		return
	}
	c.pos, c.vel = c.spring.Update(c.pos, c.vel, c.target)
	if math.Abs(c.target-c.pos) < settleThreshold && math.Abs(c.vel) < settleThreshold {
		c.jump(c.target)
	}
}

func framesFor(d time.Duration, fps int) int {
	if d <= 0 || fps <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds() * float64(fps)))
}

var _ picker.Animator = (*Springs)(nil)

// Frame is the presentation state after a Step.
type Frame struct {
	Cursor float64            `json:"cursor"`
	Ticks  []picker.TickScale `json:"ticks"`
}

// Springs animates the cursor and every tick scale at a fixed frame rate.
// It is not safe for concurrent use.
type Springs struct {
	fps    int
	cursor channel
	ticks  map[float64]*channel
	order  []float64
}

// New returns an animator stepping at fps frames per second.
func New(fps int) *Springs {
	if fps <= 0 {
		fps = 60
	}
	return &Springs{fps: fps, ticks: make(map[float64]*channel)}
}

// Reset jumps every channel to the values held in s.
func (a *Springs) Reset(s picker.State) {
	a.cursor.jump(s.Cursor)
	a.RebuildTicks(s.Ticks)
	for v, sc := range s.TickScales {
		if ch, ok := a.ticks[v]; ok {
			ch.jump(sc)
		}
	}
}

// AnimateCursor implements picker.Animator.
func (a *Springs) AnimateCursor(target float64, tr picker.Transition) {
	a.cursor.retarget(target, tr, a.fps)
}

// AnimateTicks implements picker.Animator. Unknown tick values start at rest.
func (a *Springs) AnimateTicks(targets map[float64]float64, tr picker.Transition) {
	for v, target := range targets {
		ch, ok := a.ticks[v]
		if !ok {
			ch = a.add(v)
		}
		ch.retarget(target, tr, a.fps)
	}
}

// RebuildTicks implements picker.Animator. Channels of tick values that
// survive keep their state; new ticks start at rest.
func (a *Springs) RebuildTicks(ticks []scale.Tick) {
	next := make(map[float64]*channel, len(ticks))
	for _, t := range ticks {
		if ch, ok := a.ticks[t.Value]; ok {
			next[t.Value] = ch
			continue
		}
		ch := &channel{}
		ch.jump(1)
		next[t.Value] = ch
	}
	a.ticks = next
	a.reorder()
}

func (a *Springs) add(v float64) *channel {
	ch := &channel{}
	ch.jump(1)
	a.ticks[v] = ch
	a.reorder()
	return ch
}

func (a *Springs) reorder() {
	a.order = a.order[:0]
	for v := range a.ticks {
		a.order = append(a.order, v)
	}
	sort.Float64s(a.order)
}

// Step advances every channel by one frame. It reports whether anything was
// moving before the step.
func (a *Springs) Step() (Frame, bool) {
	moving := a.Moving()
	if moving {
		a.cursor.step()
		for _, ch := range a.ticks {
			ch.step()
		}
	}
	return a.Frame(), moving
}

// Moving reports whether any channel has not reached its target.
func (a *Springs) Moving() bool {
	if a.cursor.moving {
		return true
	}
	for _, ch := range a.ticks {
		if ch.moving {
			return true
		}
	}
	return false
}

// Frame returns the current presentation values without stepping.
func (a *Springs) Frame() Frame {
	f := Frame{
		Cursor: a.cursor.pos,
		Ticks:  make([]picker.TickScale, 0, len(a.order)),
	}
	for _, v := range a.order {
		f.Ticks = append(f.Ticks, picker.TickScale{Value: v, Scale: a.ticks[v].pos})
	}
	return f
}

// FPS returns the frame rate the animator was created with.
func (a *Springs) FPS() int {
	return a.fps
}
