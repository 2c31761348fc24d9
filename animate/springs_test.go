package animate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulerpicker/picker"
	"rulerpicker/scale"
)

func settle(t *testing.T, a *Springs, maxFrames int) (Frame, int) {
	t.Helper()
	for i := 0; i < maxFrames; i++ {
		f, moving := a.Step()
		if !moving {
			return f, i
		}
	}
	t.Fatalf("still moving after %d frames", maxFrames)
	return Frame{}, maxFrames
}

func TestSprings_InstantTransitionJumps(t *testing.T) {
	a := New(60)
	a.AnimateCursor(120, picker.Transition{})
	assert.False(t, a.Moving())
	assert.Equal(t, 120.0, a.Frame().Cursor)

	a.AnimateCursor(40, picker.Transition{Duration: 16 * time.Millisecond, Easing: picker.EaseLinear})
	assert.False(t, a.Moving())
	assert.Equal(t, 40.0, a.Frame().Cursor)
}

func TestSprings_LinearReachesTargetOnTime(t *testing.T) {
	a := New(10)
	a.AnimateCursor(100, picker.Transition{Duration: time.Second, Easing: picker.EaseLinear})

	f, _ := a.Step()
	assert.InDelta(t, 10.0, f.Cursor, 1e-9)

	f, frames := settle(t, a, 100)
	assert.Equal(t, 100.0, f.Cursor)
	assert.Equal(t, 9, frames)
}

func TestSprings_EaseOutDoesNotOvershoot(t *testing.T) {
	a := New(60)
	a.AnimateCursor(200, picker.Transition{Duration: 300 * time.Millisecond, Easing: picker.EaseOut})

	for i := 0; i < 300 && a.Moving(); i++ {
		f, _ := a.Step()
		require.LessOrEqual(t, f.Cursor, 200.0+settleThreshold)
	}
	assert.False(t, a.Moving())
	assert.Equal(t, 200.0, a.Frame().Cursor)
}

func TestSprings_SpringOvershoots(t *testing.T) {
	a := New(60)
	a.AnimateCursor(200, picker.Transition{Duration: 300 * time.Millisecond, Easing: picker.EaseSpring})

	peak := 0.0
	for i := 0; i < 600 && a.Moving(); i++ {
		f, _ := a.Step()
		if f.Cursor > peak {
			peak = f.Cursor
		}
	}
	assert.Greater(t, peak, 200.0)
	assert.Equal(t, 200.0, a.Frame().Cursor)
}

func TestSprings_RetargetKeepsPosition(t *testing.T) {
	a := New(60)
	ease := picker.Transition{Duration: 300 * time.Millisecond, Easing: picker.EaseOut}
	a.AnimateCursor(200, ease)
	for i := 0; i < 5; i++ {
		a.Step()
	}
	mid := a.Frame().Cursor
	require.Greater(t, mid, 0.0)
	require.Less(t, mid, 200.0)

	a.AnimateCursor(0, ease)
	assert.Equal(t, mid, a.Frame().Cursor)
	f, _ := settle(t, a, 600)
	assert.Equal(t, 0.0, f.Cursor)
}

func TestSprings_TickChannels(t *testing.T) {
	a := New(60)
	ticks := []scale.Tick{{Value: 150}, {Value: 155}, {Value: 160}}
	a.RebuildTicks(ticks)

	f := a.Frame()
	require.Len(t, f.Ticks, 3)
	for _, ts := range f.Ticks {
		assert.Equal(t, 1.0, ts.Scale)
	}

	ease := picker.Transition{Duration: 250 * time.Millisecond, Easing: picker.EaseOut}
	a.AnimateTicks(map[float64]float64{150: 1.5, 155: 1.2}, ease)
	f, _ = settle(t, a, 600)
	assert.Equal(t, []picker.TickScale{{Value: 150, Scale: 1.5}, {Value: 155, Scale: 1.2}, {Value: 160, Scale: 1}}, f.Ticks)

	// surviving values keep their state
	a.RebuildTicks([]scale.Tick{{Value: 150}, {Value: 165}})
	f = a.Frame()
	assert.Equal(t, []picker.TickScale{{Value: 150, Scale: 1.5}, {Value: 165, Scale: 1}}, f.Ticks)
}

func TestSprings_ResetFromState(t *testing.T) {
	cfg, err := picker.Resolve(picker.Overrides{})
	require.NoError(t, err)
	st := picker.NewState(&cfg)

	a := New(30)
	a.Reset(st)
	f := a.Frame()
	assert.Equal(t, st.Cursor, f.Cursor)
	assert.Len(t, f.Ticks, len(st.Ticks))
	assert.False(t, a.Moving())
}

func TestSprings_DrivenByController(t *testing.T) {
	a := New(60)
	c, err := picker.NewController(picker.DefaultConfig(), picker.Hooks{Animator: a}, nil)
	require.NoError(t, err)
	a.Reset(c.State())

	c.SetValue(185)
	assert.True(t, a.Moving())
	f, _ := settle(t, a, 600)
	assert.InDelta(t, 200.0, f.Cursor, 1e-9)
}
