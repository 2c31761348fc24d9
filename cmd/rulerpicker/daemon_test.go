package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"rulerpicker/animate"
	"rulerpicker/picker"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type daemonHarness struct {
	requests chan Request
	out      chan StateBroadcast
	ctrl     *picker.Controller
	cancel   context.CancelFunc
	done     chan struct{}
}

func startDaemon(t *testing.T, cfg picker.Config) *daemonHarness {
	t.Helper()

	h := &daemonHarness{
		requests: make(chan Request, 8),
		out:      make(chan StateBroadcast, 1024),
		done:     make(chan struct{}),
	}
	anim := animate.New(100)
	ctrl, err := newPicker(cfg, anim, h.out, quietLogger())
	if err != nil {
		t.Fatalf("newPicker: %v", err)
	}
	h.ctrl = ctrl

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.done)
		runDaemon(ctx, h.requests, ctrl, anim, h.out, 100, quietLogger())
	}()
	t.Cleanup(h.stop)
	return h
}

func (h *daemonHarness) stop() {
	h.cancel()
	<-h.done
}

func (h *daemonHarness) submit(t *testing.T, ev picker.Event) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := submit(ctx, h.requests, ev)
	if err != nil {
		t.Fatalf("submit %T: %v", ev, err)
	}
	return res
}

// waitBroadcast returns the first broadcast accepted by match.
func (h *daemonHarness) waitBroadcast(t *testing.T, match func(StateBroadcast) bool) StateBroadcast {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case b := <-h.out:
			if match(b) {
				return b
			}
		case <-deadline:
			t.Fatalf("timeout waiting for broadcast")
			return nil
		}
	}
}

func TestDaemon_IncrementPublishesValueAndFrames(t *testing.T) {
	h := startDaemon(t, picker.DefaultConfig())

	res := h.submit(t, picker.Increment{})
	if res.Err != nil {
		t.Fatalf("increment: %v", res.Err)
	}
	if res.Snapshot.Value != picker.DefaultMinValue+picker.DefaultStep {
		t.Fatalf("value=%v, want %v", res.Snapshot.Value, picker.DefaultMinValue+picker.DefaultStep)
	}

	b := h.waitBroadcast(t, func(b StateBroadcast) bool {
		_, ok := b.(BroadcastValueChanged)
		return ok
	})
	if v := b.(BroadcastValueChanged).Value; v != 151 {
		t.Fatalf("broadcast value=%v, want 151", v)
	}

	// The settle animation produces at least one frame.
	h.waitBroadcast(t, func(b StateBroadcast) bool {
		_, ok := b.(BroadcastFrame)
		return ok
	})
}

func TestDaemon_SnapshotRequest(t *testing.T) {
	h := startDaemon(t, picker.DefaultConfig())

	res := h.submit(t, nil)
	if res.Err != nil {
		t.Fatalf("snapshot: %v", res.Err)
	}
	if res.Snapshot.Value != picker.DefaultMinValue {
		t.Fatalf("value=%v, want %v", res.Snapshot.Value, picker.DefaultMinValue)
	}
	if res.Snapshot.Phase != picker.Idle.String() {
		t.Fatalf("phase=%v, want idle", res.Snapshot.Phase)
	}
	if len(res.Snapshot.Ticks) == 0 {
		t.Fatalf("snapshot has no ticks")
	}
}

func TestDaemon_InvalidUnitReturnsError(t *testing.T) {
	h := startDaemon(t, picker.DefaultConfig())

	res := h.submit(t, picker.SwitchUnit{Index: 5})
	if res.Err == nil {
		t.Fatalf("expected error for out-of-range unit")
	}
	if res.Snapshot.UnitIndex != 0 {
		t.Fatalf("unit index=%d, want 0", res.Snapshot.UnitIndex)
	}
}

func TestDaemon_ResizePublishesTicks(t *testing.T) {
	h := startDaemon(t, picker.DefaultConfig())

	res := h.submit(t, picker.Resize{Length: 200})
	if res.Err != nil {
		t.Fatalf("resize: %v", res.Err)
	}
	if res.Snapshot.Geometry.Length != 200 {
		t.Fatalf("length=%v, want 200", res.Snapshot.Geometry.Length)
	}

	b := h.waitBroadcast(t, func(b StateBroadcast) bool {
		_, ok := b.(BroadcastTicks)
		return ok
	})
	ticks := b.(BroadcastTicks).Ticks
	if last := ticks[len(ticks)-1]; last.Position != 0 {
		t.Fatalf("top tick position=%v, want 0", last.Position)
	}

	res = h.submit(t, picker.Resize{Length: 0})
	if !errors.Is(res.Err, picker.ErrInvalidConfig) {
		t.Fatalf("err=%v, want ErrInvalidConfig", res.Err)
	}
}

func TestDaemon_DragThroughRequests(t *testing.T) {
	h := startDaemon(t, picker.DefaultConfig())

	origin := 0.0
	h.submit(t, picker.DragStart{PointerY: 400, OriginY: &origin})
	res := h.submit(t, picker.DragMove{PointerY: 200})
	if res.Snapshot.Phase != picker.Dragging.String() {
		t.Fatalf("phase=%v, want dragging", res.Snapshot.Phase)
	}
	if res.Snapshot.Value != 185 {
		t.Fatalf("value=%v, want 185", res.Snapshot.Value)
	}

	res = h.submit(t, picker.DragEnd{})
	if res.Snapshot.Phase != picker.Idle.String() {
		t.Fatalf("phase=%v, want idle", res.Snapshot.Phase)
	}
	if res.Snapshot.Value != 185 {
		t.Fatalf("value=%v, want 185", res.Snapshot.Value)
	}
}

func TestSubmit_TimesOutWithoutDaemon(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := submit(ctx, make(chan Request), picker.Increment{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v, want deadline exceeded", err)
	}
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	out := make(chan StateBroadcast, 1)
	p := publisher{out: out, logger: quietLogger()}

	p.publish(BroadcastValueChanged{Value: 1})
	p.publish(BroadcastValueChanged{Value: 2})

	if got := (<-out).(BroadcastValueChanged).Value; got != 1 {
		t.Fatalf("value=%v, want first 1", got)
	}
	select {
	case b := <-out:
		t.Fatalf("unexpected broadcast %#v", b)
	default:
	}

	// A nil channel never blocks.
	publisher{logger: quietLogger()}.publish(BroadcastValueChanged{Value: 3})
}
