package main

import (
	"context"
	"log/slog"
	"time"

	"rulerpicker/animate"
	"rulerpicker/picker"
	"rulerpicker/scale"
	"rulerpicker/units"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// One goroutine owns the picker.Controller and the animator:
//   - Requests from IPC, websocket clients and touch input arrive on one channel
//     and are dispatched to the controller one at a time.
//   - The controller's hooks run synchronously on this goroutine and publish
//     StateBroadcasts without blocking.
//   - A ticker at update_hz steps the animator and publishes frames while
//     anything is moving.
//
// ============================================================================

// publisher forwards broadcasts without ever blocking the daemon loop.
type publisher struct {
	out    chan<- StateBroadcast
	logger *slog.Logger
}

func (p publisher) publish(b StateBroadcast) {
	if p.out == nil {
		return
	}
	select {
	case p.out <- b:
	default:
		p.logger.Debug("broadcast queue full, dropping", "type", broadcastName(b))
	}
}

// tickAnimator forwards to the springs and also announces tick rebuilds.
type tickAnimator struct {
	*animate.Springs
	pub publisher
}

func (a tickAnimator) RebuildTicks(ticks []scale.Tick) {
	a.Springs.RebuildTicks(ticks)
	cp := make([]scale.Tick, len(ticks))
	copy(cp, ticks)
	a.pub.publish(BroadcastTicks{Ticks: cp, At: time.Now().UTC()})
}

// newPicker builds a controller whose callbacks publish to out and whose
// animation requests drive anim.
func newPicker(cfg picker.Config, anim *animate.Springs, out chan<- StateBroadcast, logger *slog.Logger) (*picker.Controller, error) {
	pub := publisher{out: out, logger: logger}
	ctrl, err := picker.NewController(cfg, picker.Hooks{
		OnValueChange: func(v float64) {
			pub.publish(BroadcastValueChanged{Value: v, At: time.Now().UTC()})
		},
		OnUnitChange: func(u units.Descriptor, index int) {
			pub.publish(BroadcastUnitChanged{Unit: u, Index: index, At: time.Now().UTC()})
		},
		Animator: tickAnimator{Springs: anim, pub: pub},
	}, logger)
	if err != nil {
		return nil, err
	}
	anim.Reset(ctrl.State())
	return ctrl, nil
}

// runDaemon is the main daemon loop.
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the requests channel is closed
func runDaemon(
	ctx context.Context,
	requests <-chan Request,
	ctrl *picker.Controller,
	anim *animate.Springs,
	out chan<- StateBroadcast,
	updateHz int,
	logger *slog.Logger,
) {
	if ctrl == nil || anim == nil {
		logger.Error("daemon started without a picker")
		return
	}
	if updateHz <= 0 {
		updateHz = defaultUpdateHz
	}

	pub := publisher{out: out, logger: logger}

	ticker := time.NewTicker(time.Second / time.Duration(updateHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case req, ok := <-requests:
			if !ok {
				logger.Info("daemon stopping (requests channel closed)")
				return
			}
			handleRequest(ctrl, req, logger)

		case now := <-ticker.C:
			if frame, moving := anim.Step(); moving {
				pub.publish(BroadcastFrame{Frame: frame, At: now.UTC()})
			}
		}
	}
}

func handleRequest(ctrl *picker.Controller, req Request, logger *slog.Logger) {
	var err error
	if req.Event != nil {
		err = ctrl.Dispatch(req.Event)
		if err != nil {
			logger.Debug("event rejected", "event", eventName(req.Event), "error", err)
		}
	}
	if req.Reply == nil {
		return
	}
	select {
	case req.Reply <- Result{Snapshot: ctrl.Snapshot(), Err: err}:
	default:
		logger.Warn("request reply channel not ready; dropping result")
	}
}

// submit sends req to the daemon and waits for its Result.
func submit(ctx context.Context, requests chan<- Request, ev picker.Event) (Result, error) {
	reply := make(chan Result, 1)
	select {
	case requests <- Request{Event: ev, Reply: reply}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func eventName(e picker.Event) string {
	b, err := MarshalEvent(e)
	if err != nil {
		return "unknown"
	}
	return string(b)
}

func broadcastName(b StateBroadcast) string {
	switch b.(type) {
	case BroadcastValueChanged:
		return "value_changed"
	case BroadcastUnitChanged:
		return "unit_changed"
	case BroadcastTicks:
		return "ticks"
	case BroadcastFrame:
		return "frame"
	default:
		return "unknown"
	}
}
