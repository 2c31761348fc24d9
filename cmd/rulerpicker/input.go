package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"rulerpicker/picker"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// readInputEvents reads input events from r and sends them to a channel.
// This runs in a dedicated goroutine and blocks on read operations.
func readInputEvents(r io.Reader, events chan<- inputEvent, readErr chan<- error) {
	evSize := binary.Size(inputEvent{})
	buf := make([]byte, evSize)
	reader := bytes.NewReader(buf) // Reusable reader, reset on each iteration

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			readErr <- err
			return
		}

		reader.Reset(buf)
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			// Skip malformed events
			continue
		}

		events <- ev
	}
}

// ============================================================================
// Touch translation
// ============================================================================
//
// A touchscreen reports a frame of ABS/KEY events terminated by SYN_REPORT.
// The translator accumulates one frame and emits at most one drag event per
// phase when the frame is complete:
//
//   BTN_TOUCH 1 (or a new tracking id)  -> DragStart at the current Y
//   ABS_Y / ABS_MT_POSITION_Y change    -> DragMove while touching
//   BTN_TOUCH 0 (or tracking id -1)     -> DragEnd at the last Y
//
// ============================================================================

type touchTranslator struct {
	axisMin      int32
	axisMax      int32
	screenHeight float64
	originY      float64

	rawY     int32
	touching bool

	// Pending changes within the current SYN frame.
	down     bool
	up       bool
	yChanged bool
}

func newTouchTranslator(cfg InputConfig) *touchTranslator {
	return &touchTranslator{
		axisMin:      int32(cfg.AxisMin),
		axisMax:      int32(cfg.AxisMax),
		screenHeight: cfg.ScreenHeight,
		originY:      cfg.OriginY,
		rawY:         int32(cfg.AxisMin),
	}
}

// pixelY maps the raw axis value to screen pixels.
func (t *touchTranslator) pixelY() float64 {
	span := float64(t.axisMax - t.axisMin)
	if span <= 0 {
		return 0
	}
	return float64(t.rawY-t.axisMin) / span * t.screenHeight
}

// handle consumes one input event and returns the picker events completed by it.
func (t *touchTranslator) handle(ev inputEvent) []picker.Event {
	switch ev.Type {
	case EV_ABS:
		switch ev.Code {
		case ABS_Y, ABS_MT_POSITION_Y:
			if ev.Value != t.rawY {
				t.rawY = ev.Value
				t.yChanged = true
			}
		case ABS_MT_TRACKING_ID:
			if ev.Value < 0 {
				t.up = true
			} else {
				t.down = true
			}
		}
		return nil

	case EV_KEY:
		if ev.Code != BTN_TOUCH {
			return nil
		}
		switch ev.Value {
		case evValuePress:
			t.down = true
		case evValueRelease:
			t.up = true
		}
		return nil

	case EV_SYN:
		if ev.Code != SYN_REPORT {
			return nil
		}
		return t.flush()
	}
	return nil
}

func (t *touchTranslator) flush() []picker.Event {
	var out []picker.Event
	y := t.pixelY()

	switch {
	case t.down && !t.touching:
		t.touching = true
		origin := t.originY
		out = append(out, picker.DragStart{PointerY: y, OriginY: &origin})
	case t.yChanged && t.touching:
		out = append(out, picker.DragMove{PointerY: y})
	}

	if t.up && t.touching {
		t.touching = false
		end := y
		out = append(out, picker.DragEnd{PointerY: &end})
	}

	t.down, t.up, t.yChanged = false, false, false
	return out
}

// runTouchInput reads the configured devices and feeds drag events to the
// daemon loop until ctx is canceled or a device fails.
func runTouchInput(ctx context.Context, cfg InputConfig, requests chan<- Request, logger *slog.Logger) error {
	files := make([]*os.File, 0, len(cfg.Devices))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, dev := range cfg.Devices {
		f, err := os.Open(ExpandPath(dev))
		if err != nil {
			return fmt.Errorf("open input device %s: %w", dev, err)
		}
		files = append(files, f)
	}

	events := make(chan inputEvent, 64)
	readErr := make(chan error, 1)
	go readInputEventsEpoll(ctx, files, events, readErr)

	tr := newTouchTranslator(cfg)
	logger.Info("touch input started", "devices", cfg.Devices, "screen_height", cfg.ScreenHeight)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("input reader stopped: %w", err)

		case ev := <-events:
			for _, pe := range tr.handle(ev) {
				select {
				case requests <- Request{Event: pe}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
