package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"rulerpicker/animate"
	"rulerpicker/picker"
	"rulerpicker/scale"
)

// ============================================================================
// Terminal picker
// ============================================================================
//
// `rulerpicker tui` runs the picker in-process on a tcell screen:
//   - the ruler is drawn vertically in the left columns, one cell per pixel
//   - mouse button 1 drags, keys step and switch units
//   - a ticker posts interrupts at update_hz so animation frames are drawn
//     on the event loop goroutine, the only goroutine touching the picker
//
// ============================================================================

const (
	tuiLabelWidth = 7 // "-123.4 "
	tuiMinorWidth = 3
	tuiMajorWidth = 6
	tuiStatusRows = 1
)

// tuiAction is what a key press asks the event loop to do.
type tuiAction int

const (
	tuiNone tuiAction = iota
	tuiIncrement
	tuiDecrement
	tuiNextUnit
	tuiSelectUnit
	tuiQuit
)

// keyAction maps a key to an action. For tuiSelectUnit, index is the
// zero-based unit index.
func keyAction(key tcell.Key, r rune) (action tuiAction, index int) {
	switch key {
	case tcell.KeyUp:
		return tuiIncrement, 0
	case tcell.KeyDown:
		return tuiDecrement, 0
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return tuiQuit, 0
	case tcell.KeyRune:
	default:
		return tuiNone, 0
	}

	switch r {
	case '+', 'k':
		return tuiIncrement, 0
	case '-', 'j':
		return tuiDecrement, 0
	case 'u':
		return tuiNextUnit, 0
	case 'q':
		return tuiQuit, 0
	}
	if r >= '1' && r <= '9' {
		return tuiSelectUnit, int(r - '1')
	}
	return tuiNone, 0
}

// mouseEvent maps a mouse report to a drag event. Rows are pointer
// coordinates with the ruler's origin at row 0. It returns nil when the
// report does not change the drag.
func mouseEvent(buttons tcell.ButtonMask, row int, dragging bool) picker.Event {
	y := float64(row)
	pressed := buttons&tcell.Button1 != 0

	switch {
	case pressed && !dragging:
		origin := 0.0
		return picker.DragStart{PointerY: y, OriginY: &origin}
	case pressed && dragging:
		return picker.DragMove{PointerY: y}
	case !pressed && dragging:
		return picker.DragEnd{PointerY: &y}
	}
	return nil
}

// rulerLength is the ruler length in cells for a screen of height rows.
func rulerLength(height int) float64 {
	n := height - tuiStatusRows - 1
	if n < 1 {
		n = 1
	}
	return float64(n)
}

// fitConfig sizes cfg to length cells, scaling the magnification radius
// with the ruler so the lens covers the same share of it.
func fitConfig(cfg picker.Config, length float64) picker.Config {
	if cfg.Geometry.Length > 0 {
		cfg.Magnification.Radius *= length / cfg.Geometry.Length
	}
	cfg.Geometry.Length = length
	return cfg
}

// tickWidth is the drawn width of a tick at the given scale, at least one cell.
func tickWidth(major bool, sc float64) int {
	base := tuiMinorWidth
	if major {
		base = tuiMajorWidth
	}
	w := int(math.Round(float64(base) * sc))
	if w < 1 {
		w = 1
	}
	return w
}

// rulerRow is the screen row of a ruler position.
func rulerRow(position float64) int {
	return int(math.Round(position))
}

// formatValue renders v with the precision of step.
func formatValue(v, step float64) string {
	prec := 0
	if s := strconv.FormatFloat(step, 'f', -1, 64); strings.Contains(s, ".") {
		prec = len(s) - strings.Index(s, ".") - 1
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

type tui struct {
	screen tcell.Screen
	ctrl   *picker.Controller
	anim   *animate.Springs
	logger *slog.Logger

	// cfg is the unfitted picker config; refit derives each screen's config from it.
	cfg   picker.Config
	hooks picker.Hooks
}

// runTUI runs the terminal picker until the user quits or ctx is canceled.
func runTUI(ctx context.Context, cfg Config, logger *slog.Logger) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()
	screen.EnableMouse()

	_, h := screen.Size()
	anim := animate.New(cfg.Animation.UpdateHz)
	hooks := picker.Hooks{
		OnValueChange: func(v float64) { logger.Debug("value changed", "value", v) },
		Animator:      anim,
	}
	ctrl, err := picker.NewController(fitConfig(cfg.Picker, rulerLength(h)), hooks, logger)
	if err != nil {
		return err
	}
	anim.Reset(ctrl.State())

	t := &tui{screen: screen, ctrl: ctrl, anim: anim, logger: logger, cfg: cfg.Picker, hooks: hooks}
	return t.run(ctx, cfg.Animation.UpdateHz)
}

func (t *tui) run(ctx context.Context, updateHz int) error {
	if updateHz <= 0 {
		updateHz = defaultUpdateHz
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(updateHz))
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = t.screen.PostEvent(tcell.NewEventInterrupt(ctx.Err()))
				return
			case <-ticker.C:
				_ = t.screen.PostEvent(tcell.NewEventInterrupt(nil))
			}
		}
	}()

	t.draw(t.anim.Frame())

	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return nil
		}

		switch e := ev.(type) {
		case *tcell.EventInterrupt:
			if e.Data() != nil {
				return nil
			}
			if frame, moving := t.anim.Step(); moving {
				t.draw(frame)
			}

		case *tcell.EventResize:
			_, h := e.Size()
			if err := t.refit(h); err != nil {
				t.logger.Warn("resize rejected", "height", h, "error", err)
			}
			t.screen.Sync()
			t.draw(t.anim.Frame())

		case *tcell.EventMouse:
			_, row := e.Position()
			if pe := mouseEvent(e.Buttons(), row, t.ctrl.Dragging()); pe != nil {
				_ = t.ctrl.Dispatch(pe)
				t.draw(t.anim.Frame())
			}

		case *tcell.EventKey:
			quit, redraw := t.apply(keyAction(e.Key(), e.Rune()))
			if quit {
				return nil
			}
			if redraw {
				t.draw(t.anim.Frame())
			}
		}
	}
}

// apply performs a key action. Unit keys are ignored unless the unit
// switcher is shown.
func (t *tui) apply(action tuiAction, index int) (quit, redraw bool) {
	switch action {
	case tuiQuit:
		return true, false
	case tuiIncrement:
		t.ctrl.Increment()
	case tuiDecrement:
		t.ctrl.Decrement()
	case tuiNextUnit:
		if !t.ctrl.Config().Units.ShowSwitcher {
			return false, false
		}
		n := t.ctrl.Config().Units.Registry.Len()
		_ = t.ctrl.SwitchUnit((t.ctrl.State().UnitIndex + 1) % n)
	case tuiSelectUnit:
		if !t.ctrl.Config().Units.ShowSwitcher {
			return false, false
		}
		// Out-of-range indices are logged and ignored by the controller.
		_ = t.ctrl.SwitchUnit(index)
	default:
		return false, false
	}
	return false, true
}

// refit rebuilds the controller for a new screen height so the magnified
// area keeps its share of the ruler. Value and unit carry over; a drag in
// progress is dropped.
func (t *tui) refit(height int) error {
	prev := t.ctrl.State()
	cfg := fitConfig(t.cfg, rulerLength(height))
	cfg.Units.Default = prev.UnitIndex
	ctrl, err := picker.NewController(cfg, t.hooks, t.logger)
	if err != nil {
		return err
	}
	ctrl.SetValue(prev.Value)
	t.anim.Reset(ctrl.State())
	t.ctrl = ctrl
	return nil
}

// draw renders frame: ticks with their animated widths, the cursor and a
// status line.
func (t *tui) draw(frame animate.Frame) {
	s := t.screen
	s.Clear()

	st := t.ctrl.State()
	positions := make(map[float64]scale.Tick, len(st.Ticks))
	for _, tk := range st.Ticks {
		positions[tk.Value] = tk
	}

	// Several ticks may share a row on short screens; the widest wins.
	widths := make(map[int]int)
	labels := make(map[int]string)
	for _, ts := range frame.Ticks {
		tk, ok := positions[ts.Value]
		if !ok {
			continue
		}
		row := rulerRow(tk.Position)
		if w := tickWidth(tk.Major, ts.Scale); w > widths[row] {
			widths[row] = w
		}
		if tk.Major {
			labels[row] = formatValue(tk.Value, st.Range.Step)
		}
	}

	tickStyle := tcell.StyleDefault
	majorStyle := tcell.StyleDefault.Bold(true)
	for row, w := range widths {
		style := tickStyle
		if label, ok := labels[row]; ok {
			style = majorStyle
			drawText(s, 0, row, fmt.Sprintf("%*s", tuiLabelWidth-1, label), tickStyle)
		}
		for x := 0; x < w; x++ {
			s.SetContent(tuiLabelWidth+x, row, '─', nil, style)
		}
	}

	cursorStyle := tcell.StyleDefault.Reverse(true)
	cursorRow := rulerRow(frame.Cursor)
	s.SetContent(tuiLabelWidth+tuiMajorWidth*2, cursorRow, '◀', nil, cursorStyle)

	_, h := s.Size()
	drawText(s, 0, h-1, statusLine(t.ctrl), tcell.StyleDefault.Reverse(true))

	s.Show()
}

// statusLine shows the value and key help. The unit list and unit keys only
// appear when the unit switcher is enabled.
func statusLine(ctrl *picker.Controller) string {
	st := ctrl.State()
	value := formatValue(st.Value, st.Range.Step)
	unit := ctrl.CurrentUnit()
	if !ctrl.Config().Units.ShowSwitcher {
		return fmt.Sprintf(" %s %s  ↑/↓ step  q quit", value, unit.Symbol)
	}
	return fmt.Sprintf(" %s %s  [%s]  ↑/↓ step  u unit  q quit", value, unit.Symbol, unitList(ctrl))
}

func unitList(ctrl *picker.Controller) string {
	reg := ctrl.Config().Units.Registry
	cur := ctrl.State().UnitIndex
	parts := make([]string, 0, reg.Len())
	for i, u := range reg.All() {
		label := fmt.Sprintf("%d:%s", i+1, u.Symbol)
		if i == cur {
			label = "*" + label
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, " ")
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
