package picker

// ==============================
// Events
// ==============================

// Event is an input to the reducer. Every transition of the picker is
// triggered by exactly one Event.
type Event interface {
	eventMarker()
}

// DragStart begins a drag. PointerY is the absolute pointer coordinate.
//
// OriginY is the top of the scale in the same coordinate space. When nil the
// Controller asks its Measurer; Reduce itself treats nil as 0.
type DragStart struct {
	PointerY float64  `json:"pointer_y"`
	OriginY  *float64 `json:"origin_y,omitempty"`
}

func (DragStart) eventMarker() {}

// DragMove reports the pointer during a drag. Ignored while idle.
type DragMove struct {
	PointerY float64 `json:"pointer_y"`
}

func (DragMove) eventMarker() {}

// DragEnd commits the drag. A nil PointerY reuses the last known pointer.
type DragEnd struct {
	PointerY *float64 `json:"pointer_y,omitempty"`
}

func (DragEnd) eventMarker() {}

// Increment moves the value one step up.
type Increment struct{}

func (Increment) eventMarker() {}

// Decrement moves the value one step down.
type Decrement struct{}

func (Decrement) eventMarker() {}

// SetValue assigns a value directly. It is clamped but not snapped.
type SetValue struct {
	Value float64 `json:"value"`
}

func (SetValue) eventMarker() {}

// SwitchUnit selects the unit at Index and converts the current value into it.
type SwitchUnit struct {
	Index int `json:"index"`
}

func (SwitchUnit) eventMarker() {}

// Resize replaces the pixel length of the scale.
type Resize struct {
	Length float64 `json:"length"`
}

func (Resize) eventMarker() {}
