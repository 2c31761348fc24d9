package main

import (
	"encoding/json"
	"fmt"
	"time"

	"rulerpicker/animate"
	"rulerpicker/picker"
	"rulerpicker/scale"
	"rulerpicker/units"
)

// ============================================================================
// Requests into the daemon loop
// ============================================================================

// Request is consumed by the daemon loop, the single owner of the picker.
// A nil Event asks for a snapshot only.
type Request struct {
	Event picker.Event

	// Reply, if set, receives the outcome. It must be buffered.
	Reply chan<- Result
}

// Result is the daemon's answer to a Request.
type Result struct {
	Snapshot picker.Snapshot
	Err      error
}

// ============================================================================
// Broadcasts out of the daemon loop
// ============================================================================

// StateBroadcast is a state change published to remote presentation layers.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastValueChanged mirrors the value-change callback.
type BroadcastValueChanged struct {
	Value float64
	At    time.Time
}

func (BroadcastValueChanged) broadcastMarker() {}

// BroadcastUnitChanged mirrors the unit-change callback.
type BroadcastUnitChanged struct {
	Unit  units.Descriptor
	Index int
	At    time.Time
}

func (BroadcastUnitChanged) broadcastMarker() {}

// BroadcastTicks is sent when the tick set is replaced.
type BroadcastTicks struct {
	Ticks []scale.Tick
	At    time.Time
}

func (BroadcastTicks) broadcastMarker() {}

// BroadcastFrame carries one animation frame.
type BroadcastFrame struct {
	Frame animate.Frame
	At    time.Time
}

func (BroadcastFrame) broadcastMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// EventEnvelope wraps events for JSON serialization/deserialization.
// The same envelope is used on the IPC socket and on inbound websocket frames.
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// envelopeGetState is a request for a snapshot only; it decodes to a nil Event.
const envelopeGetState = "get_state"

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
// "get_state" yields a nil Event and no error.
func UnmarshalEvent(data []byte) (picker.Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case envelopeGetState:
		return nil, nil

	case "increment":
		return picker.Increment{}, nil

	case "decrement":
		return picker.Decrement{}, nil

	case "set_value":
		var e picker.SetValue
		if err := unmarshalData(env, &e); err != nil {
			return nil, err
		}
		return e, nil

	case "switch_unit":
		var e picker.SwitchUnit
		if err := unmarshalData(env, &e); err != nil {
			return nil, err
		}
		return e, nil

	case "drag_start":
		var e picker.DragStart
		if err := unmarshalData(env, &e); err != nil {
			return nil, err
		}
		return e, nil

	case "drag_move":
		var e picker.DragMove
		if err := unmarshalData(env, &e); err != nil {
			return nil, err
		}
		return e, nil

	case "drag_end":
		var e picker.DragEnd
		if len(env.Data) == 0 {
			return e, nil
		}
		if err := unmarshalData(env, &e); err != nil {
			return nil, err
		}
		return e, nil

	case "resize":
		var e picker.Resize
		if err := unmarshalData(env, &e); err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

func unmarshalData(env EventEnvelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("event %q: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	return nil
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator.
// A nil Event is encoded as "get_state".
func MarshalEvent(e picker.Event) ([]byte, error) {
	var env EventEnvelope
	var payload any

	switch e := e.(type) {
	case nil:
		env.Type = envelopeGetState
	case picker.Increment:
		env.Type = "increment"
	case picker.Decrement:
		env.Type = "decrement"
	case picker.SetValue:
		env.Type, payload = "set_value", e
	case picker.SwitchUnit:
		env.Type, payload = "switch_unit", e
	case picker.DragStart:
		env.Type, payload = "drag_start", e
	case picker.DragMove:
		env.Type, payload = "drag_move", e
	case picker.DragEnd:
		env.Type = "drag_end"
		if e.PointerY != nil {
			payload = e
		}
	case picker.Resize:
		env.Type, payload = "resize", e
	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
		}
		env.Data = data
	}

	return json.Marshal(env)
}
