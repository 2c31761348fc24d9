package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"rulerpicker/animate"
	"rulerpicker/picker"
)

// NOTE: These tests focus on hub behavior (fanout + slow-client disconnection)
// and the broadcaster, without standing up a real websocket server.
//
// Clients are constructed with a nil websocket.Conn; the hub guards against
// nil when closing.

// newTestHub returns a hub with small buffers for deterministic tests.
func newTestHub(t *testing.T, sendBuf int, broadcastBuf int) *Hub {
	t.Helper()
	return NewHub(slog.Default(), HubConfig{
		SendBuf:      sendBuf,
		BroadcastBuf: broadcastBuf,
	})
}

func newTestClient(hub *Hub, name string, buf int) *Client {
	return &Client{
		hub:        hub,
		send:       make(chan []byte, buf),
		remoteAddr: name,
		logger:     slog.Default(),
	}
}

func registerClient(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.register <- c
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return ok
	}, c.remoteAddr+" not registered in time")
}

func runHub(t *testing.T, hub *Hub) (cancel func()) {
	t.Helper()
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	return func() {
		cancelCtx()
		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.Fatalf("timeout waiting for hub to stop")
		}
	}
}

func TestHub_BroadcastDeliveredToAllClients(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	stop := runHub(t, hub)
	defer stop()

	c1 := newTestClient(hub, "c1", 4)
	c2 := newTestClient(hub, "c2", 4)
	registerClient(t, hub, c1)
	registerClient(t, hub, c2)

	msg := []byte(`{"type":"value_changed","data":{"value":185}}`)

	// BroadcastBytes is non-blocking and may drop; push directly for determinism.
	hub.broadcast <- msg

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.send:
			if string(got) != string(msg) {
				t.Fatalf("%s got %q, want %q", c.remoteAddr, string(got), string(msg))
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for %s to receive broadcast", c.remoteAddr)
		}
	}

	if n := hub.ClientCount(); n != 2 {
		t.Fatalf("ClientCount=%d, want 2", n)
	}
}

func TestHub_SlowClientDisconnectedOnFullSendBuffer(t *testing.T) {
	hub := newTestHub(t, 1, 8)
	stop := runHub(t, hub)
	defer stop()

	slow := newTestClient(hub, "slow", 1)
	fast := newTestClient(hub, "fast", 8)
	registerClient(t, hub, slow)
	registerClient(t, hub, fast)

	// Pre-fill slow client buffer to simulate it being stuck.
	slow.send <- []byte(`"already queued"`)

	msg := []byte(`{"type":"unit_changed","data":{"index":1}}`)
	hub.broadcast <- msg

	select {
	case got := <-fast.send:
		if string(got) != string(msg) {
			t.Fatalf("fast client got %q, want %q", string(got), string(msg))
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for fast client to receive broadcast")
	}

	// Drain the pre-filled message, then expect the channel to be closed.
	select {
	case <-slow.send:
	default:
	}

	waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}, "expected slow send channel to be closed")
}

func TestRunBroadcaster_CoalescesFramesLatestWins(t *testing.T) {
	hub := newTestHub(t, 16, 16)
	stop := runHub(t, hub)
	defer stop()

	c := newTestClient(hub, "c", 16)
	registerClient(t, hub, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := make(chan StateBroadcast, 16)
	go RunBroadcaster(ctx, hub, src, slog.Default())

	for _, cursor := range []float64{10, 20, 30} {
		src <- BroadcastFrame{Frame: animate.Frame{Cursor: cursor}}
	}

	got := readEnvelope(t, c)
	if got.Type != "frame" {
		t.Fatalf("type=%q, want frame", got.Type)
	}
	var frame animate.Frame
	if err := json.Unmarshal(got.Data, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.Cursor != 30 {
		t.Fatalf("cursor=%v, want latest frame 30", frame.Cursor)
	}

	select {
	case extra := <-c.send:
		t.Fatalf("unexpected extra message %s", extra)
	case <-time.After(3 * wsFrameCoalesceWindow):
	}
}

func TestRunBroadcaster_DiscreteEventFlushesPendingFrameFirst(t *testing.T) {
	hub := newTestHub(t, 16, 16)
	stop := runHub(t, hub)
	defer stop()

	c := newTestClient(hub, "c", 16)
	registerClient(t, hub, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := make(chan StateBroadcast, 16)
	go RunBroadcaster(ctx, hub, src, slog.Default())

	src <- BroadcastFrame{Frame: animate.Frame{Cursor: 5}}
	src <- BroadcastValueChanged{Value: 186}

	if got := readEnvelope(t, c); got.Type != "frame" {
		t.Fatalf("first type=%q, want frame", got.Type)
	}
	got := readEnvelope(t, c)
	if got.Type != "value_changed" {
		t.Fatalf("second type=%q, want value_changed", got.Type)
	}
	var data wsValueChangedData
	if err := json.Unmarshal(got.Data, &data); err != nil {
		t.Fatalf("decode value_changed: %v", err)
	}
	if data.Value != 186 {
		t.Fatalf("value=%v, want 186", data.Value)
	}
}

func TestConvertBroadcast(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	cases := []struct {
		in   StateBroadcast
		want string
	}{
		{BroadcastValueChanged{Value: 1, At: at}, "value_changed"},
		{BroadcastUnitChanged{Index: 1, At: at}, "unit_changed"},
		{BroadcastTicks{At: at}, "ticks"},
		{BroadcastFrame{At: at}, "frame"},
	}
	for _, tc := range cases {
		ev, ok := convertBroadcast(tc.in)
		if !ok {
			t.Fatalf("%T not converted", tc.in)
		}
		if ev.Type != tc.want {
			t.Fatalf("%T type=%q, want %q", tc.in, ev.Type, tc.want)
		}
		if !ev.At.Equal(at) {
			t.Fatalf("%T at=%v, want %v", tc.in, ev.At, at)
		}
	}
}

func TestServerInbound_ForwardsEvents(t *testing.T) {
	requests := make(chan Request, 4)
	s := NewServer(slog.Default(), requests, ServerConfig{})
	c := newTestClient(s.Hub(), "c", 1)
	handle := s.inbound(c)

	handle([]byte(`{"type":"increment"}`))
	handle([]byte(`{"type":"get_state"}`))
	handle([]byte(`not json`))
	handle([]byte(`{"type":"set_value","data":{"value":190}}`))

	if len(requests) != 2 {
		t.Fatalf("queued %d requests, want 2", len(requests))
	}
	if req := <-requests; req.Event != (picker.Increment{}) {
		t.Fatalf("first event=%#v, want Increment", req.Event)
	}
	req := <-requests
	if sv, ok := req.Event.(picker.SetValue); !ok || sv.Value != 190 {
		t.Fatalf("second event=%#v, want SetValue 190", req.Event)
	}
	if req.Reply != nil {
		t.Fatalf("inbound websocket events must not wait for a reply")
	}
}

type rawEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readEnvelope(t *testing.T, c *Client) rawEnvelope {
	t.Helper()
	select {
	case msg := <-c.send:
		var env rawEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			t.Fatalf("decode envelope %s: %v", msg, err)
		}
		return env
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for broadcast")
	}
	return rawEnvelope{}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
