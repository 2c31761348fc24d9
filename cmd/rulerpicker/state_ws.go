package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rulerpicker/scale"
	"rulerpicker/units"
)

// ============================================================================
// State WebSocket: hub + per-client pumps + broadcaster
// ============================================================================
//
// Remote presentation layers connect here. They receive:
//   - "state_init" with the full picker snapshot on connect
//   - "value_changed" / "unit_changed" mirroring the picker callbacks
//   - "ticks" when the tick set is replaced
//   - "frame" with animated cursor and tick scales, coalesced latest-wins
//
// Clients may also send event envelopes (same format as IPC) to drive the
// picker, e.g. drag_start/drag_move/drag_end from a browser.
//
// Slow clients are disconnected when their send buffer fills.
// Messages are JSON text frames with an envelope: {type, ts, data}.
//
// ============================================================================

type wsValueChangedData struct {
	Value float64 `json:"value"`
}

type wsUnitChangedData struct {
	Unit  units.Descriptor `json:"unit"`
	Index int              `json:"index"`
}

type wsTicksData struct {
	Ticks []scale.Tick `json:"ticks"`
}

// wsOutboundEvent is a pre-typed, externally-consumable state event.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time // zero means now
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func marshalEnvelope(ev wsOutboundEvent) ([]byte, error) {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return json.Marshal(envelope{Type: ev.Type, Ts: &ts, Data: ev.Data})
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size. Zero means 32.
	SendBuf int

	// BroadcastBuf is the hub inbound broadcast queue size. Zero means 128.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			// Collect slow clients first, then remove them after we unlock.
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.closeSend()
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// Closing send signals writePump to exit.
		c.closeSend()

		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

// BroadcastBytes enqueues a pre-serialized JSON WS frame for broadcast.
// It never blocks; if the hub queue is full it drops the message.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once

	remoteAddr string
	logger     *slog.Logger

	// onMessage handles inbound text frames. Nil discards them.
	onMessage func([]byte)
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

const (
	writeWait = 5 * time.Second

	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// wsFrameCoalesceWindow is the maximum time window during which bursty animation
// frames are coalesced (latest-wins) before broadcasting to clients.
const wsFrameCoalesceWindow = 33 * time.Millisecond

// closeStatus extracts a human-readable websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

// writePump writes messages from the send queue to the websocket.
// It exits on write error or when send is closed.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed: hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", "write error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", "ping error", err)
				return
			}
		}
	}
}

// readPump reads inbound frames, hands text frames to onMessage and detects
// disconnects. It exits on read error, then unregisters the client.
func (c *Client) readPump(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.logExit("readPump", "read error", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
		if kind == websocket.TextMessage && c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

func (c *Client) logExit(pump, what string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Info("ws "+pump+" exiting ("+what+")", "remote_addr", c.remoteAddr, "error", err)
}

// ============================================================================
// HTTP Handler + server wiring helpers
// ============================================================================

type Server struct {
	logger *slog.Logger

	hub *Hub

	// Daemon loop; used for the initial snapshot and inbound events.
	requests chan<- Request
}

type ServerConfig struct {
	Hub HubConfig
}

// NewServer constructs the WS state server components. Call Register on a mux,
// start hub.Run(ctx), and start the broadcaster loop.
func NewServer(logger *slog.Logger, requests chan<- Request, cfg ServerConfig) *Server {
	return &Server{
		logger:   logger,
		hub:      NewHub(logger, cfg.Hub),
		requests: requests,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register registers the WS handler on the provided mux.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleStateWS)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStateWS upgrades and registers a client, then sends state_init.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)
	client.onMessage = s.inbound(client)

	// Register client first so broadcasts can reach it.
	s.hub.register <- client

	// The pumps outlive the HTTP request context; net/http cancels it when the
	// handler returns.
	go client.writePump(context.Background())
	go client.readPump(context.Background())

	if s.requests == nil {
		return
	}

	waitCtx, cancel := context.WithTimeout(r.Context(), requestTimeoutMS*time.Millisecond)
	defer cancel()

	res, err := submit(waitCtx, s.requests, nil)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("ws snapshot request failed", "error", err)
		}
		return
	}

	initMsg, err := marshalEnvelope(wsOutboundEvent{Type: "state_init", Data: res.Snapshot})
	if err != nil {
		s.logger.Warn("ws state_init marshal failed", "error", err)
		return
	}
	select {
	case client.send <- initMsg:
	default:
		s.hub.unregister <- client
	}
}

// inbound returns the handler for text frames sent by client: event envelopes
// are queued to the daemon without waiting for the result.
func (s *Server) inbound(c *Client) func([]byte) {
	return func(msg []byte) {
		ev, err := UnmarshalEvent(msg)
		if err != nil {
			c.logger.Debug("ws inbound message ignored", "remote_addr", c.remoteAddr, "error", err)
			return
		}
		if ev == nil {
			return
		}
		select {
		case s.requests <- Request{Event: ev}:
		default:
			c.logger.Warn("daemon request queue full, dropping ws event", "remote_addr", c.remoteAddr)
		}
	}
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster reads StateBroadcasts, marshals them, and broadcasts them to
// all hub clients. Intended to run as a single goroutine.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	// Frames arrive at update_hz; flush the latest pending frame at most once
	// every wsFrameCoalesceWindow (no debounce-on-silence).
	var pendingFrame *wsOutboundEvent
	var frameTimer *time.Timer
	var frameTimerCh <-chan time.Time

	emit := func(ev wsOutboundEvent) {
		msg, err := marshalEnvelope(ev)
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", ev.Type)
			return
		}
		hub.BroadcastBytes(msg)
	}

	flushPendingFrame := func() {
		if pendingFrame == nil {
			return
		}
		emit(*pendingFrame)
		pendingFrame = nil
	}

	stopFrameTimer := func() {
		if frameTimer == nil {
			frameTimerCh = nil
			return
		}
		if !frameTimer.Stop() {
			select {
			case <-frameTimer.C:
			default:
			}
		}
		frameTimer = nil
		frameTimerCh = nil
	}

	startFrameTimerIfNeeded := func() {
		if frameTimer != nil {
			return
		}
		frameTimer = time.NewTimer(wsFrameCoalesceWindow)
		frameTimerCh = frameTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			flushPendingFrame()
			stopFrameTimer()
			return

		case <-frameTimerCh:
			flushPendingFrame()
			frameTimer = nil
			frameTimerCh = nil

		case b, ok := <-src:
			if !ok {
				flushPendingFrame()
				stopFrameTimer()
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}

			ev, ok := convertBroadcast(b)
			if !ok {
				continue
			}

			// Latest-wins: replace the pending frame and ensure the timer runs.
			if ev.Type == "frame" {
				copyEv := ev
				pendingFrame = &copyEv
				startFrameTimerIfNeeded()
				continue
			}

			// Discrete events go out immediately, after any pending frame so
			// clients never see a frame older than a later value change.
			flushPendingFrame()
			stopFrameTimer()
			emit(ev)
		}
	}
}

func convertBroadcast(b StateBroadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastValueChanged:
		return wsOutboundEvent{Type: "value_changed", Data: wsValueChangedData{Value: ev.Value}, At: ev.At}, true

	case BroadcastUnitChanged:
		return wsOutboundEvent{Type: "unit_changed", Data: wsUnitChangedData{Unit: ev.Unit, Index: ev.Index}, At: ev.At}, true

	case BroadcastTicks:
		return wsOutboundEvent{Type: "ticks", Data: wsTicksData{Ticks: ev.Ticks}, At: ev.At}, true

	case BroadcastFrame:
		return wsOutboundEvent{Type: "frame", Data: ev.Frame, At: ev.At}, true

	default:
		return wsOutboundEvent{}, false
	}
}
