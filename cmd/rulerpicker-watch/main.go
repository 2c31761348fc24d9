package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// rulerpicker-watch connects to the rulerpicker state websocket and prints
// value, unit and tick changes as they happen. With -send it first sends one
// event envelope, e.g. -send '{"type":"increment"}'.

func main() {
	var (
		wsURL  = flag.String("ws", "ws://127.0.0.1:8787/ws", "rulerpicker state websocket URL")
		frames = flag.Bool("frames", false, "Also print animation frames")
		send   = flag.String("send", "", "Send one event envelope after connecting")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Mutex to protect concurrent writes to websocket
	var writeMu sync.Mutex

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	// The server pings every 20s; extend the deadline on each ping too.
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	if *send != "" {
		writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, []byte(*send))
		writeMu.Unlock()
		if err != nil {
			log.Fatalf("error sending event: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if line, ok := formatMessage(message, *frames); ok {
				fmt.Println(line)
			}
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type unitData struct {
	Symbol string `json:"symbol"`
	Label  string `json:"label"`
}

// formatMessage renders one state message as a log line. It reports false for
// messages that should not be printed.
func formatMessage(message []byte, frames bool) (string, bool) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return fmt.Sprintf("[TEXT] %s", string(message)), true
	}

	switch env.Type {
	case "state_init":
		var st struct {
			Value float64  `json:"value"`
			Unit  unitData `json:"unit"`
			Phase string   `json:"phase"`
			Ticks []any    `json:"ticks"`
		}
		if err := json.Unmarshal(env.Data, &st); err != nil {
			return fmt.Sprintf("[STATE] %s", string(env.Data)), true
		}
		return fmt.Sprintf("[STATE] %g %s (%s, %d ticks)", st.Value, st.Unit.Symbol, st.Phase, len(st.Ticks)), true

	case "value_changed":
		var v struct {
			Value float64 `json:"value"`
		}
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return "", false
		}
		return fmt.Sprintf("[VALUE] %g", v.Value), true

	case "unit_changed":
		var v struct {
			Unit  unitData `json:"unit"`
			Index int      `json:"index"`
		}
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return "", false
		}
		return fmt.Sprintf("[UNIT] %d %s (%s)", v.Index, v.Unit.Symbol, v.Unit.Label), true

	case "ticks":
		var v struct {
			Ticks []struct {
				Value float64 `json:"value"`
			} `json:"ticks"`
		}
		if err := json.Unmarshal(env.Data, &v); err != nil || len(v.Ticks) == 0 {
			return "[TICKS] none", true
		}
		return fmt.Sprintf("[TICKS] %d from %g to %g", len(v.Ticks), v.Ticks[0].Value, v.Ticks[len(v.Ticks)-1].Value), true

	case "frame":
		if !frames {
			return "", false
		}
		var v struct {
			Cursor float64 `json:"cursor"`
			Ticks  []struct {
				Value float64 `json:"value"`
				Scale float64 `json:"scale"`
			} `json:"ticks"`
		}
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return "", false
		}
		var magnified []string
		for _, t := range v.Ticks {
			if t.Scale > 1.001 {
				magnified = append(magnified, fmt.Sprintf("%g×%.2f", t.Value, t.Scale))
			}
		}
		return fmt.Sprintf("[FRAME] cursor=%.1f %s", v.Cursor, strings.Join(magnified, " ")), true

	default:
		return fmt.Sprintf("[%s] %s", strings.ToUpper(env.Type), string(env.Data)), true
	}
}
