package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rulerpicker/picker"
)

// startIPC runs a daemon and an IPC server on a socket in a short temp dir
// (unix socket paths are length-limited).
func startIPC(t *testing.T) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "rp")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	socketPath := filepath.Join(dir, "s")

	h := startDaemon(t, picker.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runIPCServer(ctx, socketPath, h.requests, quietLogger()) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("runIPCServer: %v", err)
			}
		case <-time.After(time.Second):
			t.Errorf("timeout waiting for IPC server to stop")
		}
	})

	waitUntil(t, time.Second, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, "IPC socket not created")
	return socketPath
}

func TestIPC_RoundTrip(t *testing.T) {
	socketPath := startIPC(t)

	resp, err := SendIPCEvent(socketPath, picker.SetValue{Value: 190})
	if err != nil {
		t.Fatalf("set_value: %v", err)
	}
	if resp.Value == nil || *resp.Value != 190 {
		t.Fatalf("value=%v, want 190", resp.Value)
	}
	if resp.Unit != "cm" {
		t.Fatalf("unit=%q, want cm", resp.Unit)
	}
	if resp.State != nil {
		t.Fatalf("state should only be sent for get_state")
	}

	resp, err = SendIPCEvent(socketPath, picker.Increment{})
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if *resp.Value != 191 {
		t.Fatalf("value=%v, want 191", *resp.Value)
	}

	resp, err = SendIPCEvent(socketPath, nil)
	if err != nil {
		t.Fatalf("get_state: %v", err)
	}
	if resp.State == nil {
		t.Fatalf("get_state returned no state")
	}
	if resp.State.Value != 191 || resp.State.Phase != "idle" {
		t.Fatalf("state=%+v", resp.State)
	}
}

func TestIPC_ErrorResponses(t *testing.T) {
	socketPath := startIPC(t)

	resp, err := SendIPCEvent(socketPath, picker.SwitchUnit{Index: 3})
	if err == nil {
		t.Fatalf("expected error for out-of-range unit")
	}
	if resp.Status != "error" || resp.Error == "" {
		t.Fatalf("resp=%+v, want error status", resp)
	}
}

func TestHandleIPCLine_ParseError(t *testing.T) {
	resp := handleIPCLine(context.Background(), []byte(`{"type":"nope"}`), make(chan Request))
	if resp.Status != "error" {
		t.Fatalf("status=%q, want error", resp.Status)
	}
}

func TestSendIPCEvent_NoDaemon(t *testing.T) {
	if _, err := SendIPCEvent(filepath.Join(t.TempDir(), "missing.sock"), picker.Increment{}); err == nil {
		t.Fatalf("expected connect error")
	}
}
