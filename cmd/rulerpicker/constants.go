package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_ABS = 0x03

	SYN_REPORT = 0x00

	BTN_TOUCH = 0x14a

	ABS_Y              = 0x01
	ABS_MT_POSITION_Y  = 0x36
	ABS_MT_TRACKING_ID = 0x39
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
)

// Daemon defaults
const (
	defaultUpdateHz   = 60 // Animation frame rate (Hz)
	defaultSocketPath = "/tmp/rulerpicker.sock"
	defaultWSListen   = "127.0.0.1:8787"
	defaultWSPath     = "/ws"

	defaultAxisMin      = 0
	defaultAxisMax      = 4095
	defaultScreenHeight = 480.0

	// Maximum time an IPC or websocket request waits for the daemon loop.
	requestTimeoutMS = 1000
)
