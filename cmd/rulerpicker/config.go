package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"rulerpicker/picker"
)

// Config is the top-level YAML configuration for the rulerpicker daemon.
//
// Defaults, file values and flag overrides are merged in that order, then
// Validate resolves the picker section into an immutable picker.Config.
type Config struct {
	// Picker is the ruler itself: range, geometry, magnification, units, timings.
	Picker picker.Config `yaml:"picker"`

	// Touchscreen input
	Input InputConfig `yaml:"input"`

	// IPC configuration (used by `rulerpicker ctl`)
	IPC IPCConfig `yaml:"ipc"`

	// State stream for remote presentation layers
	WebSocket WebSocketConfig `yaml:"websocket"`

	// Animation runtime
	Animation AnimationConfig `yaml:"animation"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// InputConfig describes evdev touch devices and how their Y axis maps to
// screen pixels.
type InputConfig struct {
	Enabled bool     `yaml:"enabled"`
	Devices []string `yaml:"devices,omitempty"`

	// Raw ABS_Y range reported by the device.
	AxisMin int `yaml:"axis_min"`
	AxisMax int `yaml:"axis_max"`

	// ScreenHeight is the pixel height the axis range spans.
	ScreenHeight float64 `yaml:"screen_height"`

	// OriginY is the pixel coordinate of the ruler's top edge.
	OriginY float64 `yaml:"origin_y"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

type AnimationConfig struct {
	UpdateHz int `yaml:"update_hz"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Picker: picker.DefaultConfig(),
		Input: InputConfig{
			Enabled:      false,
			AxisMin:      defaultAxisMin,
			AxisMax:      defaultAxisMax,
			ScreenHeight: defaultScreenHeight,
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		WebSocket: WebSocketConfig{
			Enabled: true,
			Listen:  defaultWSListen,
			Path:    defaultWSPath,
		},
		Animation: AnimationConfig{
			UpdateHz: defaultUpdateHz,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(LogFormatText),
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected via KnownFields(true), including inside the
// picker section.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Ensure there's no trailing garbage (only whitespace/comments are allowed after the document).
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds command-line overrides. Each pointer is only applied
// when non-nil, even if it points at a zero value.
type FlagOverrides struct {
	InputDevice *string

	IPCSocketPath *string

	WSListen  *string
	WSEnabled *bool

	UpdateHz *int

	LogLevel  *string
	LogFormat *string

	// Picker overrides are forwarded to picker.Overrides.
	Picker picker.Overrides
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.InputDevice != nil {
		cfg.Input.Enabled = true
		cfg.Input.Devices = []string{*o.InputDevice}
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}

	if o.WSListen != nil {
		cfg.WebSocket.Listen = *o.WSListen
	}
	if o.WSEnabled != nil {
		cfg.WebSocket.Enabled = *o.WSEnabled
	}

	if o.UpdateHz != nil {
		cfg.Animation.UpdateHz = *o.UpdateHz
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		cfg.Logging.Format = *o.LogFormat
	}

	o.Picker.Apply(&cfg.Picker)
}

// Validate checks config invariants and resolves the picker section.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	resolved, err := c.Picker.Complete()
	if err != nil {
		return fmt.Errorf("picker: %w", err)
	}
	c.Picker = resolved

	// Input
	if c.Input.Enabled {
		if len(c.Input.Devices) == 0 {
			return errors.New("input.devices must not be empty when input is enabled")
		}
		for i, dev := range c.Input.Devices {
			if dev == "" {
				return fmt.Errorf("input.devices[%d] is empty", i)
			}
		}
		if c.Input.AxisMin >= c.Input.AxisMax {
			return errors.New("input.axis_min must be < input.axis_max")
		}
		if !(c.Input.ScreenHeight > 0) {
			return errors.New("input.screen_height must be > 0")
		}
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// WebSocket
	if c.WebSocket.Enabled {
		if c.WebSocket.Listen == "" {
			return errors.New("websocket.listen must not be empty when websocket is enabled")
		}
		if c.WebSocket.Path == "" || c.WebSocket.Path[0] != '/' {
			return errors.New("websocket.path must start with /")
		}
	}

	// Animation
	if c.Animation.UpdateHz <= 0 || c.Animation.UpdateHz > 1000 {
		return errors.New("animation.update_hz must be between 1 and 1000")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, err := parseLogFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("logging.format: %w", err)
	}

	return nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}

// warnShadowedRange logs when the configured range is overridden by the
// per-unit ranges of the selected units.
func warnShadowedRange(cfg Config, logger *slog.Logger) {
	if cfg.Picker.RangeShadowed() {
		logger.Warn("picker range ignored: every unit defines its own range",
			"range", cfg.Picker.Range, "preset", cfg.Picker.Units.Preset)
	}
}
