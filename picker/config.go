package picker

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"rulerpicker/scale"
	"rulerpicker/units"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid picker config")

// Easing names the curve of an eased transition.
type Easing string

const (
	// EaseLinear moves at constant speed. Used for drag tracking.
	EaseLinear Easing = "linear"
	// EaseOut decelerates into the target without overshoot.
	EaseOut Easing = "ease-out"
	// EaseSpring overshoots slightly and settles.
	EaseSpring Easing = "spring"
)

func (e Easing) valid() bool {
	switch e {
	case EaseLinear, EaseOut, EaseSpring:
		return true
	}
	return false
}

// Transition is what the picker asks of the animation runtime: move the
// presentation value to a target over Duration following Easing.
type Transition struct {
	Duration time.Duration
	Easing   Easing
}

// Instant reports whether the transition should jump straight to the target.
func (t Transition) Instant() bool {
	return t.Duration <= 0
}

// Config is the fully resolved picker configuration. Build it with
// DefaultConfig, Resolve or LoadConfig; a Config is not mutated after a
// Controller has been created from it.
type Config struct {
	Range         scale.Range         `yaml:"range"`
	Geometry      scale.Geometry      `yaml:"geometry"`
	Magnification scale.Magnification `yaml:"magnification"`
	Units         UnitsConfig         `yaml:"units"`
	Animation     AnimationConfig     `yaml:"animation"`
}

// UnitsConfig selects the unit registry. Precedence: Registry (set in code),
// then Definitions, then Preset, then a single plain "cm" unit.
type UnitsConfig struct {
	Preset       string             `yaml:"preset,omitempty"`
	Definitions  []units.Definition `yaml:"definitions,omitempty"`
	Default      int                `yaml:"default"`
	ShowSwitcher bool               `yaml:"show_switcher"`

	Registry *units.Registry `yaml:"-"`
}

// AnimationConfig holds transition timings requested from the animation runtime.
type AnimationConfig struct {
	// DragMS is the near-zero tracking transition used on every drag move.
	DragMS int `yaml:"drag_ms"`
	// SettleMS is the cursor transition after release, steps, sets and unit switches.
	SettleMS int `yaml:"settle_ms"`
	// ReleaseMS is how long tick scales take to return to 1.0 after a drag.
	ReleaseMS int    `yaml:"release_ms"`
	Easing    string `yaml:"easing"`
}

// Default configuration values.
const (
	DefaultMinValue       = 150.0
	DefaultMaxValue       = 220.0
	DefaultStep           = 1.0
	DefaultLength         = 400.0
	DefaultThickness      = 60.0
	DefaultTickInterval   = 5.0
	DefaultMajorTickEvery = 10.0
	DefaultRadius         = 80.0
	DefaultMaxScale       = 1.5
	DefaultDragMS         = 16
	DefaultSettleMS       = 300
	DefaultReleaseMS      = 250
)

// DefaultConfig returns the documented defaults. Units resolve to a single
// "cm" unit unless a preset or definitions are supplied.
func DefaultConfig() Config {
	return Config{
		Range: scale.Range{
			Min:  DefaultMinValue,
			Max:  DefaultMaxValue,
			Step: DefaultStep,
		},
		Geometry: scale.Geometry{
			Length:       DefaultLength,
			Thickness:    DefaultThickness,
			TickInterval: DefaultTickInterval,
			MajorEvery:   DefaultMajorTickEvery,
		},
		Magnification: scale.Magnification{
			Enabled:  true,
			Radius:   DefaultRadius,
			MaxScale: DefaultMaxScale,
		},
		Units: UnitsConfig{
			Default:      0,
			ShowSwitcher: false,
		},
		Animation: AnimationConfig{
			DragMS:    DefaultDragMS,
			SettleMS:  DefaultSettleMS,
			ReleaseMS: DefaultReleaseMS,
			Easing:    string(EaseOut),
		},
	}
}

// Overrides is a partial configuration. Only non-nil fields are applied,
// even when they point at a zero value.
//
// MinValue, MaxValue and Step set the shared range. A unit that carries its
// own range (every unit of the built-in presets does) uses that instead, so
// with a preset selected these three have no effect. See RangeShadowed.
type Overrides struct {
	MinValue *float64
	MaxValue *float64
	Step     *float64

	Length         *float64
	Thickness      *float64
	TickInterval   *float64
	MajorTickEvery *float64

	MagnificationEnabled *bool
	Radius               *float64
	MaxScale             *float64

	Units            *units.Registry
	UnitsPreset      *string
	DefaultUnitIndex *int
	ShowUnitSwitcher *bool

	DragMS    *int
	SettleMS  *int
	ReleaseMS *int
	Easing    *string
}

// Apply merges the overrides into cfg.
func (o Overrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.MinValue != nil {
		cfg.Range.Min = *o.MinValue
	}
	if o.MaxValue != nil {
		cfg.Range.Max = *o.MaxValue
	}
	if o.Step != nil {
		cfg.Range.Step = *o.Step
	}

	if o.Length != nil {
		cfg.Geometry.Length = *o.Length
	}
	if o.Thickness != nil {
		cfg.Geometry.Thickness = *o.Thickness
	}
	if o.TickInterval != nil {
		cfg.Geometry.TickInterval = *o.TickInterval
	}
	if o.MajorTickEvery != nil {
		cfg.Geometry.MajorEvery = *o.MajorTickEvery
	}

	if o.MagnificationEnabled != nil {
		cfg.Magnification.Enabled = *o.MagnificationEnabled
	}
	if o.Radius != nil {
		cfg.Magnification.Radius = *o.Radius
	}
	if o.MaxScale != nil {
		cfg.Magnification.MaxScale = *o.MaxScale
	}

	if o.Units != nil {
		cfg.Units.Registry = o.Units
	}
	if o.UnitsPreset != nil {
		cfg.Units.Preset = *o.UnitsPreset
	}
	if o.DefaultUnitIndex != nil {
		cfg.Units.Default = *o.DefaultUnitIndex
	}
	if o.ShowUnitSwitcher != nil {
		cfg.Units.ShowSwitcher = *o.ShowUnitSwitcher
	}

	if o.DragMS != nil {
		cfg.Animation.DragMS = *o.DragMS
	}
	if o.SettleMS != nil {
		cfg.Animation.SettleMS = *o.SettleMS
	}
	if o.ReleaseMS != nil {
		cfg.Animation.ReleaseMS = *o.ReleaseMS
	}
	if o.Easing != nil {
		cfg.Animation.Easing = *o.Easing
	}
}

// Resolve merges overrides on top of DefaultConfig, builds the unit registry
// and validates the result.
func Resolve(o Overrides) (Config, error) {
	cfg := DefaultConfig()
	o.Apply(&cfg)
	return cfg.Complete()
}

// LoadConfig decodes YAML on top of DefaultConfig. Unknown fields are rejected.
func LoadConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := DecodeConfig(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg.Complete()
}

// DecodeConfig strictly decodes a single YAML document into cfg without
// completing or validating it.
func DecodeConfig(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode picker config yaml: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("decode picker config yaml: unexpected trailing document")
	}
	return nil
}

// Complete builds the unit registry if needed and validates the config.
// It returns a copy; cfg is left untouched.
func (c Config) Complete() (Config, error) {
	if c.Units.Registry == nil {
		reg, err := c.Units.build()
		if err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		c.Units.Registry = reg
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (u UnitsConfig) build() (*units.Registry, error) {
	switch {
	case len(u.Definitions) > 0:
		return units.FromDefinitions(u.Definitions)
	case u.Preset != "":
		return units.Preset(u.Preset)
	default:
		return units.NewRegistry(units.Descriptor{Label: "Centimeters", Symbol: "cm"}), nil
	}
}

// Validate checks config invariants. It expects Units.Registry to be set
// (see Complete).
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if err := c.Range.Validate(); err != nil {
		return invalid("%v", err)
	}
	if !(c.Geometry.Length > 0) {
		return invalid("geometry.length must be > 0")
	}
	if c.Geometry.Thickness < 0 {
		return invalid("geometry.thickness must be >= 0")
	}
	if !(c.Geometry.TickInterval > 0) {
		return invalid("geometry.tick_interval must be > 0")
	}
	if c.Geometry.MajorEvery < 0 {
		return invalid("geometry.major_every must be >= 0")
	}

	if c.Magnification.Enabled {
		if !(c.Magnification.Radius > 0) {
			return invalid("magnification.radius must be > 0")
		}
		if c.Magnification.MaxScale < 1 {
			return invalid("magnification.max_scale must be >= 1")
		}
	}

	if err := c.Units.Registry.Validate(); err != nil {
		return invalid("%v", err)
	}
	if c.Units.Default < 0 || c.Units.Default >= c.Units.Registry.Len() {
		return invalid("units.default %d out of range (have %d units)", c.Units.Default, c.Units.Registry.Len())
	}

	if c.Animation.DragMS < 0 || c.Animation.SettleMS < 0 || c.Animation.ReleaseMS < 0 {
		return invalid("animation durations must be >= 0")
	}
	if !Easing(c.Animation.Easing).valid() {
		return invalid("animation.easing must be %q, %q or %q", EaseLinear, EaseOut, EaseSpring)
	}

	return nil
}

// RangeShadowed reports whether the shared range was changed from its
// default while every unit supplies its own range, so it is never used.
// The config must be completed.
func (c Config) RangeShadowed() bool {
	reg := c.Units.Registry
	if reg == nil || reg.Len() == 0 || c.Range == DefaultConfig().Range {
		return false
	}
	for _, u := range reg.All() {
		if u.Range == nil {
			return false
		}
	}
	return true
}

// rangeFor returns the range active while unit u is selected.
func (c *Config) rangeFor(u units.Descriptor) scale.Range {
	if u.Range != nil {
		return *u.Range
	}
	return c.Range
}

func (c *Config) dragTransition() Transition {
	return Transition{Duration: ms(c.Animation.DragMS), Easing: EaseLinear}
}

func (c *Config) settleTransition() Transition {
	return Transition{Duration: ms(c.Animation.SettleMS), Easing: Easing(c.Animation.Easing)}
}

func (c *Config) releaseTransition() Transition {
	return Transition{Duration: ms(c.Animation.ReleaseMS), Easing: Easing(c.Animation.Easing)}
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
