package units

import (
	"fmt"
	"sort"

	"rulerpicker/scale"
)

// Linear is y = x*Factor + Offset.
type Linear struct {
	Factor float64 `yaml:"factor"`
	Offset float64 `yaml:"offset,omitempty"`
}

// Apply evaluates the conversion.
func (l Linear) Apply(v float64) float64 {
	return v*l.Factor + l.Offset
}

// Definition is the YAML form of a unit:
//
//	- label: Centimeters
//	  symbol: cm
//	  range: {min: 150, max: 220, step: 1}
//	  to:
//	    in: {factor: 0.3937007874}
type Definition struct {
	Label  string            `yaml:"label"`
	Symbol string            `yaml:"symbol"`
	Range  *scale.Range      `yaml:"range,omitempty"`
	To     map[string]Linear `yaml:"to,omitempty"`
}

// Descriptor turns the definition into a runtime unit whose conversion looks
// the target up by symbol.
func (d Definition) Descriptor() Descriptor {
	desc := Descriptor{
		Label:  d.Label,
		Symbol: d.Symbol,
	}
	if d.Range != nil {
		r := *d.Range
		desc.Range = &r
	}
	if len(d.To) > 0 {
		desc.Convert = LinearTable(d.To)
	}
	return desc
}

// LinearTable returns a ConvertFunc keyed by target symbol. Targets missing
// from the table, including the unit itself, convert as identity.
func LinearTable(table map[string]Linear) ConvertFunc {
	cp := make(map[string]Linear, len(table))
	for k, v := range table {
		cp[k] = v
	}
	return func(value float64, target Descriptor) float64 {
		l, ok := cp[target.Symbol]
		if !ok {
			return value
		}
		return l.Apply(value)
	}
}

// FromDefinitions builds a registry in definition order. Symbols must be
// unique and every conversion target must exist in the set.
func FromDefinitions(defs []Definition) (*Registry, error) {
	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		if d.Symbol == "" {
			return nil, fmt.Errorf("unit %d: symbol must not be empty", i)
		}
		if seen[d.Symbol] {
			return nil, fmt.Errorf("unit %d: duplicate symbol %q", i, d.Symbol)
		}
		seen[d.Symbol] = true
	}

	descs := make([]Descriptor, 0, len(defs))
	for _, d := range defs {
		targets := make([]string, 0, len(d.To))
		for sym := range d.To {
			targets = append(targets, sym)
		}
		sort.Strings(targets)
		for _, sym := range targets {
			if !seen[sym] {
				return nil, fmt.Errorf("unit %q: conversion target %q is not defined", d.Symbol, sym)
			}
			if d.To[sym].Factor == 0 {
				return nil, fmt.Errorf("unit %q: conversion to %q has zero factor", d.Symbol, sym)
			}
		}
		descs = append(descs, d.Descriptor())
	}

	r := NewRegistry(descs...)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

const (
	cmPerInch = 2.54
	cmPerFoot = 30.48
	kgPerLb   = 0.45359237
)

var presets = map[string][]Definition{
	"length": {
		{
			Label:  "Centimeters",
			Symbol: "cm",
			Range:  &scale.Range{Min: 150, Max: 220, Step: 1},
			To: map[string]Linear{
				"in": {Factor: 1 / cmPerInch},
				"ft": {Factor: 1 / cmPerFoot},
			},
		},
		{
			Label:  "Inches",
			Symbol: "in",
			Range:  &scale.Range{Min: 59, Max: 87, Step: 0.5},
			To: map[string]Linear{
				"cm": {Factor: cmPerInch},
				"ft": {Factor: 1.0 / 12},
			},
		},
		{
			Label:  "Feet",
			Symbol: "ft",
			Range:  &scale.Range{Min: 4.9, Max: 7.2, Step: 0.1},
			To: map[string]Linear{
				"cm": {Factor: cmPerFoot},
				"in": {Factor: 12},
			},
		},
	},
	"weight": {
		{
			Label:  "Kilograms",
			Symbol: "kg",
			Range:  &scale.Range{Min: 40, Max: 150, Step: 0.5},
			To: map[string]Linear{
				"lb": {Factor: 1 / kgPerLb},
			},
		},
		{
			Label:  "Pounds",
			Symbol: "lb",
			Range:  &scale.Range{Min: 88, Max: 330, Step: 1},
			To: map[string]Linear{
				"kg": {Factor: kgPerLb},
			},
		},
	},
}

// Preset returns one of the built-in registries: "length" or "weight".
func Preset(name string) (*Registry, error) {
	defs, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown unit preset %q", name)
	}
	return FromDefinitions(defs)
}

// PresetNames lists the built-in registries in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
