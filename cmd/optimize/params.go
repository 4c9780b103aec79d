// Package main provides CMA-ES tuning of the seek policy gains.
package main

import (
	"github.com/pthm-cable/crowd/config"
	"github.com/pthm-cable/crowd/neural"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters. The first four
// entries are the seek gains in neural.Seek.Params order.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	def := neural.DefaultSeek().Params()
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "turn_gain", Path: "policy.seek.turn_gain", Min: 0.2, Max: 3.0, Default: def[0]},
			{Name: "cruise", Path: "policy.seek.cruise", Min: 0.1, Max: 1.0, Default: def[1]},
			{Name: "settle", Path: "policy.seek.settle", Min: 0.0, Max: 3.0, Default: def[2]},
			{Name: "arrive", Path: "policy.seek.arrive", Min: 0.0, Max: 0.5, Default: def[3]},
			{Name: "avoidance_radius", Path: "avoidance.radius", Min: 0.2, Max: 0.6, Default: 0.35},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return out
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return out
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return out
}

// ApplyToConfig writes clamped values into cfg. The policy kind is forced to
// seek since the other kinds ignore the gains.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)
	s := neural.SeekFromParams(c[:4])
	cfg.Policy.Kind = "seek"
	cfg.Policy.Seek = config.SeekConfig{
		TurnGain: s.TurnGain,
		Cruise:   s.Cruise,
		Settle:   s.Settle,
		Arrive:   s.Arrive,
	}
	cfg.Avoidance.Radius = c[4]
}

// ExtractFromConfig reads the current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Policy.Seek.TurnGain,
		cfg.Policy.Seek.Cruise,
		cfg.Policy.Seek.Settle,
		cfg.Policy.Seek.Arrive,
		cfg.Avoidance.Radius,
	}
}
