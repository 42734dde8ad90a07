// Package tune searches flocking parameters with CMA-ES so that headless runs
// reach a target polarization and neighbor count.
package tune

import (
	"math"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/systems"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters. Defaults
// match systems.DefaultParams.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "separation_weight", Path: "flock.separation_weight", Min: 0, Max: 10, Default: 5},
			{Name: "alignment_weight", Path: "flock.alignment_weight", Min: 0, Max: 10, Default: 2},
			{Name: "cohesion_weight", Path: "flock.cohesion_weight", Min: 0, Max: 10, Default: 3},
			{Name: "neighbor_distance", Path: "flock.neighbor_distance", Min: 0.2, Max: 3, Default: 1},
			{Name: "neighbor_fov", Path: "flock.neighbor_fov", Min: 30, Max: 180, Default: 90},
			{Name: "wall_weight", Path: "flock.wall_weight", Min: 0, Max: 5, Default: 1},
			{Name: "max_speed", Path: "flock.max_speed", Min: 2, Max: 10, Default: 5},
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
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = math.Max(spec.Min, math.Min(spec.Max, v[i]))
	}
	return clamped
}

// fields returns pointers to the fields of p in Specs order.
func fields(p *systems.Params) []*float64 {
	return []*float64{
		&p.SeparationWeight,
		&p.AlignmentWeight,
		&p.CohesionWeight,
		&p.NeighborDistance,
		&p.NeighborFovDegrees,
		&p.WallWeight,
		&p.MaxSpeed,
	}
}

// ApplyToParams writes values onto p in Specs order. Values are clamped first
// and max_speed never drops below p.MinSpeed.
func (pv *ParamVector) ApplyToParams(p *systems.Params, values []float64) {
	clamped := pv.Clamp(values)
	for i, f := range fields(p) {
		*f = clamped[i]
	}
	p.MaxSpeed = math.Max(p.MaxSpeed, p.MinSpeed)
}

// ApplyToConfig applies parameter values to a Config struct.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	pv.ApplyToParams(&cfg.Flock, values)
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	p := cfg.Flock
	fs := fields(&p)
	v := make([]float64, len(fs))
	for i, f := range fs {
		v[i] = *f
	}
	return v
}
