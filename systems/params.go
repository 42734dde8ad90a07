package systems

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors returned by parameter and agent validation.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidAgentID   = errors.New("invalid agent id")
)

// Params holds the flocking parameters read by every stage of a tick.
type Params struct {
	InitSpeed          float64 `yaml:"init_speed" toml:"init_speed" json:"init_speed"`
	MinSpeed           float64 `yaml:"min_speed" toml:"min_speed" json:"min_speed"`
	MaxSpeed           float64 `yaml:"max_speed" toml:"max_speed" json:"max_speed"`
	NeighborDistance   float64 `yaml:"neighbor_distance" toml:"neighbor_distance" json:"neighbor_distance"`
	NeighborFovDegrees float64 `yaml:"neighbor_fov" toml:"neighbor_fov" json:"neighbor_fov"` // degrees off heading
	SeparationWeight   float64 `yaml:"separation_weight" toml:"separation_weight" json:"separation_weight"`
	WallScale          float64 `yaml:"wall_scale" toml:"wall_scale" json:"wall_scale"`          // edge length of the containing cube
	WallDistance       float64 `yaml:"wall_distance" toml:"wall_distance" json:"wall_distance"` // 0 disables containment
	WallWeight         float64 `yaml:"wall_weight" toml:"wall_weight" json:"wall_weight"`
	AlignmentWeight    float64 `yaml:"alignment_weight" toml:"alignment_weight" json:"alignment_weight"`
	CohesionWeight     float64 `yaml:"cohesion_weight" toml:"cohesion_weight" json:"cohesion_weight"`
}

// DefaultParams returns the stock flocking parameters.
func DefaultParams() Params {
	return Params{
		InitSpeed:          2,
		MinSpeed:           2,
		MaxSpeed:           5,
		NeighborDistance:   1,
		NeighborFovDegrees: 90,
		SeparationWeight:   5,
		WallScale:          5,
		WallDistance:       3,
		WallWeight:         1,
		AlignmentWeight:    2,
		CohesionWeight:     3,
	}
}

// Validate checks that every parameter is finite and non-negative and that
// MinSpeed does not exceed MaxSpeed.
func (p Params) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"init_speed", p.InitSpeed},
		{"min_speed", p.MinSpeed},
		{"max_speed", p.MaxSpeed},
		{"neighbor_distance", p.NeighborDistance},
		{"neighbor_fov", p.NeighborFovDegrees},
		{"separation_weight", p.SeparationWeight},
		{"wall_scale", p.WallScale},
		{"wall_distance", p.WallDistance},
		{"wall_weight", p.WallWeight},
		{"alignment_weight", p.AlignmentWeight},
		{"cohesion_weight", p.CohesionWeight},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s is not finite: %w", f.name, ErrInvalidParameter)
		}
		if f.v < 0 {
			return fmt.Errorf("%s is negative (%g): %w", f.name, f.v, ErrInvalidParameter)
		}
	}
	if p.MinSpeed > p.MaxSpeed {
		return fmt.Errorf("min_speed %g exceeds max_speed %g: %w", p.MinSpeed, p.MaxSpeed, ErrInvalidParameter)
	}
	return nil
}

// FovThreshold returns the cosine that a neighbor's direction must exceed
// when dotted with the agent's heading.
func (p Params) FovThreshold() float64 {
	return math.Cos(p.NeighborFovDegrees * math.Pi / 180)
}
