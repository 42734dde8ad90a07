package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestIntegrate_ClampsSpeed(t *testing.T) {
	p := DefaultParams()
	p.MinSpeed = 2
	p.MaxSpeed = 5

	tests := []struct {
		name  string
		vel   r3.Vec
		acc   r3.Vec
		speed float64
	}{
		{"too slow", r3.Vec{X: 0.5}, r3.Vec{}, 2},
		{"too fast", r3.Vec{Y: 4}, r3.Vec{Y: 100}, 5},
		{"in range", r3.Vec{Z: 3}, r3.Vec{}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore([]r3.Vec{{}}, []r3.Vec{tt.vel})
			s.SetAcceleration(0, tt.acc)

			Integrate(s, p, 0.1, 0, 1)

			assert.InDelta(t, tt.speed, r3.Norm(s.Velocity(0)), 1e-9)
		})
	}
}

func TestIntegrate_ZeroDtKeepsPositionAndHeading(t *testing.T) {
	p := DefaultParams()
	s := newTestStore([]r3.Vec{{X: 1, Y: 2, Z: 3}}, []r3.Vec{{X: 0, Y: 3, Z: 4}})
	s.SetAcceleration(0, r3.Vec{X: 50})
	s.deltas[RuleCohesion][0] = r3.Vec{Y: -20}

	Integrate(s, p, 0, 0, 1)

	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, s.Position(0))
	assertVecNear(t, r3.Vec{Y: 0.6, Z: 0.8}, Forward(s.Orientation(0)), 1e-9)
	assert.Equal(t, r3.Vec{}, s.Acceleration(0), "acceleration resets after integration")
}

func TestIntegrate_SumsRuleDeltas(t *testing.T) {
	p := DefaultParams()
	p.MinSpeed = 0
	p.MaxSpeed = 100

	s := newTestStore([]r3.Vec{{}}, []r3.Vec{{X: 1}})
	s.SetAcceleration(0, r3.Vec{X: 1})
	s.deltas[RuleWall][0] = r3.Vec{Y: 1}
	s.deltas[RuleSeparation][0] = r3.Vec{Y: 1}
	s.deltas[RuleAlignment][0] = r3.Vec{Z: 2}
	s.deltas[RuleCohesion][0] = r3.Vec{X: -1}

	Integrate(s, p, 0.5, 0, 1)

	// v = (1,0,0) + 0.5*(0,2,2)
	assertVecNear(t, r3.Vec{X: 1, Y: 1, Z: 1}, s.Velocity(0), 1e-12)
	assertVecNear(t, r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, s.Position(0), 1e-12)
}

func TestIntegrate_DegenerateVelocityKeepsHeading(t *testing.T) {
	p := DefaultParams()
	p.MinSpeed = 1

	s := NewStore(1)
	s.Spawn(r3.Vec{}, LookRotation(r3.Vec{X: -1}, WorldUp), 2)
	// Acceleration exactly cancels the velocity.
	s.SetAcceleration(0, r3.Vec{X: 20})

	Integrate(s, p, 0.1, 0, 1)

	assertVecNear(t, r3.Vec{X: -1}, s.Velocity(0), 1e-9)
	assertVecNear(t, r3.Vec{X: -1}, Forward(s.Orientation(0)), 1e-9)
}

func TestIntegrate_OrientationFacesVelocity(t *testing.T) {
	p := DefaultParams()
	s := NewStore(3)
	s.Resize(20, p.InitSpeed)
	for i := 0; i < s.Len(); i++ {
		s.SetAcceleration(AgentID(i), r3.Vec{X: float64(i), Y: -1, Z: 0.5})
	}

	Integrate(s, p, 0.05, 0, s.Len())

	for i := 0; i < s.Len(); i++ {
		heading, _ := Unit(s.Velocity(AgentID(i)))
		assertVecNear(t, heading, Forward(s.Orientation(AgentID(i))), 1e-9)
	}
}
