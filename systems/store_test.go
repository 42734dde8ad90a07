package systems

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ---------- Resize ----------

func TestResize_GrowAppendsTail(t *testing.T) {
	s := NewStore(1)

	added, removed := s.Resize(5, 2)
	assert.Equal(t, []AgentID{0, 1, 2, 3, 4}, added)
	assert.Empty(t, removed)
	assert.Equal(t, 5, s.Len())

	added, removed = s.Resize(7, 2)
	assert.Equal(t, []AgentID{5, 6}, added)
	assert.Empty(t, removed)
}

func TestResize_ShrinkPopsTail(t *testing.T) {
	s := NewStore(1)
	s.Resize(6, 2)
	keep := s.Position(1)

	added, removed := s.Resize(2, 2)
	assert.Empty(t, added)
	assert.Equal(t, []AgentID{5, 4, 3, 2}, removed)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, keep, s.Position(1), "survivors keep their state")
	assert.False(t, s.Valid(2))
	assert.True(t, s.Valid(1))
}

func TestResize_NoChangeReportsNothing(t *testing.T) {
	s := NewStore(1)
	s.Resize(3, 2)

	added, removed := s.Resize(3, 2)
	assert.Empty(t, added)
	assert.Empty(t, removed)
}

func TestResize_NegativeTargetEmpties(t *testing.T) {
	s := NewStore(1)
	s.Resize(3, 2)
	s.Resize(-1, 2)
	assert.Equal(t, 0, s.Len())
}

func TestResize_InitialState(t *testing.T) {
	const initSpeed = 2.5
	s := NewStore(853)
	s.Resize(200, initSpeed)

	for i := 0; i < s.Len(); i++ {
		id := AgentID(i)
		assert.LessOrEqual(t, r3.Norm(s.Position(id)), 1.0, "spawn inside unit sphere")
		assert.InDelta(t, initSpeed, r3.Norm(s.Velocity(id)), 1e-9)
		assert.InDelta(t, 1.0, quat.Abs(s.Orientation(id)), 1e-9)
		assert.Equal(t, r3.Vec{}, s.Acceleration(id))

		heading, _ := Unit(s.Velocity(id))
		assertVecNear(t, Forward(s.Orientation(id)), heading, 1e-9)
	}
}

func TestResize_SeedIsDeterministic(t *testing.T) {
	a := NewStore(42)
	b := NewStore(42)
	a.Resize(50, 2)
	b.Resize(50, 2)

	assert.Equal(t, a.Positions(), b.Positions())
	assert.Equal(t, a.Velocities(), b.Velocities())
}

func TestResize_ClearsNeighborLists(t *testing.T) {
	s := NewStore(1)
	s.Resize(3, 2)
	s.neighbors[0] = append(s.neighbors[0], 2)

	s.Resize(2, 2)
	assert.Empty(t, s.Neighbors(0), "lists computed before a resize must not survive it")
}

// ---------- Spawn ----------

func TestSpawn_UsesSuppliedOrientation(t *testing.T) {
	s := NewStore(1)
	rot := LookRotation(r3.Vec{X: 1}, WorldUp)

	id := s.Spawn(r3.Vec{Y: 3}, rot, 4)
	require.True(t, s.Valid(id))
	assert.Equal(t, r3.Vec{Y: 3}, s.Position(id))
	assertVecNear(t, r3.Vec{X: 4}, s.Velocity(id), 1e-9)
}

func TestSpawn_AfterShrinkReusesRows(t *testing.T) {
	s := NewStore(1)
	s.Resize(4, 2)
	s.Resize(1, 2)

	id := s.Spawn(r3.Vec{}, Identity, 1)
	assert.Equal(t, AgentID(1), id)
	assert.Empty(t, s.Neighbors(id))
	for r := Rule(0); r < NumRules; r++ {
		assert.Equal(t, r3.Vec{}, s.Delta(r, id), r.String())
	}
}

func TestRuleString(t *testing.T) {
	assert.Equal(t, "wall", RuleWall.String())
	assert.Equal(t, "cohesion", RuleCohesion.String())
	assert.Equal(t, "unknown", NumRules.String())
}

// ---------- Params ----------

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		valid  bool
	}{
		{"defaults", func(p *Params) {}, true},
		{"equal speeds", func(p *Params) { p.MinSpeed, p.MaxSpeed = 3, 3 }, true},
		{"min above max", func(p *Params) { p.MinSpeed, p.MaxSpeed = 6, 5 }, false},
		{"negative weight", func(p *Params) { p.CohesionWeight = -1 }, false},
		{"nan distance", func(p *Params) { p.NeighborDistance = math.NaN() }, false},
		{"inf wall scale", func(p *Params) { p.WallScale = math.Inf(1) }, false},
		{"zero wall distance", func(p *Params) { p.WallDistance = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidParameter)
			}
		})
	}
}

func TestFovThreshold(t *testing.T) {
	p := DefaultParams()
	p.NeighborFovDegrees = 60
	assert.InDelta(t, 0.5, p.FovThreshold(), 1e-12)
}
