package systems

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func assertVecNear(t *testing.T, want, got r3.Vec, tol float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tol, "x")
	assert.InDelta(t, want.Y, got.Y, tol, "y")
	assert.InDelta(t, want.Z, got.Z, tol, "z")
}

func TestUnit(t *testing.T) {
	u, ok := Unit(r3.Vec{X: 3, Y: 4})
	assert.True(t, ok)
	assertVecNear(t, r3.Vec{X: 0.6, Y: 0.8}, u, 1e-12)

	u, ok = Unit(r3.Vec{X: 1e-12})
	assert.False(t, ok)
	assert.Equal(t, r3.Vec{}, u)
}

func TestLookRotation_ForwardMapsToDirection(t *testing.T) {
	dirs := []struct {
		name string
		dir  r3.Vec
	}{
		{"plus z", r3.Vec{Z: 1}},
		{"minus z", r3.Vec{Z: -1}},
		{"plus x", r3.Vec{X: 1}},
		{"minus x", r3.Vec{X: -1}},
		{"diagonal", r3.Vec{X: 1, Y: 2, Z: -3}},
		{"straight up", r3.Vec{Y: 1}},
		{"straight down", r3.Vec{Y: -5}},
	}

	for _, tt := range dirs {
		t.Run(tt.name, func(t *testing.T) {
			q := LookRotation(tt.dir, WorldUp)
			assert.InDelta(t, 1.0, quat.Abs(q), 1e-9, "rotation must be unit length")

			want, _ := Unit(tt.dir)
			assertVecNear(t, want, Forward(q), 1e-9)
		})
	}
}

func TestLookRotation_KeepsUpWhenPossible(t *testing.T) {
	q := LookRotation(r3.Vec{X: 1}, WorldUp)
	assertVecNear(t, WorldUp, Rotate(q, WorldUp), 1e-9)
}

func TestLookRotation_DegenerateIsIdentity(t *testing.T) {
	assert.Equal(t, Identity, LookRotation(r3.Vec{}, WorldUp))
}

func TestRotate_PreservesLength(t *testing.T) {
	q := LookRotation(r3.Vec{X: 0.3, Y: -0.2, Z: 0.9}, WorldUp)
	v := r3.Vec{X: 1, Y: 2, Z: 3}
	assert.InDelta(t, r3.Norm(v), r3.Norm(Rotate(q, v)), 1e-9)
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(r3.Vec{X: 1, Y: -2, Z: 3}))
	assert.False(t, IsFinite(r3.Vec{X: math.NaN()}))
	assert.False(t, IsFinite(r3.Vec{Z: math.Inf(-1)}))
}
