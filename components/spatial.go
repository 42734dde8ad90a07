// Package components defines ECS components for the presentation scene.
package components

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform is an entity's world placement.
type Transform struct {
	Position    r3.Vec
	Orientation quat.Number
}
