package systems

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Epsilon is the length below which a vector is treated as degenerate.
const Epsilon = 1e-9

// World axes.
var (
	WorldUp      = r3.Vec{Y: 1}
	WorldForward = r3.Vec{Z: 1}
)

// Identity is the identity rotation.
var Identity = quat.Number{Real: 1}

// clampFloat clamps v between minVal and maxVal.
func clampFloat(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// Unit returns v scaled to length one. ok is false when v is shorter than
// Epsilon, in which case the zero vector is returned.
func Unit(v r3.Vec) (u r3.Vec, ok bool) {
	n := r3.Norm(v)
	if n < Epsilon {
		return r3.Vec{}, false
	}
	return r3.Scale(1/n, v), true
}

// Rotate applies the unit quaternion q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Forward returns the +Z axis rotated by q.
func Forward(q quat.Number) r3.Vec {
	return Rotate(q, WorldForward)
}

// LookRotation returns the rotation that maps +Z onto forward and keeps +Y as
// close to up as possible. When forward is parallel to up an alternate up
// axis is chosen. A degenerate forward yields Identity.
func LookRotation(forward, up r3.Vec) quat.Number {
	f, ok := Unit(forward)
	if !ok {
		return Identity
	}

	right, ok := Unit(r3.Cross(up, f))
	if !ok {
		alt := r3.Vec{X: 1}
		if math.Abs(f.X) > 0.9 {
			alt = r3.Vec{Z: 1}
		}
		right, _ = Unit(r3.Cross(alt, f))
	}
	u := r3.Cross(f, right)

	return fromBasis(right, u, f)
}

// fromBasis converts an orthonormal basis (the columns of a rotation matrix)
// to a unit quaternion.
func fromBasis(x, y, z r3.Vec) quat.Number {
	m00, m01, m02 := x.X, y.X, z.X
	m10, m11, m12 := x.Y, y.Y, z.Y
	m20, m21, m22 := x.Z, y.Z, z.Z

	var q quat.Number
	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q = quat.Number{
			Real: s / 4,
			Imag: (m21 - m12) / s,
			Jmag: (m02 - m20) / s,
			Kmag: (m10 - m01) / s,
		}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = quat.Number{
			Real: (m21 - m12) / s,
			Imag: s / 4,
			Jmag: (m01 + m10) / s,
			Kmag: (m02 + m20) / s,
		}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = quat.Number{
			Real: (m02 - m20) / s,
			Imag: (m01 + m10) / s,
			Jmag: s / 4,
			Kmag: (m12 + m21) / s,
		}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = quat.Number{
			Real: (m10 - m01) / s,
			Imag: (m02 + m20) / s,
			Jmag: (m12 + m21) / s,
			Kmag: s / 4,
		}
	}

	// Renormalize to absorb rounding from the basis.
	return quat.Scale(1/quat.Abs(q), q)
}

// IsFinite reports whether every component of v is finite.
func IsFinite(v r3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}
