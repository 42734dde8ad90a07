package systems

import "gonum.org/v1/gonum/spatial/r3"

// Integrate advances agents in [i0, i1) by dt.
//
// The rule deltas are added to the accumulated acceleration in a fixed order
// (wall, separation, alignment, cohesion), the velocity is advanced and its
// magnitude clamped to [MinSpeed, MaxSpeed], the position moves along the new
// velocity and the orientation turns to face it. The acceleration is reset to
// zero afterwards.
//
// If the new velocity is degenerate the agent keeps the heading of its
// current orientation.
func Integrate(s *Store, p Params, dt float64, i0, i1 int) {
	wall := s.deltas[RuleWall]
	sep := s.deltas[RuleSeparation]
	align := s.deltas[RuleAlignment]
	coh := s.deltas[RuleCohesion]

	for i := i0; i < i1; i++ {
		acc := s.acc[i]
		acc = r3.Add(acc, wall[i])
		acc = r3.Add(acc, sep[i])
		acc = r3.Add(acc, align[i])
		acc = r3.Add(acc, coh[i])

		v := r3.Add(s.vel[i], r3.Scale(dt, acc))
		speed := r3.Norm(v)
		dir, ok := Unit(v)
		if !ok {
			dir = Forward(s.rot[i])
		}
		v = r3.Scale(clampFloat(speed, p.MinSpeed, p.MaxSpeed), dir)

		s.pos[i] = r3.Add(s.pos[i], r3.Scale(dt, v))
		s.vel[i] = v
		s.rot[i] = LookRotation(dir, WorldUp)
		s.acc[i] = r3.Vec{}
	}
}
