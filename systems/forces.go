package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// MinWallRatio bounds |distance/wallDistance| from below so an agent sitting
// on a face gets a large but finite push.
const MinWallRatio = 1e-3

// Each Apply* function evaluates one rule for agents in [i0, i1) and assigns
// the result to that rule's delta slot. Rules read only start-of-tick
// positions, velocities and neighbor lists, so they may run concurrently with
// each other and over disjoint ranges.

// ApplyWall evaluates containment for agents in [i0, i1).
func ApplyWall(s *Store, p Params, i0, i1 int) {
	out := s.deltas[RuleWall]
	for i := i0; i < i1; i++ {
		out[i] = Wall(s.pos[i], p)
	}
}

// ApplySeparation evaluates separation for agents in [i0, i1).
func ApplySeparation(s *Store, p Params, i0, i1 int) {
	out := s.deltas[RuleSeparation]
	for i := i0; i < i1; i++ {
		out[i] = separation(s, AgentID(i), p.SeparationWeight)
	}
}

// ApplyAlignment evaluates alignment for agents in [i0, i1).
func ApplyAlignment(s *Store, p Params, i0, i1 int) {
	out := s.deltas[RuleAlignment]
	for i := i0; i < i1; i++ {
		out[i] = alignment(s, AgentID(i), p.AlignmentWeight)
	}
}

// ApplyCohesion evaluates cohesion for agents in [i0, i1).
func ApplyCohesion(s *Store, p Params, i0, i1 int) {
	out := s.deltas[RuleCohesion]
	for i := i0; i < i1; i++ {
		out[i] = cohesion(s, AgentID(i), p.CohesionWeight)
	}
}

// Wall returns the containment acceleration for an agent at pos. The walls
// are the faces of an axis-aligned cube of edge WallScale centred on the
// origin. Distances are measured inward, so they go negative once the agent
// has left the cube and the push keeps growing.
func Wall(pos r3.Vec, p Params) r3.Vec {
	if p.WallDistance <= 0 {
		return r3.Vec{}
	}
	half := p.WallScale * 0.5

	var acc r3.Vec
	acc.X = wallAxis(pos.X, half, p)
	acc.Y = wallAxis(pos.Y, half, p)
	acc.Z = wallAxis(pos.Z, half, p)
	return acc
}

// wallAxis sums the push from the two faces perpendicular to one axis.
func wallAxis(x, half float64, p Params) float64 {
	return wallPush(x+half, p) - wallPush(half-x, p)
}

// wallPush returns the inward magnitude from one face at signed distance d.
func wallPush(d float64, p Params) float64 {
	if d >= p.WallDistance {
		return 0
	}
	ratio := math.Abs(d / p.WallDistance)
	if ratio < MinWallRatio {
		ratio = MinWallRatio
	}
	return p.WallWeight / ratio
}

func separation(s *Store, id AgentID, weight float64) r3.Vec {
	neighbors := s.neighbors[id]
	if len(neighbors) == 0 {
		return r3.Vec{}
	}
	self := s.pos[id]
	var sum r3.Vec
	for _, n := range neighbors {
		away, _ := Unit(r3.Sub(self, s.pos[n]))
		sum = r3.Add(sum, away)
	}
	return r3.Scale(weight/float64(len(neighbors)), sum)
}

func alignment(s *Store, id AgentID, weight float64) r3.Vec {
	neighbors := s.neighbors[id]
	if len(neighbors) == 0 {
		return r3.Vec{}
	}
	var sum r3.Vec
	for _, n := range neighbors {
		sum = r3.Add(sum, s.vel[n])
	}
	mean := r3.Scale(1/float64(len(neighbors)), sum)
	return r3.Scale(weight, r3.Sub(mean, s.vel[id]))
}

func cohesion(s *Store, id AgentID, weight float64) r3.Vec {
	neighbors := s.neighbors[id]
	if len(neighbors) == 0 {
		return r3.Vec{}
	}
	var sum r3.Vec
	for _, n := range neighbors {
		sum = r3.Add(sum, s.pos[n])
	}
	mean := r3.Scale(1/float64(len(neighbors)), sum)
	return r3.Scale(weight, r3.Sub(mean, s.pos[id]))
}
