package systems

import "gonum.org/v1/gonum/spatial/r3"

// ScanNeighbors rebuilds the neighbor lists of agents in [i0, i1).
//
// Agent j is a neighbor of i when it lies closer than NeighborDistance and
// the direction to it makes an angle with i's heading smaller than the field
// of view. An agent with zero velocity has no heading and therefore no
// neighbors; coincident agents are never neighbors. The relation is not
// symmetric.
//
// The scan reads positions and velocities of every agent and writes only the
// lists of agents in the range, so disjoint ranges may run concurrently.
func ScanNeighbors(s *Store, p Params, i0, i1 int) {
	maxDist := p.NeighborDistance
	minDot := p.FovThreshold()
	n := len(s.pos)

	for i := i0; i < i1; i++ {
		list := s.neighbors[i][:0]

		fwd, ok := Unit(s.vel[i])
		if ok {
			self := s.pos[i]
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				to := r3.Sub(s.pos[j], self)
				if r3.Norm(to) >= maxDist {
					continue
				}
				dir, ok := Unit(to)
				if !ok {
					continue
				}
				if r3.Dot(fwd, dir) > minDot {
					list = append(list, AgentID(j))
				}
			}
		}

		s.neighbors[i] = list
	}
}
