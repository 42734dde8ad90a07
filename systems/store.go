package systems

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// AgentID indexes an agent's row in a Store. Ids are dense: every id in
// [0, Len()) is live, and ids are reused after a shrink.
type AgentID int

// Rule identifies one of the force rules.
type Rule int

const (
	RuleWall Rule = iota
	RuleSeparation
	RuleAlignment
	RuleCohesion
	NumRules
)

var ruleNames = [NumRules]string{"wall", "separation", "alignment", "cohesion"}

func (r Rule) String() string {
	if r < 0 || r >= NumRules {
		return "unknown"
	}
	return ruleNames[r]
}

// Store holds per-agent state in parallel slices indexed by AgentID.
type Store struct {
	pos       []r3.Vec
	vel       []r3.Vec
	acc       []r3.Vec
	rot       []quat.Number
	neighbors [][]AgentID
	deltas    [NumRules][]r3.Vec

	rng *rand.Rand
}

// NewStore creates an empty store whose spawned agents are drawn from seed.
func NewStore(seed int64) *Store {
	return &Store{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Len returns the number of live agents.
func (s *Store) Len() int {
	return len(s.pos)
}

// Valid reports whether id refers to a live agent.
func (s *Store) Valid(id AgentID) bool {
	return id >= 0 && int(id) < len(s.pos)
}

// Resize grows or shrinks the population to target. New agents are appended
// with a seeded position inside the unit sphere and a seeded rotation; their
// velocity is the rotated forward axis times initSpeed. Surplus agents are
// removed from the tail. Surviving agents keep their ids and state.
func (s *Store) Resize(target int, initSpeed float64) (added, removed []AgentID) {
	if target < 0 {
		target = 0
	}
	n := s.Len()

	for i := n - 1; i >= target; i-- {
		removed = append(removed, AgentID(i))
	}
	if target < n {
		s.truncate(target)
	}

	for i := n; i < target; i++ {
		pos := s.randomInsideUnitSphere()
		rot := s.randomRotation()
		added = append(added, s.Spawn(pos, rot, initSpeed))
	}

	if len(added) > 0 || len(removed) > 0 {
		s.clearNeighbors()
	}
	return added, removed
}

// Spawn appends an agent at pos facing rot and returns its id.
func (s *Store) Spawn(pos r3.Vec, rot quat.Number, initSpeed float64) AgentID {
	id := AgentID(len(s.pos))
	s.pos = append(s.pos, pos)
	s.vel = append(s.vel, r3.Scale(initSpeed, Forward(rot)))
	s.acc = append(s.acc, r3.Vec{})
	s.rot = append(s.rot, rot)
	if cap(s.neighbors) > int(id) {
		// Reuse the list allocated before a previous shrink.
		s.neighbors = s.neighbors[:id+1]
		s.neighbors[id] = s.neighbors[id][:0]
	} else {
		s.neighbors = append(s.neighbors, nil)
	}
	for r := range s.deltas {
		s.deltas[r] = append(s.deltas[r], r3.Vec{})
	}
	return id
}

func (s *Store) truncate(n int) {
	s.pos = s.pos[:n]
	s.vel = s.vel[:n]
	s.acc = s.acc[:n]
	s.rot = s.rot[:n]
	s.neighbors = s.neighbors[:n]
	for r := range s.deltas {
		s.deltas[r] = s.deltas[r][:n]
	}
}

func (s *Store) clearNeighbors() {
	for i := range s.neighbors {
		s.neighbors[i] = s.neighbors[i][:0]
	}
}

// randomInsideUnitSphere draws a point uniformly from the unit ball by
// rejection sampling the enclosing cube.
func (s *Store) randomInsideUnitSphere() r3.Vec {
	for {
		p := r3.Vec{
			X: s.rng.Float64()*2 - 1,
			Y: s.rng.Float64()*2 - 1,
			Z: s.rng.Float64()*2 - 1,
		}
		if r3.Norm2(p) <= 1 {
			return p
		}
	}
}

// randomRotation draws a uniformly distributed unit quaternion (Shoemake).
func (s *Store) randomRotation() quat.Number {
	u1 := s.rng.Float64()
	u2 := s.rng.Float64() * 2 * math.Pi
	u3 := s.rng.Float64() * 2 * math.Pi
	a := math.Sqrt(1 - u1)
	b := math.Sqrt(u1)
	return quat.Number{
		Real: b * math.Cos(u3),
		Imag: a * math.Sin(u2),
		Jmag: a * math.Cos(u2),
		Kmag: b * math.Sin(u3),
	}
}

// Position returns the position of id. Callers must pass a valid id, as
// with every per-agent accessor below.
func (s *Store) Position(id AgentID) r3.Vec { return s.pos[id] }

// Velocity returns the velocity of id.
func (s *Store) Velocity(id AgentID) r3.Vec { return s.vel[id] }

// Acceleration returns the acceleration accumulated for id since the last
// integration.
func (s *Store) Acceleration(id AgentID) r3.Vec { return s.acc[id] }

// Orientation returns the unit rotation of id.
func (s *Store) Orientation(id AgentID) quat.Number { return s.rot[id] }

// Delta returns the acceleration rule contributed to id in the last tick.
func (s *Store) Delta(rule Rule, id AgentID) r3.Vec { return s.deltas[rule][id] }

// SetPosition overwrites the position of id.
func (s *Store) SetPosition(id AgentID, v r3.Vec) { s.pos[id] = v }

// SetVelocity overwrites the velocity of id. A zero velocity is allowed; the
// next integration falls back to the current heading.
func (s *Store) SetVelocity(id AgentID, v r3.Vec) { s.vel[id] = v }

// SetAcceleration overwrites the accumulated acceleration of id.
func (s *Store) SetAcceleration(id AgentID, v r3.Vec) { s.acc[id] = v }

// SetOrientation overwrites the rotation of id. q should be a unit
// quaternion.
func (s *Store) SetOrientation(id AgentID, q quat.Number) { s.rot[id] = q }

// Neighbors returns the neighbor list computed by the last scan. The slice is
// owned by the store and is overwritten on the next scan.
func (s *Store) Neighbors(id AgentID) []AgentID {
	return s.neighbors[id]
}

// Positions returns the position slice. It is owned by the store.
func (s *Store) Positions() []r3.Vec { return s.pos }

// Velocities returns the velocity slice. It is owned by the store.
func (s *Store) Velocities() []r3.Vec { return s.vel }

// Orientations returns the orientation slice. It is owned by the store.
func (s *Store) Orientations() []quat.Number { return s.rot }
