// Package flock runs a boids simulation: agents steer by containment,
// separation, alignment and cohesion inside a cube and are advanced one tick
// at a time, sequentially or on a worker pool with identical results.
package flock

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/systems"
)

// Params is the flocking parameter set.
type Params = systems.Params

// AgentID identifies a live agent. See systems.AgentID.
type AgentID = systems.AgentID

// DefaultParams returns the stock flocking parameters.
func DefaultParams() Params { return systems.DefaultParams() }

var (
	ErrInvalidParameter  = systems.ErrInvalidParameter
	ErrInvalidAgentID    = systems.ErrInvalidAgentID
	ErrInvalidPopulation = errors.New("invalid population")
	ErrInvalidTimestep   = errors.New("invalid timestep")
)

// Options configure a Simulation.
type Options struct {
	Seed              int64 // seeds spawned positions and rotations
	Mode              Mode
	Workers           int // pool size for ModeParallel; < 1 uses GOMAXPROCS
	ParallelThreshold int // smallest population sent to the pool; < 1 uses the default
	MaxAgents         int // upper bound for SetTargetPopulation; 0 means unbounded
}

// Pose is the presentation state of one agent.
type Pose struct {
	Position    r3.Vec
	Orientation quat.Number
}

// AgentState is the full state of one agent.
type AgentState struct {
	Position     r3.Vec
	Velocity     r3.Vec
	Acceleration r3.Vec
	Orientation  quat.Number
}

// Forces holds the per-rule accelerations computed for an agent by the last
// tick.
type Forces struct {
	Wall       r3.Vec
	Separation r3.Vec
	Alignment  r3.Vec
	Cohesion   r3.Vec
}

// Diff lists the agents created and destroyed at the start of a tick.
// Removed ids are in descending order.
type Diff struct {
	Added   []AgentID
	Removed []AgentID
}

// Simulation owns the agent store and advances it one tick per Step.
type Simulation struct {
	store *systems.Store
	sched *Scheduler
	opts  Options

	params  Params
	pending *Params

	target int

	tick    int64
	diff    Diff
	spawned []AgentID // appended by Spawn since the last Step
	poses   []Pose
}

// New creates an empty simulation.
func New(params Params, opts Options) (*Simulation, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxAgents < 0 {
		return nil, fmt.Errorf("max agents %d: %w", opts.MaxAgents, ErrInvalidPopulation)
	}
	return &Simulation{
		store:  systems.NewStore(opts.Seed),
		sched:  NewScheduler(opts.Mode, opts.Workers, opts.ParallelThreshold),
		opts:   opts,
		params: params,
	}, nil
}

// Configure replaces the parameters from the next Step on. Invalid parameters
// are rejected and the active set is kept.
func (s *Simulation) Configure(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	s.pending = &params
	return nil
}

// Params returns the parameters the next Step will use.
func (s *Simulation) Params() Params {
	if s.pending != nil {
		return *s.pending
	}
	return s.params
}

// SetTargetPopulation sets the agent count reached at the start of the next
// Step.
func (s *Simulation) SetTargetPopulation(n int) error {
	if n < 0 {
		return fmt.Errorf("target %d: %w", n, ErrInvalidPopulation)
	}
	if s.opts.MaxAgents > 0 && n > s.opts.MaxAgents {
		return fmt.Errorf("target %d above limit %d: %w", n, s.opts.MaxAgents, ErrInvalidPopulation)
	}
	s.target = n
	return nil
}

// TargetPopulation returns the requested agent count.
func (s *Simulation) TargetPopulation() int { return s.target }

// Spawn appends an agent at pos facing rot immediately, moving at the
// configured initial speed. The target population grows by one, so a pending
// SetTargetPopulation still decides how many agents the next Step keeps.
// The id is reported in the next Step's Diff.Added unless that Step's shrink
// removes it again.
func (s *Simulation) Spawn(pos r3.Vec, rot quat.Number) (AgentID, error) {
	if !systems.IsFinite(pos) {
		return 0, fmt.Errorf("spawn position %v: %w", pos, ErrInvalidParameter)
	}
	if s.opts.MaxAgents > 0 && max(s.store.Len(), s.target) >= s.opts.MaxAgents {
		return 0, fmt.Errorf("spawn above limit %d: %w", s.opts.MaxAgents, ErrInvalidPopulation)
	}
	n := quat.Abs(rot)
	if n < systems.Epsilon || math.IsNaN(n) || math.IsInf(n, 0) {
		rot = systems.Identity
	} else {
		rot = quat.Scale(1/n, rot)
	}

	id := s.store.Spawn(pos, rot, s.Params().InitSpeed)
	s.target++
	s.spawned = append(s.spawned, id)
	return id, nil
}

// Step advances the simulation by dt seconds and returns the pose of every
// agent indexed by id. The returned slice is reused by the next Step.
func (s *Simulation) Step(dt float64) ([]Pose, error) {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("dt %g: %w", dt, ErrInvalidTimestep)
	}

	if s.pending != nil {
		s.params = *s.pending
		s.pending = nil
	}

	s.sched.notify(PhaseResize)
	added, removed := s.store.Resize(s.target, s.params.InitSpeed)
	s.diff = mergeSpawned(s.spawned, added, removed, s.store.Len())
	s.spawned = s.spawned[:0]

	s.sched.Run(s.store, s.params, dt)
	s.tick++

	return s.buildPoses(), nil
}

// mergeSpawned folds agents created by Spawn since the last Step into the
// Diff of a resize. Spawned ids are at or above the population the presenter
// last saw, so ids the resize removed again cancel out of both lists.
func mergeSpawned(spawned, added, removed []AgentID, n int) Diff {
	if len(spawned) == 0 {
		return Diff{Added: added, Removed: removed}
	}

	var d Diff
	for _, id := range spawned {
		if int(id) < n {
			d.Added = append(d.Added, id)
		}
	}
	d.Added = append(d.Added, added...)

	first := spawned[0]
	for _, id := range removed {
		if id < first {
			d.Removed = append(d.Removed, id)
		}
	}
	return d
}

func (s *Simulation) buildPoses() []Pose {
	n := s.store.Len()
	if cap(s.poses) < n {
		s.poses = make([]Pose, n)
	}
	s.poses = s.poses[:n]
	pos := s.store.Positions()
	rot := s.store.Orientations()
	for i := range s.poses {
		s.poses[i] = Pose{Position: pos[i], Orientation: rot[i]}
	}
	return s.poses
}

// AgentCount returns the number of live agents.
func (s *Simulation) AgentCount() int { return s.store.Len() }

// Tick returns the number of completed steps.
func (s *Simulation) Tick() int64 { return s.tick }

// LastDiff returns the population change applied by the last Step.
func (s *Simulation) LastDiff() Diff { return s.diff }

// AgentState returns the state of agent id.
func (s *Simulation) AgentState(id AgentID) (AgentState, error) {
	if !s.store.Valid(id) {
		return AgentState{}, fmt.Errorf("agent %d: %w", id, ErrInvalidAgentID)
	}
	return AgentState{
		Position:     s.store.Position(id),
		Velocity:     s.store.Velocity(id),
		Acceleration: s.store.Acceleration(id),
		Orientation:  s.store.Orientation(id),
	}, nil
}

// Neighbors returns a copy of the neighbor list of agent id from the last tick.
func (s *Simulation) Neighbors(id AgentID) ([]AgentID, error) {
	if !s.store.Valid(id) {
		return nil, fmt.Errorf("agent %d: %w", id, ErrInvalidAgentID)
	}
	return append([]AgentID(nil), s.store.Neighbors(id)...), nil
}

// Forces returns the per-rule accelerations agent id received in the last
// tick.
func (s *Simulation) Forces(id AgentID) (Forces, error) {
	if !s.store.Valid(id) {
		return Forces{}, fmt.Errorf("agent %d: %w", id, ErrInvalidAgentID)
	}
	return Forces{
		Wall:       s.store.Delta(systems.RuleWall, id),
		Separation: s.store.Delta(systems.RuleSeparation, id),
		Alignment:  s.store.Delta(systems.RuleAlignment, id),
		Cohesion:   s.store.Delta(systems.RuleCohesion, id),
	}, nil
}

// SetAcceleration sets the accumulated acceleration of agent id. The next
// Step integrates it together with the rule forces.
func (s *Simulation) SetAcceleration(id AgentID, acc r3.Vec) error {
	if !s.store.Valid(id) {
		return fmt.Errorf("agent %d: %w", id, ErrInvalidAgentID)
	}
	s.store.SetAcceleration(id, acc)
	return nil
}

// Store exposes the underlying agent store for read-only sampling.
func (s *Simulation) Store() *systems.Store { return s.store }

// SetObserver installs o to receive phase notifications.
func (s *Simulation) SetObserver(o PhaseObserver) { s.sched.SetObserver(o) }

// Mode returns the execution mode.
func (s *Simulation) Mode() Mode { return s.sched.Mode() }

// Close releases the worker pool. The simulation must not be stepped after.
func (s *Simulation) Close() { s.sched.Close() }
