package game

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/flock"
)

// Scene mirrors the simulation into an ECS world, one entity per agent.
type Scene struct {
	world *ecs.World

	boidMapper *ecs.Map2[components.Transform, components.Boid]
	boidFilter *ecs.Filter2[components.Transform, components.Boid]

	// entities[id] is the entity for agent id
	entities []ecs.Entity
}

// NewScene creates an empty scene.
func NewScene() *Scene {
	world := ecs.NewWorld()
	return &Scene{
		world:      world,
		boidMapper: ecs.NewMap2[components.Transform, components.Boid](world),
		boidFilter: ecs.NewFilter2[components.Transform, components.Boid](world),
	}
}

// Reconcile applies a step's diff and copies the poses onto the entities.
// Removed ids are always the highest ones and arrive in descending order, so
// despawns pop from the tail. Added ids arrive ascending and extend it.
func (s *Scene) Reconcile(tick int64, diff flock.Diff, poses []flock.Pose) {
	for _, id := range diff.Removed {
		last := len(s.entities) - 1
		if last < 0 || int(id) != last {
			panic(fmt.Sprintf("game: removed agent %d is not the scene tail %d", id, last))
		}
		s.world.RemoveEntity(s.entities[last])
		s.entities = s.entities[:last]
	}

	for _, id := range diff.Added {
		if int(id) != len(s.entities) {
			panic(fmt.Sprintf("game: added agent %d does not extend the scene of %d", id, len(s.entities)))
		}
		tr := components.Transform{Position: poses[id].Position, Orientation: poses[id].Orientation}
		boid := components.Boid{ID: id, SpawnTick: tick}
		s.entities = append(s.entities, s.boidMapper.NewEntity(&tr, &boid))
	}

	for id, pose := range poses {
		tr, _ := s.boidMapper.Get(s.entities[id])
		tr.Position = pose.Position
		tr.Orientation = pose.Orientation
	}
}

// Len returns the number of tracked agents.
func (s *Scene) Len() int {
	return len(s.entities)
}

// Count returns the number of boid entities alive in the world.
func (s *Scene) Count() int {
	n := 0
	query := s.boidFilter.Query()
	for query.Next() {
		n++
	}
	return n
}

// Transform returns the mirrored transform of agent id.
func (s *Scene) Transform(id flock.AgentID) (components.Transform, bool) {
	if id < 0 || int(id) >= len(s.entities) {
		return components.Transform{}, false
	}
	tr, _ := s.boidMapper.Get(s.entities[id])
	return *tr, true
}

// Boid returns the link component of agent id.
func (s *Scene) Boid(id flock.AgentID) (components.Boid, bool) {
	if id < 0 || int(id) >= len(s.entities) {
		return components.Boid{}, false
	}
	_, b := s.boidMapper.Get(s.entities[id])
	return *b, true
}

// Each calls fn for every boid entity.
func (s *Scene) Each(fn func(tr *components.Transform, b *components.Boid)) {
	query := s.boidFilter.Query()
	for query.Next() {
		fn(query.Get())
	}
}
