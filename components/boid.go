package components

import "github.com/pthm-cable/flock/systems"

// Boid links a scene entity to its agent in the simulation.
type Boid struct {
	ID        systems.AgentID
	SpawnTick int64 // tick at which the agent was created
}
