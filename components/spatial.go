package components

import "github.com/pthm-cable/crowd/geom"

// Position is an agent's location on the ground plane.
type Position struct {
	geom.Vec2
}

// Velocity is the agent's realized velocity from the last avoidance step.
type Velocity struct {
	geom.Vec2
}

// Heading is the agent's unit forward direction.
type Heading struct {
	geom.Vec2
}
