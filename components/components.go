// Package components defines ECS components for the simulation.
package components

import (
	"github.com/pthm-cable/crowd/geom"
	"github.com/pthm-cable/crowd/profile"
)

// Outcome is how an agent's episode ended.
type Outcome uint8

const (
	OutcomeNone                Outcome = iota
	OutcomeArrived                     // reached an in-bounds goal
	OutcomeCollidedObstacle            // touched an obstacle after the grace period
	OutcomeCollidedInteraction         // touched an interaction object
	OutcomeBoundaryExit                // left the field
	OutcomeExpired                     // ran out of steps or passed its end frame
	OutcomeRemoved                     // despawned by the host (room removal, shutdown)
)

func (o Outcome) String() string {
	switch o {
	case OutcomeArrived:
		return "arrived"
	case OutcomeCollidedObstacle:
		return "collided_obstacle"
	case OutcomeCollidedInteraction:
		return "collided_interaction"
	case OutcomeBoundaryExit:
		return "boundary_exit"
	case OutcomeExpired:
		return "expired"
	case OutcomeRemoved:
		return "removed"
	default:
		return "none"
	}
}

// Agent holds per-agent runtime state. Pooled entities keep their Agent
// component while inactive; Active marks the ones being simulated.
type Agent struct {
	ID     uint32
	Active bool
	Handle int // avoidance service handle, -1 when unregistered

	GroupID int
	Start   geom.Vec2
	Goal    geom.Vec2

	CanMove bool // false until the host releases the agent
	Frozen  bool // reached an out-of-bounds goal and holds position
	Inherit bool // weights come from the field rather than the group default

	SpawnTick  int
	EndTick    int // dataset agents retire after this tick once near the goal; 0 disables
	LocalFrame int // ticks since spawn
	Step       int // ticks under the main controller

	MaxSpeed     float64
	InitialSpeed float64
	Weights      profile.Vector

	Preferred geom.Vec2 // last preferred velocity submitted
	Driven    bool      // Preferred came from a policy action this tick
	Speed     float64

	GoalDist        float64
	InitialGoalDist float64
	BestGoalDist    float64
	GoalAngle       float64

	InterconnDist  float64
	InterconnAngle float64
	SpeedVariance  float64
}

// Score accumulates the per-objective signals an agent has received.
type Score struct {
	Total       float64
	Smooth      float64
	Goal        float64
	Group       float64
	Interaction float64
	Connect     float64
	Step        float64
	Terminal    float64
	Stale       int // ticks the group snapshot was rejected
}

// Reset zeroes the accumulators for a reused pool slot.
func (s *Score) Reset() {
	*s = Score{}
}
