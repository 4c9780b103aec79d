// Package systems holds the per-agent rules run by the tick.
package systems

import (
	"github.com/pthm-cable/crowd/geom"
	"github.com/pthm-cable/crowd/profile"
)

// MaxTurnDegrees is the turn produced by a full-scale turn action.
const MaxTurnDegrees = 45.0

// MinDriveDistance replaces non-positive forward requests so the agent keeps
// a heading.
const MinDriveDistance = 0.01

// WarmupSpeed is the crawl speed used before the controller engages.
const WarmupSpeed = 0.01

// Capabilities parameterize the controller for one agent variant.
type Capabilities struct {
	Name string

	ActionMin float64 // lower end of the forward action range

	GoalDistance   float64 // arrival threshold
	SlowRadius     float64 // within this goal distance max speed drops to SlowSpeed; 0 disables
	SlowSpeed      float64
	ArrivalLinear  bool // arrival reward grows linearly with remaining steps instead of a clamped fraction
	FreezeOffField bool // arriving at an out-of-bounds goal freezes the agent instead of despawning it

	GroupDistance       float64
	GroupDotMin         float64
	MaxNeighbours       int
	InteractionDistance float64
	InteractionDotMin   float64
	ProximityBonus      bool // extra interaction reward that grows as the agent closes in
	StationarySpeed     float64

	StepGoalCoupled bool // step penalty grows with the goal weight

	CollisionGrace     int // steps before contact is penalized
	ObstaclePenalty    float64
	InteractionPenalty float64
	EndOnContact       bool // any contact ends the episode, penalized or not

	BoundaryGrace int // local frames before leaving the field ends the episode
	WarmupSteps   int

	RequireInheritance bool           // drive straight with GroupDefault until the group latches
	GroupDefault       profile.Vector // weights used before inheritance; Connectivity comes from the field default
}

// MapAction converts a policy action into a preferred velocity. forward and
// turn are in [-1, 1]. The result never exceeds maxSpeed.
func MapAction(forward, turn float64, heading geom.Vec2, maxSpeed float64, caps *Capabilities) geom.Vec2 {
	distance := geom.MapRange(forward, -1, 1, caps.ActionMin, 1) * maxSpeed
	if distance <= 0 {
		distance = MinDriveDistance
	}
	angle := turn * MaxTurnDegrees
	return DriveVelocity(heading, angle, distance, maxSpeed)
}

// DriveVelocity rotates heading by angle degrees, scales it by distance and
// clamps the magnitude to maxSpeed.
func DriveVelocity(heading geom.Vec2, angle, distance, maxSpeed float64) geom.Vec2 {
	dir := heading.Rotate(angle)
	return dir.Scale(distance).ClampLen(maxSpeed)
}

// WarmupVelocity points a crawl straight at the goal.
func WarmupVelocity(pos, goal geom.Vec2) geom.Vec2 {
	return goal.Sub(pos).Normalize().Scale(WarmupSpeed)
}

// InWarmup reports whether the agent is still bootstrapping its heading.
func InWarmup(canMove bool, localFrame int, caps *Capabilities) bool {
	return !canMove || localFrame < caps.WarmupSteps
}
